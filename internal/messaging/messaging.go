// Package messaging is the outbound side of the chat transport.
package messaging

import "context"

// ParseMode values understood by Telegram.
const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// InlineButton is a button attached to a single message.
type InlineButton struct {
	Text string
	Data string
}

// SendOptions controls the presentation of an outgoing message.
// Keyboard sets a persistent reply keyboard; Inline attaches buttons to the
// message itself. When both are set Inline wins.
type SendOptions struct {
	ParseMode      string
	Keyboard       [][]string
	Inline         [][]InlineButton
	RemoveKeyboard bool
}

// Media is an outgoing file given either as bytes or as a URL.
type Media struct {
	Data []byte
	Name string
	URL  string
}

// Messenger sends messages to chats.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo Media, caption string, opts SendOptions) error
	SendVideo(ctx context.Context, chatID int64, video Media, caption string, opts SendOptions) error
	ResolveFileURL(ctx context.Context, fileID string) (string, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
