package bot

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"mediabot/internal/apperr"
	"mediabot/internal/messaging"
)

// maxMessageChars is Telegram's limit for one text message.
const maxMessageChars = 4096

// reply sends plain text without changing the keyboard
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, chatID, text, messaging.SendOptions{})
}

// replyWithKeyboard sends text and replaces the reply keyboard
func (b *Bot) replyWithKeyboard(ctx context.Context, chatID int64, text string, keyboard [][]string) {
	b.send(ctx, chatID, text, messaging.SendOptions{Keyboard: keyboard})
}

// replyError renders err for the user
func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	b.reply(ctx, chatID, "❌ Sorry, "+apperr.UserMessage(err)+". Please try again.")
}

// replyLong sends text split into as many messages as needed
func (b *Bot) replyLong(ctx context.Context, chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageChars) {
		b.reply(ctx, chatID, chunk)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, opts messaging.SendOptions) int {
	if b.messenger == nil {
		return 0 // For testing
	}
	id, err := b.messenger.SendText(ctx, chatID, text, opts)
	if err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return id
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks as cut points.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if nl := strings.LastIndex(string(runes[:limit]), "\n"); nl > 0 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:nl]) + 1
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
