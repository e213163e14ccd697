package bot

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateKind tags the payload an Update carries.
type UpdateKind string

const (
	KindText     UpdateKind = "text"
	KindPhoto    UpdateKind = "photo"
	KindVoice    UpdateKind = "voice"
	KindVideo    UpdateKind = "video"
	KindCallback UpdateKind = "callback"
	// KindOther covers stickers, documents, locations and anything else
	// the bot cannot process.
	KindOther UpdateKind = "other"
)

// Update is a transport-neutral incoming event. Which fields are set
// depends on Kind: Text for text (and the caption of media), FileID for
// media, CallbackID and CallbackData for callbacks.
type Update struct {
	Kind      UpdateKind
	UserID    int64
	ChatID    int64
	MessageID int
	Username  string
	FirstName string

	Text   string
	FileID string

	CallbackID   string
	CallbackData string

	SentAt time.Time
}

// FromTelegram normalizes a Telegram update. Updates without a sender, such
// as channel posts, are reported as not ok.
func FromTelegram(u tgbotapi.Update) (Update, bool) {
	if q := u.CallbackQuery; q != nil {
		if q.From == nil {
			return Update{}, false
		}
		out := Update{
			Kind:         KindCallback,
			UserID:       q.From.ID,
			ChatID:       q.From.ID,
			Username:     q.From.UserName,
			FirstName:    q.From.FirstName,
			CallbackID:   q.ID,
			CallbackData: q.Data,
			SentAt:       time.Now(),
		}
		if q.Message != nil && q.Message.Chat != nil {
			out.ChatID = q.Message.Chat.ID
			out.MessageID = q.Message.MessageID
		}
		return out, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Update{}, false
	}

	out := Update{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		SentAt:    msg.Time(),
	}

	switch {
	case len(msg.Photo) > 0:
		// Telegram lists sizes smallest first.
		out.Kind = KindPhoto
		out.FileID = msg.Photo[len(msg.Photo)-1].FileID
		out.Text = msg.Caption
	case msg.Voice != nil:
		out.Kind = KindVoice
		out.FileID = msg.Voice.FileID
		out.Text = msg.Caption
	case msg.Audio != nil:
		out.Kind = KindVoice
		out.FileID = msg.Audio.FileID
		out.Text = msg.Caption
	case msg.Video != nil:
		out.Kind = KindVideo
		out.FileID = msg.Video.FileID
		out.Text = msg.Caption
	case msg.VideoNote != nil:
		out.Kind = KindVideo
		out.FileID = msg.VideoNote.FileID
	case msg.Text != "":
		out.Kind = KindText
		out.Text = msg.Text
	default:
		out.Kind = KindOther
	}
	return out, true
}

// parseCommand splits "/cmd@botname args" into its name and arguments.
func parseCommand(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(strings.TrimSpace(text[1:]), " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
