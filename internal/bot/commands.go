package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mediabot/internal/apperr"
	"mediabot/internal/messaging"
	"mediabot/internal/models"
	"mediabot/internal/session"
)

const helpText = `🤖 *What I can do*

🤖 *Gemini AI*: chat with the assistant or get a description of any photo.
🎨 *Images*: generate a picture from a description or edit one of yours.
🎬 *Video AI*: create a video from text or animate a photo, or ask about a video.
🎵 *Audio AI*: transcribe voice messages or get them analyzed.

*Commands*
/start - Main menu
/imagine <description> - Generate an image right away
/profile - Your profile
/status - Bot status
/ping - Check that the bot is alive
/cancel - Leave the current mode
/help - This message`

// handleCommand dispatches a slash command. Every known command abandons
// whatever flow the user was in.
func (b *Bot) handleCommand(ctx context.Context, u Update, name, args string) {
	switch name {
	case "start", "help", "profile", "ping", "status", "imagine", "cancel":
		b.sessions.Clear(u.UserID)
	default:
		b.reply(ctx, u.ChatID, "Unknown command. Use /help to see available commands.")
		return
	}

	switch name {
	case "start":
		b.handleStart(ctx, u)
	case "help":
		b.handleHelp(ctx, u)
	case "profile":
		b.handleProfile(ctx, u)
	case "ping":
		b.handlePing(ctx, u)
	case "status":
		b.handleStatus(ctx, u)
	case "imagine":
		b.handleImagine(ctx, u, args)
	case "cancel":
		b.replyWithKeyboard(ctx, u.ChatID, "❌ Cancelled. What would you like to do next?", MainKeyboard())
	}
}

// handleStart registers the user and shows the main menu
func (b *Bot) handleStart(ctx context.Context, u Update) {
	b.saveUser(ctx, u)

	name := u.FirstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n\nI'm an AI assistant that works with text, images, video and audio.\n\n"+
		"Choose what you'd like to do 👇", name)
	b.replyWithKeyboard(ctx, u.ChatID, text, MainKeyboard())
}

func (b *Bot) handleHelp(ctx context.Context, u Update) {
	b.send(ctx, u.ChatID, helpText, messaging.SendOptions{ParseMode: messaging.ParseModeMarkdown, Keyboard: MainKeyboard()})
}

// handleProfile shows what is stored about the user
func (b *Bot) handleProfile(ctx context.Context, u Update) {
	user, err := b.db.GetUser(ctx, u.UserID)
	if err != nil {
		b.logger.Error("Failed to load user profile", zap.Int64("user_id", u.UserID), zap.Error(err))
		b.replyWithKeyboard(ctx, u.ChatID, "❌ Failed to load your profile. Please try again later.", MainKeyboard())
		return
	}
	if user == nil {
		b.replyWithKeyboard(ctx, u.ChatID, "You are not registered yet. Send /start to begin.", MainKeyboard())
		return
	}

	count, err := b.db.CountMessages(ctx, u.UserID)
	if err != nil {
		b.logPersistence(ctx, "count_messages", u.UserID, err)
	}

	b.replyWithKeyboard(ctx, u.ChatID, formatProfile(user, count), MainKeyboard())
}

func formatProfile(user *models.User, messages int64) string {
	var sb strings.Builder
	sb.WriteString("👤 Your profile\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", user.DisplayName())
	if user.Username != "" {
		fmt.Fprintf(&sb, "Username: @%s\n", user.Username)
	}
	fmt.Fprintf(&sb, "ID: %d\n", user.TelegramID)
	fmt.Fprintf(&sb, "Messages in chat mode: %d\n", messages)
	fmt.Fprintf(&sb, "Member since: %s\n", user.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Last seen: %s", user.LastSeen.Format("2006-01-02 15:04"))
	return sb.String()
}

// handlePing answers and then reports the round trip of that answer
func (b *Bot) handlePing(ctx context.Context, u Update) {
	start := time.Now()
	id := b.send(ctx, u.ChatID, "🏓 Pong!", messaging.SendOptions{})
	if id == 0 || b.messenger == nil {
		return
	}
	latency := time.Since(start).Milliseconds()
	if err := b.messenger.EditMessage(ctx, u.ChatID, id, fmt.Sprintf("🏓 Pong! (%d ms)", latency)); err != nil {
		b.logger.Debug("Failed to edit ping message", zap.Error(err))
	}
}

// handleStatus shows uptime and the configured backends
func (b *Bot) handleStatus(ctx context.Context, u Update) {
	var sb strings.Builder
	sb.WriteString("📊 Bot status\n\n")
	fmt.Fprintf(&sb, "Uptime: %s\n", time.Since(b.startedAt).Truncate(time.Second))
	fmt.Fprintf(&sb, "Text AI: %s\n", orNone(b.providers.Text))
	fmt.Fprintf(&sb, "Image AI: %s\n", orNone(b.providers.Image))
	fmt.Fprintf(&sb, "Video AI: %s\n", orNone(b.providers.Video))
	fmt.Fprintf(&sb, "Active sessions: %d", b.sessions.Len())
	if b.videos != nil {
		fmt.Fprintf(&sb, "\nQueued videos: %d", b.videos.Pending())
	}
	b.replyWithKeyboard(ctx, u.ChatID, sb.String(), MainKeyboard())
}

// handleImagine generates an image from the command argument, or asks for
// a description when there is none.
func (b *Bot) handleImagine(ctx context.Context, u Update, prompt string) {
	if prompt == "" {
		b.sessions.Set(u.UserID, session.ModeImagePrompt, nil)
		b.replyWithKeyboard(ctx, u.ChatID, "✨ Describe the image you want me to draw.", FlowKeyboard())
		return
	}
	b.generateImage(ctx, u, prompt)
}

func (b *Bot) saveUser(ctx context.Context, u Update) {
	if err := b.db.SaveUser(ctx, u.UserID, u.Username, u.FirstName); err != nil {
		b.logPersistence(ctx, "save_user", u.UserID, err)
	}
}

// logPersistence records a storage failure. Storage is best effort and never
// blocks a reply.
func (b *Bot) logPersistence(ctx context.Context, op string, userID int64, err error) {
	perr := &apperr.PersistenceError{Op: op, Err: err}
	b.metrics.PersistenceFailed(ctx, op)
	b.logger.Warn("Persistence failed", zap.Int64("user_id", userID), zap.Error(perr))
}

func orNone(s string) string {
	if s == "" {
		return "not configured"
	}
	return s
}
