package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mediabot/internal/session"
)

// Route names recorded per handled update.
const (
	routeCommand   = "command"
	routeButton    = "button"
	routeText      = "text"
	routeMedia     = "media"
	routeCallback  = "callback"
	routeGuidance  = "guidance"
	routeForbidden = "forbidden"
)

// HandleTelegramUpdate processes a single update from polling or webhook
func (b *Bot) HandleTelegramUpdate(update tgbotapi.Update) {
	u, ok := FromTelegram(update)
	if !ok {
		return
	}
	b.HandleUpdate(context.Background(), u)
}

// HandleUpdate routes one update. Updates from the same user are handled
// one at a time; different users proceed in parallel.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	if !b.isAllowed(u.UserID) {
		b.logger.Warn("Unauthorized access attempt",
			zap.Int64("user_id", u.UserID),
			zap.String("username", u.Username),
			zap.String("first_name", u.FirstName),
			zap.String("kind", string(u.Kind)),
		)
		if u.Kind != KindCallback {
			b.reply(ctx, u.ChatID, "Sorry, you are not authorized to use this bot.")
		}
		b.metrics.UpdateRouted(ctx, string(u.Kind), routeForbidden)
		return
	}

	unlock := b.sessions.Lock(u.UserID)
	defer unlock()

	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in HandleUpdate",
				zap.Any("panic", r),
				zap.Int64("user_id", u.UserID),
				zap.String("kind", string(u.Kind)),
			)
			b.reply(ctx, u.ChatID, "An error occurred while processing your request. Please try again.")
		}
	}()

	route := b.route(ctx, u)
	b.metrics.UpdateRouted(ctx, string(u.Kind), route)
	b.logger.Debug("Update routed",
		zap.Int64("user_id", u.UserID),
		zap.String("kind", string(u.Kind)),
		zap.String("route", route),
	)
}

// route applies the precedence: commands, then menu buttons, then text by
// mode, then media by mode.
func (b *Bot) route(ctx context.Context, u Update) string {
	switch u.Kind {
	case KindCallback:
		b.handleCallbackQuery(ctx, u)
		return routeCallback

	case KindText:
		if name, args, ok := parseCommand(u.Text); ok {
			b.handleCommand(ctx, u, name, args)
			return routeCommand
		}
		if b.handleButton(ctx, u) {
			return routeButton
		}
		b.handleText(ctx, u)
		return routeText

	case KindPhoto, KindVoice, KindVideo:
		if b.handleMedia(ctx, u) {
			return routeMedia
		}
		return routeGuidance

	default:
		b.reply(ctx, u.ChatID, "🤷 I can't handle this kind of message. Send text, a photo, a voice message or a video.")
		return routeGuidance
	}
}

// mode returns the current mode of a user, or "" when idle
func (b *Bot) mode(userID int64) (session.Mode, *session.Pending) {
	sess, ok := b.sessions.Get(userID)
	if !ok {
		return "", nil
	}
	return sess.Mode, sess.Pending
}
