package bot

import (
	"context"

	"go.uber.org/zap"

	"mediabot/internal/workflow"
)

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, u Update) {
	// Answer the callback query to remove loading state
	if b.messenger != nil {
		if err := b.messenger.AnswerCallback(ctx, u.CallbackID, ""); err != nil {
			b.logger.Debug("Failed to answer callback", zap.Error(err))
		}
	}

	switch u.CallbackData {
	case workflow.RetryCallback:
		if !b.videos.Retry(ctx, u.UserID, u.ChatID) {
			b.replyWithKeyboard(ctx, u.ChatID, "Nothing to retry. Start a new video from "+BtnVideo+".", MainKeyboard())
		}
	default:
		b.logger.Debug("Unknown callback data",
			zap.Int64("user_id", u.UserID),
			zap.String("callback_data", u.CallbackData),
		)
	}
}
