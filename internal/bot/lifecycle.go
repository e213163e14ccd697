package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start starts the bot in polling mode
func (b *Bot) Start() error {
	if b.api == nil {
		return fmt.Errorf("telegram API is not configured")
	}
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	// Handle updates (blocks here)
	b.handleUpdates(updates)
	return nil
}

// Stop ends polling. It is a no-op in webhook mode.
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	if b.api == nil {
		return fmt.Errorf("telegram API is not configured")
	}
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + "/telegram-webhook")
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.logger.Info("Bot configured for webhook mode")
	return nil
}

// handleUpdates dispatches each polled update on its own goroutine so a
// slow backend call never stalls other users.
func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go b.HandleTelegramUpdate(update)
	}
}
