package bot

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mediabot/internal/metrics"
)

// NewBot creates a new bot. An empty allowedUserIDs makes the bot public.
func NewBot(deps Deps, allowedUserIDs []int64, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NewNop()
	}

	if deps.API != nil {
		logger.Info("Bot created", zap.String("bot_username", deps.API.Self.UserName))
	}

	return &Bot{
		api:          deps.API,
		messenger:    deps.Messenger,
		db:           deps.DB,
		sessions:     deps.Sessions,
		text:         deps.Text,
		images:       deps.Images,
		videos:       deps.Videos,
		metrics:      rec,
		allowedUsers: allowedUsers,
		providers:    deps.Providers,
		logger:       logger,
		startedAt:    time.Now(),
	}
}

// GetAPI returns the bot API
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}

func (b *Bot) isAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || b.allowedUsers[userID]
}
