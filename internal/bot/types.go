package bot

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mediabot/internal/ai"
	"mediabot/internal/messaging"
	"mediabot/internal/metrics"
	"mediabot/internal/session"
	"mediabot/internal/storage"
	"mediabot/internal/workflow"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	messenger    messaging.Messenger
	db           storage.Storage
	sessions     session.Store
	text         ai.TextGenerator
	images       ai.ImageGenerator
	videos       *workflow.Orchestrator
	metrics      *metrics.Recorder
	allowedUsers map[int64]bool
	providers    Providers
	logger       *zap.Logger
	startedAt    time.Time
}

// Providers names the configured backends for /status
type Providers struct {
	Text  string
	Image string
	Video string
}

// Deps are the collaborators a Bot routes updates to
type Deps struct {
	API       *tgbotapi.BotAPI // nil disables polling and webhook setup
	Messenger messaging.Messenger
	DB        storage.Storage
	Sessions  session.Store
	Text      ai.TextGenerator
	Images    ai.ImageGenerator
	Videos    *workflow.Orchestrator
	Metrics   *metrics.Recorder
	Providers Providers
}
