package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mediabot/internal/ai"
	"mediabot/internal/ai/gemini"
	"mediabot/internal/ai/ollama"
	"mediabot/internal/ai/openai"
	"mediabot/internal/bot"
	"mediabot/internal/config"
	"mediabot/internal/jobs"
	"mediabot/internal/media"
	"mediabot/internal/messaging"
	"mediabot/internal/metrics"
	"mediabot/internal/session"
	"mediabot/internal/storage"
	"mediabot/internal/storage/ch"
	"mediabot/internal/storage/sqlite"
	"mediabot/internal/storage/stubs"
	"mediabot/internal/video/replicate"
	"mediabot/internal/video/runway"
	"mediabot/internal/workflow"
)

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	db       storage.Storage
	sessions session.Store
	videos   *workflow.Orchestrator
	bot      *bot.Bot
	server   *http.Server

	shutdownTelemetry func(context.Context) error
	cancel            context.CancelFunc
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}
	logger.Info("Starting media bot...")

	ctx := context.Background()
	app.shutdownTelemetry, err = metrics.InitTelemetry(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initSessions(); err != nil {
		return nil, err
	}

	if err := app.initBot(ctx); err != nil {
		return nil, err
	}

	app.initHTTPServer()

	return app, nil
}

// NewLogger builds the root logger. Unknown levels fall back to info.
func NewLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// initDatabase initializes the database connection
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	switch a.config.StorageDriver {
	case config.StorageMock:
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()

	case config.StorageSQLite:
		a.logger.Info("Using SQLite database", zap.String("path", a.config.SQLitePath))
		sqliteDB, err := sqlite.NewSQLiteDB(a.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB

	default:
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(a.clickHouseOptions())
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	}

	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

func (a *App) clickHouseOptions() ch.Options {
	return ch.Options{
		Host:     a.config.ClickHouseHost,
		Port:     a.config.ClickHousePort,
		Database: a.config.ClickHouseDatabase,
		User:     a.config.ClickHouseUser,
		Password: a.config.ClickHousePassword,
		UseTLS:   a.config.ClickHouseUseTLS,
	}
}

func (a *App) initSessions() error {
	if a.config.SessionStore == config.SessionBolt {
		store, err := session.OpenBoltStore(a.config.SessionBoltPath, a.logger.Named("sessions"))
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		a.logger.Info("Using bbolt session store",
			zap.String("path", a.config.SessionBoltPath),
			zap.Int("restored", store.Len()),
		)
		a.sessions = store
		return nil
	}
	a.sessions = session.NewMemoryStore()
	return nil
}

// initBot builds the backends, the orchestrator and the Telegram bot
func (a *App) initBot(ctx context.Context) error {
	recorder, err := metrics.New(otel.GetMeterProvider().Meter(metrics.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	fetcher := media.NewFetcher(a.config.DownloadTimeout)

	images, err := gemini.NewClient(ctx, a.config.Gemini.APIKey, a.config.Gemini.TextModel, a.config.Gemini.ImageModel, fetcher)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	text, err := a.textGenerator(images, fetcher)
	if err != nil {
		return err
	}

	poller := a.videoPoller(recorder)

	api, err := tgbotapi.NewBotAPI(a.config.TelegramToken)
	if err != nil {
		a.logger.Error("Failed to create bot API", zap.Error(err))
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	messenger := messaging.NewTelegram(api, a.logger.Named("telegram"))

	a.videos = workflow.New(workflow.Config{
		Workers:        a.config.VideoWorkers,
		QueueSize:      a.config.VideoQueueSize,
		ResultKeyboard: bot.MainKeyboard(),
		FlowKeyboard:   bot.FlowKeyboard(),
	}, messenger, a.sessions, poller, fetcher, recorder, a.logger.Named("workflow"))

	a.bot = bot.NewBot(bot.Deps{
		API:       api,
		Messenger: messenger,
		DB:        a.db,
		Sessions:  a.sessions,
		Text:      text,
		Images:    images,
		Videos:    a.videos,
		Metrics:   recorder,
		Providers: bot.Providers{
			Text:  a.config.TextProvider,
			Image: config.ProviderGemini,
			Video: poller.Backend(),
		},
	}, a.config.AllowedUserIDs, a.logger.Named("bot"))

	if len(a.config.AllowedUserIDs) == 0 {
		a.logger.Info("Bot created. Access is open to everyone")
	} else {
		a.logger.Info("Bot created", zap.Int64s("allowed_users", a.config.AllowedUserIDs))
	}
	return nil
}

func (a *App) textGenerator(geminiClient *gemini.Client, fetcher *media.Fetcher) (ai.TextGenerator, error) {
	switch a.config.TextProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(a.config.OpenAI.APIKey, a.config.OpenAI.Model, a.config.OpenAI.BaseURL, fetcher), nil
	case config.ProviderOllama:
		client, err := ollama.NewClient(a.config.Ollama.Host, a.config.Ollama.Model, fetcher)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, nil
	default:
		return geminiClient, nil
	}
}

func (a *App) videoPoller(recorder *metrics.Recorder) *jobs.Poller {
	vc := a.config.Video()
	var backend jobs.Backend
	if a.config.VideoProvider == config.VideoReplicate {
		backend = replicate.NewClient(vc.BaseURL, vc.APIKey, a.config.ReplicateModel)
	} else {
		backend = runway.NewClient(vc.BaseURL, vc.APIKey)
	}

	a.logger.Info("Video backend configured",
		zap.String("backend", backend.Name()),
		zap.Int("poll_attempts", vc.PollAttempts),
		zap.Duration("poll_interval", vc.PollInterval),
	)
	return jobs.NewPoller(backend, vc.PollAttempts, vc.PollInterval, recorder, a.logger.Named("poller"))
}

// initHTTPServer initializes the HTTP server for health checks and webhook
func (a *App) initHTTPServer() {
	routes := bot.NewHTTPServer(a.bot, a.config.WebhookMode).Routes()

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      routes,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.videos.Start(ctx)

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
	} else {
		go func() {
			a.logger.Info("Starting bot in POLLING mode...")
			if err := a.bot.Start(); err != nil {
				a.logger.Error("Failed to start bot", zap.Error(err))
				sigChan <- syscall.SIGTERM
			}
		}()
	}

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.bot.Stop()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.videos.Stop()

	if err := a.sessions.Close(); err != nil {
		a.logger.Warn("Error closing session store", zap.Error(err))
	}

	if err := a.shutdownTelemetry(shutdownCtx); err != nil {
		a.logger.Warn("Error shutting down telemetry", zap.Error(err))
	}

	// Close database
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
