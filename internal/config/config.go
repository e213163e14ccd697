package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers
const (
	StorageClickHouse = "clickhouse"
	StorageSQLite     = "sqlite"
	StorageMock       = "mock"
)

// Session stores
const (
	SessionMemory = "memory"
	SessionBolt   = "bolt"
)

// Text providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Video providers
const (
	VideoRunway    = "runway"
	VideoReplicate = "replicate"
)

// Config holds the application configuration
type Config struct {
	TelegramToken  string
	AllowedUserIDs []int64 // empty means everyone may use the bot

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	StorageDriver string
	SQLitePath    string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	SessionStore    string
	SessionBoltPath string

	Gemini       GeminiConfig
	TextProvider string
	OpenAI       OpenAIConfig
	Ollama       OllamaConfig

	VideoProvider   string
	Runway          VideoBackendConfig
	Replicate       VideoBackendConfig
	ReplicateModel  string
	VideoWorkers    int
	VideoQueueSize  int
	DownloadTimeout time.Duration

	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
}

type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OllamaConfig struct {
	Host  string
	Model string
}

// VideoBackendConfig is the endpoint and polling budget of one video backend
type VideoBackendConfig struct {
	APIKey       string
	BaseURL      string
	PollAttempts int
	PollInterval time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	ids, err := parseUserIDs(os.Getenv("ALLOWED_USER_IDS"))
	if err != nil {
		return nil, err
	}
	config.AllowedUserIDs = ids

	// Bot mode configuration
	config.WebhookMode = getEnvBool("WEBHOOK_MODE", false)
	config.WebhookURL = strings.TrimRight(os.Getenv("WEBHOOK_URL"), "/")
	config.Port = getEnv("PORT", "8080")

	config.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", StorageClickHouse))
	// USE_MOCK_DB is still honored for existing deployments
	if getEnvBool("USE_MOCK_DB", false) {
		config.StorageDriver = StorageMock
	}
	config.SQLitePath = getEnv("SQLITE_PATH", "data/mediabot.db")

	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHousePort, err = getEnvIntStrict("CLICKHOUSE_PORT", 9000); err != nil {
		return nil, err
	}
	config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
	config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	config.ClickHouseUseTLS = getEnvBool("CLICKHOUSE_USE_TLS", false)

	config.SessionStore = strings.ToLower(getEnv("SESSION_STORE", SessionMemory))
	config.SessionBoltPath = getEnv("SESSION_BOLT_PATH", "data/sessions.db")

	config.Gemini = GeminiConfig{
		APIKey:     os.Getenv("GEMINI_API_KEY"),
		TextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		ImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
	}
	config.TextProvider = strings.ToLower(getEnv("TEXT_PROVIDER", ProviderGemini))
	config.OpenAI = OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	config.Ollama = OllamaConfig{
		Host:  getEnv("OLLAMA_HOST", "http://localhost:11434"),
		Model: getEnv("OLLAMA_MODEL", "llava"),
	}

	config.VideoProvider = strings.ToLower(getEnv("VIDEO_PROVIDER", VideoRunway))
	if config.Runway, err = loadVideoBackend("RUNWAY", "KIE_API_KEY", 40, 30*time.Second); err != nil {
		return nil, err
	}
	if config.Replicate, err = loadVideoBackend("REPLICATE", "REPLICATE_API_TOKEN", 60, 5*time.Second); err != nil {
		return nil, err
	}
	config.ReplicateModel = os.Getenv("REPLICATE_MODEL")

	if config.VideoWorkers, err = getEnvIntStrict("VIDEO_WORKERS", 4); err != nil {
		return nil, err
	}
	if config.VideoQueueSize, err = getEnvIntStrict("VIDEO_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}
	if config.DownloadTimeout, err = getEnvDuration("DOWNLOAD_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	config.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	config.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	config.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "json"))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the selected providers have what they need
func (c *Config) Validate() error {
	if c.WebhookMode && c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
	}

	switch c.StorageDriver {
	case StorageClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_DRIVER is clickhouse")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty")
		}
	case StorageMock:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want clickhouse, sqlite or mock)", c.StorageDriver)
	}

	switch c.SessionStore {
	case SessionMemory:
	case SessionBolt:
		if c.SessionBoltPath == "" {
			return fmt.Errorf("SESSION_BOLT_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want memory or bolt)", c.SessionStore)
	}

	// Gemini always serves image generation
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch c.TextProvider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TEXT_PROVIDER is openai")
		}
	case ProviderOllama:
		if c.Ollama.Host == "" || c.Ollama.Model == "" {
			return fmt.Errorf("OLLAMA_HOST and OLLAMA_MODEL are required when TEXT_PROVIDER is ollama")
		}
	default:
		return fmt.Errorf("unknown TEXT_PROVIDER %q (want gemini, openai or ollama)", c.TextProvider)
	}

	switch c.VideoProvider {
	case VideoRunway:
		if c.Runway.APIKey == "" {
			return fmt.Errorf("KIE_API_KEY is required when VIDEO_PROVIDER is runway")
		}
	case VideoReplicate:
		if c.Replicate.APIKey == "" {
			return fmt.Errorf("REPLICATE_API_TOKEN is required when VIDEO_PROVIDER is replicate")
		}
	default:
		return fmt.Errorf("unknown VIDEO_PROVIDER %q (want runway or replicate)", c.VideoProvider)
	}

	if c.VideoWorkers <= 0 {
		return fmt.Errorf("VIDEO_WORKERS must be > 0")
	}
	if c.VideoQueueSize <= 0 {
		return fmt.Errorf("VIDEO_QUEUE_SIZE must be > 0")
	}
	return nil
}

// Video returns the settings of the selected video backend
func (c *Config) Video() VideoBackendConfig {
	if c.VideoProvider == VideoReplicate {
		return c.Replicate
	}
	return c.Runway
}

func loadVideoBackend(prefix, keyVar string, attempts int, interval time.Duration) (VideoBackendConfig, error) {
	vc := VideoBackendConfig{
		APIKey:  os.Getenv(keyVar),
		BaseURL: os.Getenv(prefix + "_BASE_URL"),
	}
	var err error
	if vc.PollAttempts, err = getEnvIntStrict(prefix+"_POLL_ATTEMPTS", attempts); err != nil {
		return vc, err
	}
	if vc.PollAttempts <= 0 {
		return vc, fmt.Errorf("%s_POLL_ATTEMPTS must be > 0", prefix)
	}
	if vc.PollInterval, err = getEnvDuration(prefix+"_POLL_INTERVAL", interval); err != nil {
		return vc, err
	}
	return vc, nil
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, idStr := range strings.Split(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID in ALLOWED_USER_IDS: %s", idStr)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// getEnvIntStrict rejects malformed numbers instead of silently using the fallback
func getEnvIntStrict(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
