package bot

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPServer serves the health endpoints and the Telegram webhook
type HTTPServer struct {
	bot         *Bot
	webhookMode bool
}

// NewHTTPServer creates the HTTP surface of the bot
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
	}
}

// Routes builds the router
func (hs *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", hs.handleHealth)
	r.Get("/", hs.handleIndex)
	r.Method(http.MethodPost, "/telegram-webhook", otelhttp.NewHandler(http.HandlerFunc(hs.handleWebhook), "telegram-webhook"))

	return r
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (hs *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	mode := "polling"
	if hs.webhookMode {
		mode = "webhook"
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Media bot is running (mode: %s)", mode)
}

// handleWebhook acknowledges the update at once and processes it in the
// background so Telegram does not retry a slow delivery.
func (hs *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		hs.bot.logger.Warn("Error decoding webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	go hs.bot.HandleTelegramUpdate(update)

	w.WriteHeader(http.StatusOK)
}
