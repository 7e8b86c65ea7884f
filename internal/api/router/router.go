package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/careplus/appointment-agent/internal/http/handlers"
	httpmiddleware "github.com/careplus/appointment-agent/internal/http/middleware"
	"github.com/careplus/appointment-agent/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Chat               *handlers.ChatHandler
	Bookings           *handlers.BookingsHandler
	CalendlyWebhook    *handlers.CalendlyWebhookHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ChatRatePerSecond limits chat messages per client IP. Zero disables
	// the limiter.
	ChatRatePerSecond float64
	ChatBurst         int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/health", health)
	r.Get("/healthz", health)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.CalendlyWebhook != nil {
		r.Post("/webhooks/calendly", cfg.CalendlyWebhook.Handle)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Chat != nil {
			chat := api
			if cfg.ChatRatePerSecond > 0 {
				chat = api.With(httpmiddleware.RateLimit(cfg.ChatRatePerSecond, cfg.ChatBurst))
			}
			chat.Post("/chat", cfg.Chat.HandleMessage)
		}
		if cfg.Bookings != nil {
			api.Post("/bookings/sync", cfg.Bookings.Sync)
			api.Route("/bookings/{ref}", func(b chi.Router) {
				b.Get("/", cfg.Bookings.Get)
				b.Post("/cancel", cfg.Bookings.Cancel)
			})
		}
	})

	return r
}
