package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careplus/appointment-agent/internal/api/router"
	"github.com/careplus/appointment-agent/internal/availability"
	"github.com/careplus/appointment-agent/internal/bookings"
	"github.com/careplus/appointment-agent/internal/calendly"
	"github.com/careplus/appointment-agent/internal/clinic"
	appconfig "github.com/careplus/appointment-agent/internal/config"
	"github.com/careplus/appointment-agent/internal/conversation"
	"github.com/careplus/appointment-agent/internal/faq"
	"github.com/careplus/appointment-agent/internal/http/handlers"
	"github.com/careplus/appointment-agent/internal/observability/metrics"
	"github.com/careplus/appointment-agent/pkg/logging"
)

func main() {
	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting appointment-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	provider := buildProvider(cfg, logger)
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	repo, processed := buildBookingStores(pool, logger)

	service := bookings.NewService(repo, provider, logger)
	reconciler := bookings.NewReconciler(service, repo, provider, processed, cfg.SyncLookback, cfg.SyncPageSize, logger)
	resolver := availability.NewResolver(provider, cfg.CalendlyEventType,
		cfg.ScanDays, cfg.MaxSlots, cfg.ProviderRetries, cfg.ProviderRetryBackoff, logger)

	profile := clinic.DefaultProfile(cfg.ClinicName, cfg.ClinicPhone)
	sessions := buildSessionStore(cfg, logger)
	llm := buildLLM(ctx, cfg, logger)

	controller := conversation.NewController(conversation.ControllerConfig{
		Sessions:   sessions,
		Resolver:   resolver,
		Bookings:   service,
		Reconciler: reconciler,
		Retriever:  faq.NewKeywordRetriever(profile),
		Profile:    profile,
		LLM:        llm,
		Logger:     logger.WithComponent("conversation"),
	})

	metricsHandler, chatMetrics, webhookMetrics := setupMetrics()

	r := router.New(&router.Config{
		Logger:             logger,
		Chat:               handlers.NewChatHandler(controller, chatMetrics, logger.WithComponent("chat")),
		Bookings:           handlers.NewBookingsHandler(service, reconciler, logger.WithComponent("bookings")),
		CalendlyWebhook:    handlers.NewCalendlyWebhookHandler(reconciler, cfg.CalendlyWebhookKey, webhookMetrics, logger.WithComponent("webhooks")),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRatePerSecond:  float64(cfg.ChatRatePerSecond),
		ChatBurst:          cfg.ChatBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	if pool != nil {
		pool.Close()
	}
	if closer, ok := sessions.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	logger.Info("server exited")
}

// buildProvider selects the scheduling provider. The mock keeps local
// development working without Calendly credentials.
func buildProvider(cfg *appconfig.Config, logger *logging.Logger) calendly.Provider {
	if cfg.UseMockProvider || cfg.CalendlyToken == "" {
		if !cfg.UseMockProvider {
			logger.Warn("no Calendly token configured, using mock provider")
		}
		return calendly.NewMockProvider()
	}
	return calendly.NewClient(cfg.CalendlyToken, cfg.CalendlyBaseURL, cfg.ProviderTimeout, logger.WithComponent("calendly"))
}

// connectPostgresPool returns nil when no database URL is configured.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

// buildBookingStores picks Postgres-backed stores when a pool exists and
// in-memory stores otherwise.
func buildBookingStores(pool *pgxpool.Pool, logger *logging.Logger) (bookings.Repository, bookings.ProcessedStore) {
	if pool == nil {
		logger.Warn("no DATABASE_URL configured, bookings are in-memory")
		return bookings.NewInMemoryRepository(), bookings.NewInMemoryProcessedStore()
	}
	return bookings.NewPostgresRepository(pool), bookings.NewPostgresProcessedStore(pool)
}

func buildSessionStore(cfg *appconfig.Config, logger *logging.Logger) conversation.SessionStore {
	if cfg.SessionBackend == "redis" {
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
		return conversation.NewRedisSessionStore(conversation.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			UseTLS:   cfg.RedisTLS,
			TTL:      cfg.SessionTTL,
		})
	}
	return conversation.NewInMemorySessionStore(cfg.SessionTTL)
}

// buildLLM returns nil when no model is configured; the controller falls
// back to templates.
func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) conversation.LLMClient {
	if cfg.LLMProvider == "none" {
		return nil
	}
	if cfg.GeminiAPIKey == "" {
		if cfg.LLMProvider == "gemini" {
			logger.Error("LLM_PROVIDER=gemini but GEMINI_API_KEY is empty")
			os.Exit(1)
		}
		logger.Warn("no Gemini API key configured, free-text replies use templates")
		return nil
	}
	gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	static := &conversation.StaticLLMClient{}
	return conversation.NewFallbackLLMClient(gemini, static, logger.WithComponent("llm"))
}

func setupMetrics() (http.Handler, *metrics.ChatMetrics, *metrics.WebhookMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		metrics.NewChatMetrics(reg),
		metrics.NewWebhookMetrics(reg)
}
