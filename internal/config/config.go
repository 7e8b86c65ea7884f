package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Calendly provider
	CalendlyToken        string
	CalendlyBaseURL      string
	CalendlyWebhookKey   string
	CalendlyEventType    string
	UseMockProvider      bool
	ProviderTimeout      time.Duration
	ProviderRetries      int
	ProviderRetryBackoff time.Duration

	// Availability scan
	ScanDays     int
	MaxSlots     int
	SyncLookback time.Duration
	SyncPageSize int

	// Session store
	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	// LLM
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration

	// Clinic identity
	ClinicName  string
	ClinicPhone string

	// HTTP surface
	CORSAllowedOrigins []string
	ChatRatePerSecond  int
	ChatBurst          int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		CalendlyToken:        getEnv("CALENDLY_TOKEN", ""),
		CalendlyBaseURL:      getEnv("CALENDLY_BASE_URL", "https://api.calendly.com"),
		CalendlyWebhookKey:   getEnv("CALENDLY_WEBHOOK_SIGNING_KEY", ""),
		CalendlyEventType:    getEnv("CALENDLY_EVENT_TYPE", ""),
		UseMockProvider:      getEnvAsBool("USE_MOCK_PROVIDER", false),
		ProviderTimeout:      getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderRetries:      getEnvAsInt("PROVIDER_RETRIES", 2),
		ProviderRetryBackoff: getEnvAsDuration("PROVIDER_RETRY_BACKOFF", 500*time.Millisecond),

		ScanDays:     getEnvAsInt("AVAILABILITY_SCAN_DAYS", 7),
		MaxSlots:     getEnvAsInt("AVAILABILITY_MAX_SLOTS", 4),
		SyncLookback: getEnvAsDuration("SYNC_LOOKBACK", 7*24*time.Hour),
		SyncPageSize: getEnvAsInt("SYNC_PAGE_SIZE", 50),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),

		LLMProvider:  strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "auto"))),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 15*time.Second),

		ClinicName:  getEnv("CLINIC_NAME", "CarePlus Family Clinic"),
		ClinicPhone: getEnv("CLINIC_PHONE", "+1-555-123-4567"),

		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ChatRatePerSecond:  getEnvAsInt("CHAT_RATE_PER_SECOND", 5),
		ChatBurst:          getEnvAsInt("CHAT_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// splitAndTrim splits a comma-separated list, dropping empty entries.
func splitAndTrim(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
