package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// WhatsApp Cloud API (Meta Graph)
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	GraphAPIVersion       string
	GraphAPIBaseURL       string
	WebhookVerifyToken    string
	WebhookAppSecret      string

	// Commerce API backing the catalog and purchase endpoints
	CommerceBaseURL  string
	CatalogImagePath string

	// Conversation state backend: "memory" or "redis"
	StateBackend  string
	PendingTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AuditLogPath       string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WhatsAppAccessToken:   getEnv("API_KEY", ""),
		WhatsAppPhoneNumberID: getEnv("PHONE_NUMBER_ID", ""),
		GraphAPIVersion:       getEnv("VERSION", "v21.0"),
		GraphAPIBaseURL:       getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com"),
		WebhookVerifyToken:    getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		WebhookAppSecret:      getEnv("WEBHOOK_APP_SECRET", ""),

		CommerceBaseURL:  getEnv("URL_BASE_DB", ""),
		CatalogImagePath: getEnv("LOC_CATALOGO", ""),

		StateBackend:  strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "memory"))),
		PendingTTL:    getEnvAsDuration("PENDING_TTL", 0),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AuditLogPath:       getEnv("AUDIT_LOG_PATH", "logs/api_log.txt"),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
	}
}

// CatalogImageURL joins the commerce base URL with the catalog image location.
func (c *Config) CatalogImageURL() string {
	if c.CommerceBaseURL == "" || c.CatalogImagePath == "" {
		return ""
	}
	return strings.TrimRight(c.CommerceBaseURL, "/") + "/" + strings.TrimLeft(c.CatalogImagePath, "/")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
