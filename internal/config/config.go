package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	JWKSURL     string

	// Store configuration
	StoreBackend string // "memory", "redis" or "postgres"
	RedisAddress string
	DatabaseURL  string
	TablePrefix  string

	// Overlay call transport
	UseCall           bool
	OverlayURL        string
	OverlayProtocolID string

	// Content encryption
	ContentSecret string

	// Persistence behavior
	DefaultTopic        string
	AutoSaveInterval    time.Duration
	MaxAutoSaveVersions int
	SessionTTL          time.Duration
	ReceiptTTL          time.Duration

	// Chain-broadcast collaborator
	ChainBroadcastURL string

	// LogDir, when set, mirrors structured logs to timestamped files.
	LogDir      string
	MaxLogFiles int

	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		JWKSURL:     getEnv("JWKS_URL", ""),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		RedisAddress: getEnv("REDIS_ADDRESS", "localhost:6379"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		TablePrefix:  getTablePrefix(env),

		UseCall:           getEnv("USE_CALL", "false") == "true",
		OverlayURL:        getEnv("OVERLAY_URL", "http://localhost:8787"),
		OverlayProtocolID: getEnv("OVERLAY_PROTOCOL_ID", "quillvault-docs"),

		ContentSecret: getEnv("CONTENT_SECRET", ""),

		DefaultTopic:        getEnv("DEFAULT_TOPIC", "documents"),
		AutoSaveInterval:    getDuration("AUTOSAVE_INTERVAL", DefaultAutoSaveInterval),
		MaxAutoSaveVersions: getInt("MAX_AUTOSAVE_VERSIONS", DefaultMaxAutoSaveVersions),
		SessionTTL:          getDuration("SESSION_TTL", DefaultSessionTTL),
		ReceiptTTL:          getDuration("RECEIPT_TTL", DefaultReceiptTTL),

		ChainBroadcastURL: getEnv("CHAIN_BROADCAST_URL", ""),

		LogDir:      getEnv("LOG_DIR", ""),
		MaxLogFiles: getInt("MAX_LOG_FILES", 10),

		// Debug defaults to true outside prod
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
