// package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// backend
	APIURL      string
	InitData    string // telegram mini app initData, sent as "tma <initData>"
	HTTPTimeout time.Duration
	APIRPS      float64

	// link polling
	LinkPollTimeout  time.Duration
	LinkPollInterval time.Duration

	// persisted mirror
	MirrorBackend string // memory, sqlite, postgres, redis
	MirrorDSN     string
	RedisURL      string
	MirrorTTL     time.Duration

	// nats
	NatsURL string

	// server
	HTTPPort   int
	MiniAppURL string

	// mock backend
	MockPort      int
	MockSeedFile  string
	MockLinkDelay time.Duration

	// bot system user (link-telegram on behalf of the bot)
	BotSystemEmail    string
	BotSystemPassword string

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	// missing .env is fine, real environment wins anyway
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:            getEnv("API_URL", "http://localhost:3001"),
		InitData:          getEnv("TMA_INIT_DATA", ""),
		HTTPTimeout:       getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		LinkPollTimeout:   getEnvDuration("LINK_POLL_TIMEOUT", 15*time.Second),
		LinkPollInterval:  getEnvDuration("LINK_POLL_INTERVAL", time.Second),
		MirrorBackend:     getEnv("MIRROR_BACKEND", "sqlite"),
		MirrorDSN:         getEnv("MIRROR_DSN", "./storage/mirror.db"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MirrorTTL:         getEnvDuration("MIRROR_TTL", 24*time.Hour),
		NatsURL:           getEnv("NATS_URL", ""),
		HTTPPort:          getEnvInt("HTTP_PORT", 3100),
		MiniAppURL:        getEnv("MINIAPP_URL", ""),
		MockPort:          getEnvInt("MOCK_PORT", 3001),
		MockSeedFile:      getEnv("MOCK_SEED_FILE", ""),
		MockLinkDelay:     getEnvDuration("MOCK_LINK_DELAY", 3*time.Second),
		BotSystemEmail:    getEnv("BOT_SYSTEM_EMAIL", ""),
		BotSystemPassword: getEnv("BOT_SYSTEM_PASSWORD", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", "./logs/app.log"),
	}

	cfg.APIRPS = getEnvFloat("API_RPS", 5)

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("1500ms", "15s") or a bare number of milliseconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
