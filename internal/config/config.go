// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	BotToken      string
	BotUserID     int64
	GatewayURL    string
	APIBaseURL    string
	DatabasePath  string
	LogLevel      string
	CommandPrefix string
	Cooldown      time.Duration
	MaxKeywords   int
	ContextBefore int
	ContextAfter  int
	MetricsAddr   string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	botUserID, err := envInt64("BOT_USER_ID", 0)
	if err != nil {
		return nil, err
	}
	if botUserID == 0 {
		return nil, fmt.Errorf("BOT_USER_ID is required")
	}

	cooldownSeconds, err := envInt("COOLDOWN_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	if cooldownSeconds < 1 {
		return nil, fmt.Errorf("COOLDOWN_SECONDS must be positive")
	}

	maxKeywords, err := envInt("MAX_KEYWORDS", 100)
	if err != nil {
		return nil, err
	}
	before, err := envInt("CONTEXT_BEFORE", 2)
	if err != nil {
		return nil, err
	}
	after, err := envInt("CONTEXT_AFTER", 2)
	if err != nil {
		return nil, err
	}

	return &Config{
		BotToken:      token,
		BotUserID:     botUserID,
		GatewayURL:    envOrDefault("GATEWAY_URL", "wss://gateway.example.chat/stream"),
		APIBaseURL:    envOrDefault("API_BASE_URL", "https://api.example.chat"),
		DatabasePath:  envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		CommandPrefix: envOrDefault("COMMAND_PREFIX", "!hl"),
		Cooldown:      time.Duration(cooldownSeconds) * time.Second,
		MaxKeywords:   maxKeywords,
		ContextBefore: before,
		ContextAfter:  after,
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envInt64(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
