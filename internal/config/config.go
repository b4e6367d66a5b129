package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration, loaded from environment variables
type Config struct {
	Port             int
	DBPath           string
	MediaRoot        string
	APIToken         string
	TelegramBotToken string
	TelegramChatID   int64
}

// Load reads configuration from the environment with sensible defaults
func Load() *Config {
	return &Config{
		Port:             envInt("PORT", 8080),
		DBPath:           env("DB_PATH", "media_journal.db"),
		MediaRoot:        env("MEDIA_ROOT", "media"),
		APIToken:         env("WEB_API_TOKEN", ""),
		TelegramBotToken: env("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   envInt64("TELEGRAM_CHAT_ID", 0),
	}
}

// TelegramEnabled reports whether the new-content push is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}
