// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	// TelegramBotToken authenticates the bot against the Telegram API.
	TelegramBotToken string `koanf:"TELEGRAM_BOT_TOKEN"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `koanf:"DATABASE_URL"`

	// GeminiAPIKey enables the AI parse endpoint. Optional; the endpoint
	// falls back to the rule-based parser result when unset.
	GeminiAPIKey string `koanf:"GEMINI_API_KEY"`

	// HTTPAddr is the listen address for the webhook/API server.
	HTTPAddr string `koanf:"HTTP_ADDR"`

	// AlertChatID is the Telegram chat that receives bank-SMS capture
	// confirmations.
	AlertChatID int64 `koanf:"ALERT_CHAT_ID"`

	LogLevel string `koanf:"LOG_LEVEL"`
}

// Load reads configuration from the environment, honouring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{
		HTTPAddr: ":8080",
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
