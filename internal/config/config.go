package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. Values come from the
// environment; a .env file in the working directory is loaded first when
// present.
type Config struct {
	// Backend settings
	APIBaseURL  string        `env:"SUPPORT_API_URL" envDefault:"http://localhost:8000"`
	HTTPTimeout time.Duration `env:"SUPPORT_HTTP_TIMEOUT" envDefault:"30s"`

	// Reply synthesis (stand-in for a real inference backend)
	ReplyDelay time.Duration `env:"SUPPORT_REPLY_DELAY" envDefault:"1s"`

	// Logging. The TUI owns the terminal, so logs go to a file.
	LogFile string `env:"SUPPORT_LOG_FILE" envDefault:"supportchat.log"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("backend URL cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	return nil
}
