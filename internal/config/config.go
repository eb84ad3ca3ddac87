package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/PabloGalante/lexcite/internal/observability"
)

const defaultDelay = 1500 * time.Millisecond

type Config struct {
	Port string

	// ResponseDelay is the artificial latency before an answer is shown.
	ResponseDelay time.Duration

	// CorpusFile is a TOML corpus; empty means the built-in one.
	CorpusFile string

	LogLevel slog.Level
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	delay, err := getDurationEnv("LEXCITE_RESPONSE_DELAY", defaultDelay)
	if err != nil {
		return nil, err
	}

	level, err := observability.ParseLevel(getEnv("LEXCITE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LEXCITE_LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:          getEnv("LEXCITE_PORT", "8080"),
		ResponseDelay: delay,
		CorpusFile:    getEnv("LEXCITE_CORPUS_FILE", ""),
		LogLevel:      level,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden after Load.
func (c *Config) Validate() error {
	if c.ResponseDelay < 0 {
		return fmt.Errorf("response delay must not be negative, got %s", c.ResponseDelay)
	}
	if c.Port == "" {
		return fmt.Errorf("port must be set")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
