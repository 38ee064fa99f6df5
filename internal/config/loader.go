package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads an optional .env file, loads configuration from environment
// variables, validates it, and ensures required directories exist.
// Variables that cannot be parsed are dropped so their default applies.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg, err := process()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := createDirs(cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return cfg, nil
}

func process() (*Config, error) {
	dropped := map[string]bool{}
	for {
		var cfg Config
		err := envconfig.Process("", &cfg)
		if err == nil {
			return &cfg, nil
		}

		var parseErr *envconfig.ParseError
		if !errors.As(err, &parseErr) || dropped[parseErr.KeyName] {
			return nil, fmt.Errorf("failed to process environment variables: %w", err)
		}

		slog.Warn("malformed environment variable, using default",
			"key", parseErr.KeyName,
			"value", parseErr.Value,
			"error", parseErr.Err,
		)
		dropped[parseErr.KeyName] = true
		if err := os.Unsetenv(parseErr.KeyName); err != nil {
			return nil, fmt.Errorf("failed to drop %s: %w", parseErr.KeyName, err)
		}
	}
}

func createDirs(cfg *Config) error {
	dirs := []string{
		cfg.OutputFolder,
		cfg.DeliveryFolder,
		filepath.Dir(cfg.StateFile),
		filepath.Dir(cfg.CookiesFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("directory created or verified", "path", dir)
	}
	return nil
}

// SetupLogger configures the global slog logger based on configuration.
// Supports "json" or "text" formats and log levels: debug, info, warn, error.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
