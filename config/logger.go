package config

import (
	"io"
	"log/slog"
	"strings"

	"gorm.io/gorm/logger"
)

// NewLogger builds the application logger. Production gets JSON output.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// GormLogLevel mirrors the environment: only errors in production, every statement otherwise
func GormLogLevel(cfg *Config) logger.LogLevel {
	if cfg.IsProduction() {
		return logger.Error
	}
	return logger.Info
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
