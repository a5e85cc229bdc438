package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig — параметры логгера.
type LogConfig struct {
	// Level — уровень: debug, info, warn, error (регистр не важен, default: info).
	Level string

	// Format — json (default) или text.
	Format string

	// Service — имя процесса, добавляется в каждую запись.
	Service string

	// Output — куда писать (default: os.Stdout).
	Output io.Writer
}

// LogConfigFromEnv читает LOG_LEVEL и LOG_FORMAT.
func LogConfigFromEnv(service string) LogConfig {
	return LogConfig{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
		Service: service,
	}
}

// ParseLevel разбирает уровень логирования. Неизвестные значения дают INFO.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger создаёт логгер по конфигурации.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

// SetupLogger создаёт логгер из окружения и делает его глобальным.
func SetupLogger(service string) *slog.Logger {
	logger := NewLogger(LogConfigFromEnv(service))
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext извлекает логгер из контекста или возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithInstanceID возвращает логгер с instance_id.
func WithInstanceID(logger *slog.Logger, instanceID string) *slog.Logger {
	return logger.With("instance_id", instanceID)
}

// WithNodeID возвращает логгер с node_id (полный ID узла instance).
func WithNodeID(logger *slog.Logger, nodeID string) *slog.Logger {
	return logger.With("node_id", nodeID)
}

// WithBlueprintID возвращает логгер с blueprint_id.
func WithBlueprintID(logger *slog.Logger, blueprintID string) *slog.Logger {
	return logger.With("blueprint_id", blueprintID)
}
