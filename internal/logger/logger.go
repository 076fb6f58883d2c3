package logger

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slog"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "production"
)

// New builds the process logger for an environment. An explicit level
// overrides the environment default.
func New(env, level string) *slog.Logger {
	return NewWriter(os.Stderr, env, level)
}

func NewWriter(w io.Writer, env, level string) *slog.Logger {
	switch env {
	case EnvDev:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}))
	case EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)}))
	default:
		opts := PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)},
		}
		return slog.New(opts.NewPrettyHandler(w))
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return def
}

// Err is the attribute every component uses for errors.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
