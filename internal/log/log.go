// Package log is the process-wide structured logger. Every package logs
// through it so one Init call decides level and format.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// FormatEnv selects JSON output when set to "json".
const FormatEnv = "YOLOFACE_LOG_FORMAT"

var (
	logger *slog.Logger
	once   sync.Once
)

// Init configures the logger. Only the first call has an effect; L calls it
// with "info" when nothing else did.
func Init(level string) {
	once.Do(func() {
		logger = newLogger(os.Stderr, level, os.Getenv(FormatEnv))
		slog.SetDefault(logger)
	})
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLevel accepts slog level names in any case and falls back to info.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func L() *slog.Logger {
	Init("info")
	return logger
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

// With returns a child logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
