package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger once. Unknown levels fall back to WARN,
// unknown formats to text. A nil writer means stderr so stdout stays free for
// command output.
func Setup(level, format string, w io.Writer) {
	once.Do(func() {
		logger = newLogger(level, format, w)
		slog.SetDefault(logger)
	})
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("WARN", "text", nil)
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithRun returns a logger with the run_id field set.
func WithRun(id string) *slog.Logger {
	return Get().With(slog.String("run_id", id))
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }

func Info(msg string, args ...any) { Get().Info(msg, args...) }

func Warn(msg string, args ...any) { Get().Warn(msg, args...) }

func Error(msg string, args ...any) { Get().Error(msg, args...) }
