package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures the process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	Writer io.Writer
}

var (
	once sync.Once
	root *slog.Logger
)

// Init builds the process logger once and installs it as slog's default.
// The text format uses a tint handler for interactive use; json is for
// production log shipping.
func Init(opts Options) *slog.Logger {
	once.Do(func() {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		level := ParseLevel(opts.Level)

		var handler slog.Handler
		if strings.EqualFold(opts.Format, "json") {
			handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		} else {
			handler = tint.NewHandler(w, &tint.Options{
				Level:      level,
				TimeFormat: time.TimeOnly,
			})
		}

		root = slog.New(handler)
		slog.SetDefault(root)
	})
	return root
}

// L returns the process logger, initializing with defaults if Init was
// never called.
func L() *slog.Logger {
	if root == nil {
		return Init(Options{})
	}
	return root
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
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
