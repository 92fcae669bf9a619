package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger is a small key/value logger handed to every component at
// construction time. Nothing in the module logs through a package global.
type Logger struct {
	sl *slog.Logger
}

// New returns a Logger writing text lines to w at the given minimum level.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slog()})
	return &Logger{sl: slog.New(h)}
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(sl *slog.Logger) *Logger {
	if sl == nil {
		return Nop()
	}
	return &Logger{sl: sl}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{sl: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a config string to a Level; unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying slog.Logger for libraries that want one
// (goose, http.Server.ErrorLog).
func (l *Logger) Slog() *slog.Logger {
	return l.get().sl
}

// With returns a child logger that always carries kv.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sl: l.get().sl.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.get().sl.Log(context.Background(), slog.LevelDebug, msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.get().sl.Log(context.Background(), slog.LevelInfo, msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.get().sl.Log(context.Background(), slog.LevelWarn, msg, kv...)
}

func (l *Logger) Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	l.get().sl.Log(context.Background(), slog.LevelError, msg, extended...)
}

// get makes a nil *Logger usable so optional loggers need no guards.
func (l *Logger) get() *Logger {
	if l == nil || l.sl == nil {
		return Nop()
	}
	return l
}

// RedactURL hides sensitive parts of a URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "url://...(redacted)"
	}
	i += 3

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
