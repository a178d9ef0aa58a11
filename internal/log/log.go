package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, true)
)

func newLogger(w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(toZerolog(l))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output as JSON lines. Used by tests to capture
// diagnostics.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	lvl := logger.GetLevel()
	logger = newLogger(w, false).Level(lvl)
}

func Debug(msg string, kv ...any) {
	emit(current().Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	emit(current().Info(), msg, kv)
}

func Warn(msg string, kv ...any) {
	emit(current().Warn(), msg, kv)
}

func Error(msg string, err error, kv ...any) {
	emit(current().Error().Err(err), msg, kv)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// emit attaches kv pairs (key, value, key, value, ...) and writes the event.
// Non-string keys are skipped; an odd trailing value is ignored.
func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
