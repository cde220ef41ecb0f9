package zpt

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
	LogOff
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	case LogOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// slogLevel maps l onto slog. LogOff has no slog equivalent and maps to a
// level above every record.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	case LogOff:
		return slog.LevelError + 100
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel parses debug, info, warn, error or off.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug, nil
	case "info":
		return LogInfo, nil
	case "warn", "warning":
		return LogWarn, nil
	case "error":
		return LogError, nil
	case "off", "none":
		return LogOff, nil
	default:
		return LogInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

func parseLogLevel(s string) LogLevel {
	level, _ := ParseLogLevel(s)
	return level
}

// NewLogger creates a structured logger writing to w at the given level.
// Terminals get human-readable text; anything else gets JSON lines.
func NewLogger(w io.Writer, level LogLevel) *slog.Logger {
	leveler := new(slog.LevelVar)
	leveler.Set(level.slogLevel())
	return slog.New(newHandler(w, leveler))
}

func newHandler(w io.Writer, leveler slog.Leveler) slog.Handler {
	if w == nil {
		return slog.DiscardHandler
	}
	opts := &slog.HandlerOptions{Level: leveler}
	if isTerminal(w) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	globalLogger      *slog.Logger
	globalLevel       = new(slog.LevelVar)
	globalLoggerMutex sync.RWMutex
	globalLoggerOnce  sync.Once
)

func initGlobalLogger() {
	globalLoggerOnce.Do(func() {
		globalLevel.Set(parseLogLevel(GetGlobalConfig().LogLevel).slogLevel())
		globalLoggerMutex.Lock()
		globalLogger = slog.New(newHandler(os.Stderr, globalLevel))
		globalLoggerMutex.Unlock()
	})
}

// SetLogger replaces the package logger.
func SetLogger(logger *slog.Logger) {
	initGlobalLogger()
	globalLoggerMutex.Lock()
	defer globalLoggerMutex.Unlock()
	globalLogger = logger
}

// GetLogger returns the package logger. Its level follows the global
// configuration unless it was replaced with SetLogger.
func GetLogger() *slog.Logger {
	initGlobalLogger()
	globalLoggerMutex.RLock()
	defer globalLoggerMutex.RUnlock()
	return globalLogger
}

// UpdateLoggerFromConfig updates the package logger level from the global
// configuration.
func UpdateLoggerFromConfig() {
	initGlobalLogger()
	globalLevel.Set(parseLogLevel(GetGlobalConfig().LogLevel).slogLevel())
}
