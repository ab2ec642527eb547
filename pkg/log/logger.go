package log

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

var (
	providerMu     sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

// SetProvider replaces the process-wide logger provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = p
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a component logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}

// SetupLogger installs a zerolog provider writing to w at the given level.
// Field names follow the Cloud Logging convention (severity, message), and
// library warnings raised through errors.Warn are routed to the new logger.
func SetupLogger(loglevel string, w io.Writer) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}

	zerolog.LevelFieldName = "severity"
	zerolog.MessageFieldName = "message"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	provider := NewZerologProviderWithWriter(w, level)
	SetProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn(warning.Error(), "warning", warning)
	})
	return nil
}

// ParseLevel converts a textual level into a Level.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// ToLogLevel is ParseLevel for trusted input; it panics on an unknown level.
func ToLogLevel(level string) Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
	return l
}
