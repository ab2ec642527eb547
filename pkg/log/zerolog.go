package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ZerologProvider implements LoggerProvider on top of zerolog. All loggers
// created by one provider share its level, so SetLevel takes effect for
// loggers handed out earlier as well.
type ZerologProvider struct {
	base  zerolog.Logger
	level *atomic.Int64
}

// NewZerologProvider creates a provider writing JSON lines to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter creates a provider writing JSON lines to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) *ZerologProvider {
	lv := new(atomic.Int64)
	lv.Store(int64(level))
	return &ZerologProvider{
		base:  zerolog.New(w).With().Timestamp().Logger(),
		level: lv,
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base, level: p.level}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int64
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(LevelDebug, msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(LevelInfo, msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(LevelWarn, msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(LevelError, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i < len(fields); {
		if err, ok := fields[i].(error); ok {
			ctx = ctx.AnErr(ErrAttrKey, err)
			i++
			continue
		}
		if i+1 >= len(fields) {
			ctx = ctx.Interface(badKey, fields[i])
			break
		}
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.AnErr(key, err)
		} else {
			ctx = ctx.Interface(key, fields[i+1])
		}
		i += 2
	}
	return &zerologLogger{zl: ctx.Logger(), level: l.level}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return int64(level) >= l.level.Load()
}

func (l *zerologLogger) emit(level Level, msg string, fields []any) {
	if !l.Enabled(context.Background(), level) {
		return
	}
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelInfo:
		ev = l.zl.Info()
	case LevelWarn:
		ev = l.zl.Warn()
	default:
		ev = l.zl.Error()
	}
	appendFields(ev, fields)
	ev.Msg(msg)
}

const badKey = "!BADKEY"

// appendFields adds alternating key/value pairs to ev. A bare error value in
// key position is logged under ErrAttrKey.
func appendFields(ev *zerolog.Event, fields []any) {
	for i := 0; i < len(fields); {
		if err, ok := fields[i].(error); ok {
			appendError(ev, ErrAttrKey, err)
			i++
			continue
		}
		if i+1 >= len(fields) {
			ev.Interface(badKey, fields[i])
			return
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			appendError(ev, key, v)
		case zerolog.LogObjectMarshaler:
			ev.Object(key, v)
		default:
			ev.Interface(key, v)
		}
		i += 2
	}
}

func appendError(ev *zerolog.Event, key string, err error) {
	ev.AnErr(key, err)
	var detail zerolog.LogObjectMarshaler
	if errors.As(err, &detail) {
		ev.Object(key+".detail", detail)
	}
	if st := extractStacktrace(err); st != "" {
		ev.Str(StacktraceAttrKey, st)
	}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
