package log

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
)

// LevelAlignedString returns the 5-character name of l.
func LevelAlignedString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO "
	case LevelWarn:
		return "WARN "
	case LevelError:
		return "ERROR"
	}
	return l.String()
}

// Logger tags every record with the module it was written for.
type Logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// With returns a logger that adds attrs to every record.
func (l *Logger) With(attrs ...any) *Logger {
	return &Logger{inner: l.inner.With(attrs...)}
}

func (l *Logger) Enabled(level slog.Level) bool {
	return l.inner.Enabled(context.Background(), level)
}

func (l *Logger) write(level slog.Level, module, msg string, attrs ...any) {
	if !l.Enabled(level) {
		return
	}
	var pcs [1]uintptr
	// skip runtime.Callers, write and the level method
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String(moduleKey, module))
	}
	r.Add(attrs...)
	_ = l.inner.Handler().Handle(context.Background(), r)
}

func (l *Logger) Trace(module, msg string, attrs ...any) { l.write(LevelTrace, module, msg, attrs...) }
func (l *Logger) Debug(module, msg string, attrs ...any) { l.write(LevelDebug, module, msg, attrs...) }
func (l *Logger) Info(module, msg string, attrs ...any)  { l.write(LevelInfo, module, msg, attrs...) }
func (l *Logger) Warn(module, msg string, attrs ...any)  { l.write(LevelWarn, module, msg, attrs...) }
func (l *Logger) Error(module, msg string, attrs ...any) { l.write(LevelError, module, msg, attrs...) }
