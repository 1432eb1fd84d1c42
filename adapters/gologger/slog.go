package gologger

import (
	"context"
	"log/slog"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

// SlogLogger writes glog calls to a slog handler. Trace maps below debug and
// Fatal exits after logging.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

const LevelTrace = slog.LevelDebug - 4

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, ctx: context.Background()}
}

// NewJSONLogger builds a SlogLogger writing JSON lines to stdout at level.
func NewJSONLogger(level string) *SlogLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	return NewSlogLogger(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return LevelTrace
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

func (l *SlogLogger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *SlogLogger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
	os.Exit(1)
}

func (l *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

func (l *SlogLogger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Log(l.ctx, level, msg, args...)
}

var _ glog.Logger = (*SlogLogger)(nil)
