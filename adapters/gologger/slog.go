package gologger

import (
	"context"
	"log/slog"

	glog "github.com/goliatone/go-logger/glog"
)

// SlogLogger backs the glog contract with a log/slog logger for binaries
// that do not bring their own go-logger implementation.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, ctx: context.Background()}
}

func (l *SlogLogger) Trace(msg string, args ...any) {
	l.logger.Log(l.ctx, slog.LevelDebug-4, msg, args...)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.DebugContext(l.ctx, msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.InfoContext(l.ctx, msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.WarnContext(l.ctx, msg, args...)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.ErrorContext(l.ctx, msg, args...)
}

// Fatal logs at error level plus four; it does not exit.
func (l *SlogLogger) Fatal(msg string, args ...any) {
	l.logger.Log(l.ctx, slog.LevelError+4, msg, args...)
}

func (l *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

// SlogProvider hands out SlogLoggers tagged with the requested name.
type SlogProvider struct {
	logger *slog.Logger
}

func NewSlogProvider(logger *slog.Logger) *SlogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogProvider{logger: logger}
}

func (p *SlogProvider) GetLogger(name string) glog.Logger {
	return NewSlogLogger(p.logger.With("logger", name))
}

var (
	_ glog.Logger         = (*SlogLogger)(nil)
	_ glog.LoggerProvider = (*SlogProvider)(nil)
)
