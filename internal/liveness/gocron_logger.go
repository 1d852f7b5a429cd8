package liveness

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogger routes scheduler logs through slog.
type gocronLogger struct {
	logger *slog.Logger
}

//nolint:ireturn // gocron.WithLogger takes the interface.
func newGocronLogger(logger *slog.Logger) gocron.Logger {
	return &gocronLogger{logger: logger}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.logger.Debug(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
