package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cron adapts a slog.Logger to the cron.Logger interface. Cron's chatty
// info records (wake, run, skip) are emitted at debug level.
func Cron(l *slog.Logger) cron.Logger {
	if l == nil {
		l = slog.Default()
	}
	return cronLogger{l: l}
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
