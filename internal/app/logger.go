package app

import (
	"io"

	charmLog "github.com/charmbracelet/log"
)

// Logger is the structured logging surface the engine writes to.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// charmLogger adapts a charm logger to Logger.
type charmLogger struct {
	l *charmLog.Logger
}

// NewCharmLogger wraps one charm logger.
func NewCharmLogger(l *charmLog.Logger) Logger {
	if l == nil {
		l = charmLog.New(io.Discard)
	}
	return charmLogger{l: l}
}

// discardLogger returns a logger that drops every event.
func discardLogger() Logger {
	return NewCharmLogger(charmLog.New(io.Discard))
}

func (c charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }
