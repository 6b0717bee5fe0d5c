package logging

import (
	"log/slog"
)

// Logger is the logging surface consumed by library packages.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// SlogAdapter exposes a *slog.Logger through the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger. A nil logger means slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Debug(msg string, args ...interface{}) {
	a.logger.Debug(msg, args...)
}

func (a *SlogAdapter) Info(msg string, args ...interface{}) {
	a.logger.Info(msg, args...)
}

func (a *SlogAdapter) Warn(msg string, args ...interface{}) {
	a.logger.Warn(msg, args...)
}

func (a *SlogAdapter) Error(msg string, args ...interface{}) {
	a.logger.Error(msg, args...)
}

// With returns an adapter whose records carry args in addition to the
// receiver's attributes.
func (a *SlogAdapter) With(args ...interface{}) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// Logger returns the wrapped *slog.Logger.
func (a *SlogAdapter) Logger() *slog.Logger {
	return a.logger
}

// DefaultLogger wraps slog.Default().
func DefaultLogger() *SlogAdapter {
	return NewSlogAdapter(slog.Default())
}

// OrDefault returns l, or DefaultLogger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return DefaultLogger()
	}
	return l
}
