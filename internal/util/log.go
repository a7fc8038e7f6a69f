// Package util provides shared utility functions.
package util

import (
	"fmt"
	"io"

	"github.com/pion/logging"
	"github.com/pterm/pterm"
)

// LoggerFactory hands out pion leveled loggers that print through a pterm logger.
// It is also installed on the WebRTC SettingEngine so engine logs share the sink.
type LoggerFactory struct {
	logger *pterm.Logger
}

// NewLoggerFactory creates a factory writing to w. Debug enables debug output.
func NewLoggerFactory(w io.Writer, debug bool) *LoggerFactory {
	level := pterm.LogLevelInfo
	if debug {
		level = pterm.LogLevelDebug
	}

	logger := pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(level).
		WithTime(true).
		WithTimeFormat("02 Jan 15:04:05").
		WithMaxWidth(1000)

	return &LoggerFactory{logger: logger}
}

// NewLogger implements logging.LoggerFactory.
func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{logger: f.logger, scope: scope}
}

type scopedLogger struct {
	logger *pterm.Logger
	scope  string
}

func (l *scopedLogger) args() []pterm.LoggerArgument {
	return l.logger.Args("scope", l.scope)
}

func (l *scopedLogger) Trace(msg string) { l.logger.Trace(msg, l.args()) }
func (l *scopedLogger) Debug(msg string) { l.logger.Debug(msg, l.args()) }
func (l *scopedLogger) Info(msg string)  { l.logger.Info(msg, l.args()) }
func (l *scopedLogger) Warn(msg string)  { l.logger.Warn(msg, l.args()) }
func (l *scopedLogger) Error(msg string) { l.logger.Error(msg, l.args()) }

func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	l.Trace(fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// Scoped returns a logger for scope, falling back to pion's default factory when
// factory is nil.
func Scoped(factory logging.LoggerFactory, scope string) logging.LeveledLogger {
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	return factory.NewLogger(scope)
}
