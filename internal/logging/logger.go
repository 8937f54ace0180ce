// Package logging provides structured logging for classlog.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Logger provides structured JSON logging.
type Logger struct {
	l *logrus.Logger
}

var (
	// global logger instance
	global *Logger
	once   sync.Once
)

// Init initializes the global logger.
func Init(out io.Writer, minLevel LogLevel) {
	once.Do(func() {
		global = newLogger(out, minLevel)
	})
}

// Get returns the global logger instance.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, LevelInfo)
	}
	return global
}

func newLogger(out io.Writer, minLevel LogLevel) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	l.SetLevel(toLogrusLevel(minLevel))
	return &Logger{l: l}
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Debug logs a debug message with optional context.
func (l *Logger) Debug(message string, context map[string]interface{}) {
	l.l.WithFields(logrus.Fields(context)).Debug(message)
}

// Info logs an info message with optional context.
func (l *Logger) Info(message string, context map[string]interface{}) {
	l.l.WithFields(logrus.Fields(context)).Info(message)
}

// Warn logs a warning message with optional context.
func (l *Logger) Warn(message string, context map[string]interface{}) {
	l.l.WithFields(logrus.Fields(context)).Warn(message)
}

// Error logs an error message with optional context.
func (l *Logger) Error(message string, err error, context map[string]interface{}) {
	entry := l.l.WithFields(logrus.Fields(context))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// ErrorWithCode logs an error message with an error code for the UI shell.
func (l *Logger) ErrorWithCode(message string, code string, err error, context map[string]interface{}) {
	entry := l.l.WithFields(logrus.Fields(context)).WithField("code", code)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// Debug logs a debug message using the global logger.
func Debug(message string, context map[string]interface{}) {
	Get().Debug(message, context)
}

// Info logs an info message using the global logger.
func Info(message string, context map[string]interface{}) {
	Get().Info(message, context)
}

// Warn logs a warning message using the global logger.
func Warn(message string, context map[string]interface{}) {
	Get().Warn(message, context)
}

// Error logs an error message using the global logger.
func Error(message string, err error, context map[string]interface{}) {
	Get().Error(message, err, context)
}

// ErrorWithCode logs an error with a code using the global logger.
func ErrorWithCode(message string, code string, err error, context map[string]interface{}) {
	Get().ErrorWithCode(message, code, err, context)
}
