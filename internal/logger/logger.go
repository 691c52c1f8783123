package logger

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

// New builds a logger writing to stderr. Stdout is reserved for status objects.
func New(environment, level string) *Logger {
	return NewWithOutput(os.Stderr, environment, level)
}

func NewWithOutput(w io.Writer, environment, level string) *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	if environment == "" || environment == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(w)

	switch level {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return NewWithOutput(io.Discard, "local", "error")
}

// WithRun tags every entry with a run id. An empty id gets a fresh uuid.
func (l *Logger) WithRun(runID string) *Logger {
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Logger{Entry: l.Entry.WithField("run_id", runID)}
}

// WithComponent scopes entries to one pipeline component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
