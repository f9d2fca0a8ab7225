package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var base = newBase(os.Stdout, logrus.InfoLevel)

func newBase(out io.Writer, lvl logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	return l
}

type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup configures the process-wide sink. Loggers created before Setup pick
// up the change as well.
func Setup(o Options) error {
	lvl := logrus.InfoLevel
	if o.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(o.Level))
		if err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
		lvl = parsed
	}
	base.SetLevel(lvl)
	if o.File != "" {
		base.SetOutput(&lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     28,
			Compress:   true,
		})
	}
	return nil
}

type Logger struct {
	service string
	entry   *logrus.Entry
}

func New(service string) *Logger {
	return &Logger{service: service, entry: base.WithFields(logrus.Fields{
		"service":  service,
		"hostname": hostname(),
	})}
}

// NewWithOutput builds a standalone logger, used by tests to capture entries.
func NewWithOutput(service string, out io.Writer) *Logger {
	l := newBase(out, logrus.DebugLevel)
	return &Logger{service: service, entry: l.WithField("service", service)}
}

func (l *Logger) with(action string, fields map[string]any) *logrus.Entry {
	e := l.entry.WithField("action", action)
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

func (l *Logger) Info(action string, fields map[string]any)  { l.with(action, fields).Info(action) }
func (l *Logger) Debug(action string, fields map[string]any) { l.with(action, fields).Debug(action) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.with(action, fields).Warn(action) }
func (l *Logger) Error(action string, err error, fields map[string]any) {
	e := l.with(action, fields)
	if err != nil {
		e = e.WithError(err).WithField("error_type", fmt.Sprintf("%T", err))
	}
	e.Error(action)
}

func hostname() string { h, _ := os.Hostname(); return h }
