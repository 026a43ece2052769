// Package logger provides context-carried structured logging on top of
// logrus. Scans and commands attach fields to an entry stored in the
// context; code without one falls back to the global entry L.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// G retrieves the logger entry for a context.
	G = GetLogger
	// L is the global entry used when a context carries no logger.
	L = logrus.NewEntry(newLogger())
)

type loggerKey struct{}

// WithLogger stores entry in ctx so that G(ctx) returns it.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry.WithContext(ctx))
}

// GetLogger returns the entry stored in ctx, or L bound to ctx.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

// newLogger writes to stderr so reports on stdout stay machine-readable.
func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	setFormat(l, "fmt")
	return l
}

func setFormat(l *logrus.Logger, format string) {
	switch format {
	case "json":
		l.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		l.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	}
}

// Configure applies a level and format ("fmt" or "json") to the global logger.
func Configure(level, format string) error {
	if level != "" {
		if err := SetLogLevel(level); err != nil {
			return err
		}
	}
	SetLogFormat(format)
	return nil
}

// SetLogLevel sets the level of the global logger.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	L.Logger.SetLevel(lvl)
	return nil
}

// SetLogFormat sets the formatter of the global logger.
func SetLogFormat(format string) {
	setFormat(L.Logger, format)
}

// SetLogOutput redirects the global logger.
func SetLogOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}
