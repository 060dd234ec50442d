// Package logging configures the process-wide logrus logger.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Setup configures the standard logger. format is "json" or "text".
func Setup(level, format string) *logrus.Logger {
	return configure(logrus.StandardLogger(), level, format, os.Stdout)
}

func configure(l *logrus.Logger, level, format string, out io.Writer) *logrus.Logger {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetOutput(out)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

// WithContext stores an entry on ctx for request-scoped logging.
func WithContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the request-scoped entry, or a bare one.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
