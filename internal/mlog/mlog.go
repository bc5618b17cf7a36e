// Package mlog provides the structured logger every connection-facing
// component takes as a dependency instead of reaching for a package-level
// global.
package mlog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logging behavior the protocol layers depend on.
// A caller can substitute their own implementation; New returns the
// logrus-backed default.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type logrusLogger struct {
	entry *logrus.Logger
}

// New builds a logrus.Logger formatted the way xmysql's own log output is:
// timestamp, level, caller, message.
func New(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&callerFormatter{timestampFormat: "15:04:05 MST 2006/01/02"})
	return &logrusLogger{entry: l}
}

// Discard returns a Logger that drops every message; useful as a default
// when a caller doesn't care about connection diagnostics.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return &logrusLogger{entry: l}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

type callerFormatter struct {
	timestampFormat string
}

func (f *callerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.timestampFormat)
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, caller(), entry.Message)), nil
}

// caller walks past the logging framework's own frames to find the first
// caller outside logrus and this package.
func caller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/logrus/") || strings.Contains(file, "mlog.go") {
			continue
		}
		fn := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), fn, line)
	}
	return "unknown:unknown:0"
}
