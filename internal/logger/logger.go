package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger handed out by this package
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

// Verbosity controls which messages reach the output
type Verbosity int

const (
	// VerbositySilent only reports errors
	VerbositySilent Verbosity = iota
	// VerbosityNormal reports warnings and errors
	VerbosityNormal
	// VerbosityDebug adds informational messages
	VerbosityDebug
	// VerbosityVerbose reports everything
	VerbosityVerbose
)

var (
	mu   sync.RWMutex
	base = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

type entry struct {
	e *logrus.Entry
}

func (l entry) Debug(args ...interface{})                 { l.e.Debug(args...) }
func (l entry) Info(args ...interface{})                  { l.e.Info(args...) }
func (l entry) Warn(args ...interface{})                  { l.e.Warn(args...) }
func (l entry) Error(args ...interface{})                 { l.e.Error(args...) }
func (l entry) Debugf(format string, args ...interface{}) { l.e.Debugf(format, args...) }
func (l entry) Infof(format string, args ...interface{})  { l.e.Infof(format, args...) }
func (l entry) Warnf(format string, args ...interface{})  { l.e.Warnf(format, args...) }
func (l entry) Errorf(format string, args ...interface{}) { l.e.Errorf(format, args...) }

func (l entry) WithField(key string, value interface{}) Logger {
	return entry{l.e.WithField(key, value)}
}

func (l entry) WithFields(fields map[string]interface{}) Logger {
	return entry{l.e.WithFields(logrus.Fields(fields))}
}

func (l entry) WithError(err error) Logger {
	return entry{l.e.WithError(err)}
}

func root() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return entry{logrus.NewEntry(base)}
}

// SetVerbosity maps CLI verbosity onto log levels
func SetVerbosity(v Verbosity) {
	mu.Lock()
	defer mu.Unlock()

	switch v {
	case VerbositySilent:
		base.SetLevel(logrus.ErrorLevel)
	case VerbosityDebug:
		base.SetLevel(logrus.InfoLevel)
	case VerbosityVerbose:
		base.SetLevel(logrus.DebugLevel)
	default:
		base.SetLevel(logrus.WarnLevel)
	}
}

// SetFormat switches between "text" and "json" output
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()

	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetOutput redirects all log output
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

func Debug(args ...interface{}) { root().Debug(args...) }
func Info(args ...interface{})  { root().Info(args...) }
func Warn(args ...interface{})  { root().Warn(args...) }
func Error(args ...interface{}) { root().Error(args...) }

func Debugf(format string, args ...interface{}) { root().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { root().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { root().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { root().Errorf(format, args...) }

// WithField returns a logger carrying a single field
func WithField(key string, value interface{}) Logger {
	return root().WithField(key, value)
}

// WithFields returns a logger carrying the given fields
func WithFields(fields map[string]interface{}) Logger {
	return root().WithFields(fields)
}

// WithError returns a logger carrying err
func WithError(err error) Logger {
	return root().WithError(err)
}
