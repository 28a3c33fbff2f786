package core

import (
	"maps"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter wraps a logrus.Logger to satisfy the Logger interface.
type LogrusAdapter struct {
	*logrus.Logger
	Fields logrus.Fields

	mu *sync.Mutex // Protects ReportCaller modifications, shared by derived adapters
}

var _ Logger = (*LogrusAdapter)(nil)

// NewLogrusAdapter returns an adapter writing to l.
func NewLogrusAdapter(l *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{Logger: l, mu: &sync.Mutex{}}
}

// WithField returns a derived adapter that adds key=value to every entry.
func (l *LogrusAdapter) WithField(key string, value any) Logger {
	fields := make(logrus.Fields, len(l.Fields)+1)
	maps.Copy(fields, l.Fields)
	fields[key] = value
	return &LogrusAdapter{Logger: l.Logger, Fields: fields, mu: l.lock()}
}

func (l *LogrusAdapter) lock() *sync.Mutex {
	if l.mu == nil {
		l.mu = &sync.Mutex{}
	}
	return l.mu
}

func (l *LogrusAdapter) logf(level logrus.Level, format string, args ...any) {
	var frame *runtime.Frame
	if pc, file, line, ok := runtime.Caller(2); ok {
		frame = &runtime.Frame{PC: pc, File: file, Line: line, Function: runtime.FuncForPC(pc).Name()}
	}

	mu := l.lock()
	mu.Lock()
	prev := l.Logger.ReportCaller
	l.Logger.ReportCaller = false
	defer func() {
		l.Logger.ReportCaller = prev
		mu.Unlock()
	}()

	entry := logrus.NewEntry(l.Logger)
	if len(l.Fields) > 0 {
		entry = entry.WithFields(l.Fields)
	}
	entry.Caller = frame
	entry.Logf(level, format, args...)
}

func (l *LogrusAdapter) Criticalf(format string, args ...any) {
	l.logf(logrus.FatalLevel, format, args...)
}

func (l *LogrusAdapter) Debugf(format string, args ...any) {
	l.logf(logrus.DebugLevel, format, args...)
}

func (l *LogrusAdapter) Errorf(format string, args ...any) {
	l.logf(logrus.ErrorLevel, format, args...)
}

func (l *LogrusAdapter) Noticef(format string, args ...any) {
	l.logf(logrus.InfoLevel, format, args...)
}

func (l *LogrusAdapter) Warningf(format string, args ...any) {
	l.logf(logrus.WarnLevel, format, args...)
}

// withField derives a logger carrying key=value when the implementation
// supports it, and returns l unchanged otherwise.
func withField(l Logger, key string, value any) Logger {
	if fl, ok := l.(interface {
		WithField(string, any) Logger
	}); ok {
		return fl.WithField(key, value)
	}
	return l
}
