// Package test provides a capturing logger for asserting on what the runner
// and its steps log.
package test

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Level names recorded by Logger.
const (
	LevelCritical = "CRITICAL"
	LevelError    = "ERROR"
	LevelWarning  = "WARN"
	LevelNotice   = "NOTICE"
	LevelDebug    = "DEBUG"
)

// Logger implements core.Logger and records every message with its level and
// the fields attached through WithField.
type Logger struct {
	store  *store
	fields map[string]any
}

type store struct {
	mu       sync.RWMutex
	messages []LogEntry
}

// LogEntry is one recorded message.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// NewTestLogger creates an empty logger.
func NewTestLogger() *Logger {
	return &Logger{store: &store{}}
}

func (l *Logger) Criticalf(s string, v ...any) { l.log(LevelCritical, s, v...) }
func (l *Logger) Errorf(s string, v ...any)    { l.log(LevelError, s, v...) }
func (l *Logger) Warningf(s string, v ...any)  { l.log(LevelWarning, s, v...) }
func (l *Logger) Noticef(s string, v ...any)   { l.log(LevelNotice, s, v...) }
func (l *Logger) Debugf(s string, v ...any)    { l.log(LevelDebug, s, v...) }

// WithField returns a logger sharing l's records that tags every message
// with key=value.
func (l *Logger) WithField(key string, value any) *Logger {
	fields := make(map[string]any, len(l.fields)+1)
	maps.Copy(fields, l.fields)
	fields[key] = value
	return &Logger{store: l.store, fields: fields}
}

func (l *Logger) log(level, format string, v ...any) {
	entry := LogEntry{Level: level, Message: fmt.Sprintf(format, v...), Fields: l.fields}

	l.store.mu.Lock()
	l.store.messages = append(l.store.messages, entry)
	l.store.mu.Unlock()
}

// GetMessages returns a copy of all recorded messages.
func (l *Logger) GetMessages() []LogEntry {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return append([]LogEntry(nil), l.store.messages...)
}

func (l *Logger) has(level, substr string) bool {
	for _, entry := range l.GetMessages() {
		if (level == "" || entry.Level == level) && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

func (l *Logger) count(level string) int {
	n := 0
	for _, entry := range l.GetMessages() {
		if entry.Level == level {
			n++
		}
	}
	return n
}

// HasMessage reports whether any message contains substr.
func (l *Logger) HasMessage(substr string) bool { return l.has("", substr) }

// HasError reports whether an error message contains substr.
func (l *Logger) HasError(substr string) bool { return l.has(LevelError, substr) }

// HasWarning reports whether a warning contains substr.
func (l *Logger) HasWarning(substr string) bool { return l.has(LevelWarning, substr) }

func (l *Logger) MessageCount() int { return len(l.GetMessages()) }
func (l *Logger) ErrorCount() int   { return l.count(LevelError) }
func (l *Logger) WarningCount() int { return l.count(LevelWarning) }

// Clear drops all recorded messages.
func (l *Logger) Clear() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.messages = nil
}
