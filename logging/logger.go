// Package logging provides the structured logger shared by shipyard packages.
//
// Entries are JSON lines on stderr, kept apart from the run report on
// stdout. Stage dispatch and success are logged at debug, so they only
// appear with --verbose; skipped stages log at warn and failed stages at
// error. Each entry of a run carries the stage set through With.
package logging

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Logger defines the structured logging interface used across stages.
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// JSONLogger writes structured JSON log entries to an io.Writer.
type JSONLogger struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	now     func() time.Time
}

// NewJSONLogger creates a JSONLogger writing to w. Debug entries are only
// emitted when verbose is true.
func NewJSONLogger(w io.Writer, verbose bool) *JSONLogger {
	return &JSONLogger{w: w, verbose: verbose, now: time.Now}
}

func (l *JSONLogger) Info(msg string, fields map[string]any)  { l.log("info", msg, fields) }
func (l *JSONLogger) Warn(msg string, fields map[string]any)  { l.log("warn", msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]any) { l.log("error", msg, fields) }

func (l *JSONLogger) Debug(msg string, fields map[string]any) {
	if !l.verbose {
		return
	}
	l.log("debug", msg, fields)
}

func (l *JSONLogger) log(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	entry["time"] = l.now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["msg"] = msg
	for k, v := range fields {
		entry[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	data, _ := json.Marshal(entry)
	data = append(data, '\n')
	l.w.Write(data) //nolint:errcheck
}

// Discard returns a Logger that drops every entry.
func Discard() Logger {
	return NewJSONLogger(io.Discard, false)
}

// With returns a Logger that adds fields to every entry. Fields passed at
// the call site win over bound ones.
func With(l Logger, fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &boundLogger{next: l, fields: fields}
}

type boundLogger struct {
	next   Logger
	fields map[string]any
}

func (b *boundLogger) Info(msg string, fields map[string]any)  { b.next.Info(msg, b.merge(fields)) }
func (b *boundLogger) Warn(msg string, fields map[string]any)  { b.next.Warn(msg, b.merge(fields)) }
func (b *boundLogger) Error(msg string, fields map[string]any) { b.next.Error(msg, b.merge(fields)) }
func (b *boundLogger) Debug(msg string, fields map[string]any) { b.next.Debug(msg, b.merge(fields)) }

func (b *boundLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(b.fields)+len(fields))
	for k, v := range b.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
