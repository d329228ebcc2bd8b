package testutil

import (
	"maps"
	"sync"
)

// LogEntry is one captured log event.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// RecordingLogger captures log events in memory. It has the same method set
// as logger.Logger's leveled methods, so it can stand in wherever a logging
// interface is accepted.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
	onLog   func(LogEntry)
}

// NewRecordingLogger creates an empty recording logger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

// OnLog registers fn to be called synchronously with every entry, in the
// goroutine that logged it.
func (r *RecordingLogger) OnLog(fn func(LogEntry)) {
	r.mu.Lock()
	r.onLog = fn
	r.mu.Unlock()
}

func (r *RecordingLogger) Debug(msg string, fields ...map[string]interface{}) {
	r.add("debug", msg, fields)
}

func (r *RecordingLogger) Info(msg string, fields ...map[string]interface{}) {
	r.add("info", msg, fields)
}

func (r *RecordingLogger) Warn(msg string, fields ...map[string]interface{}) {
	r.add("warn", msg, fields)
}

func (r *RecordingLogger) Error(msg string, fields ...map[string]interface{}) {
	r.add("error", msg, fields)
}

// Entries returns a copy of everything logged so far.
func (r *RecordingLogger) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ByLevel returns the entries logged at level.
func (r *RecordingLogger) ByLevel(level string) []LogEntry {
	var out []LogEntry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards captured entries.
func (r *RecordingLogger) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *RecordingLogger) add(level, msg string, fields []map[string]interface{}) {
	merged := make(map[string]interface{})
	for _, f := range fields {
		maps.Copy(merged, f)
	}
	entry := LogEntry{Level: level, Message: msg, Fields: merged}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	hook := r.onLog
	r.mu.Unlock()

	if hook != nil {
		hook(entry)
	}
}
