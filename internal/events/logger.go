package events

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger persists bus events to JSONL files, one file per trace.
type Logger struct {
	mu          sync.Mutex
	dir         string
	unsubscribe func()
}

// NewLogger subscribes to all bus events and appends them as JSONL under dir.
func NewLogger(dir string, bus *Bus) *Logger {
	l := &Logger{dir: dir}
	l.unsubscribe = bus.Subscribe(l.handleEvent)
	return l
}

// Close unsubscribes the logger from the event bus.
func (l *Logger) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
}

func (l *Logger) handleEvent(e Event) {
	if err := l.writeEvent(e); err != nil {
		slog.Warn("event log write failed", "dir", l.dir, "error", err)
	}
}

func (l *Logger) writeEvent(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.logPath(e.TraceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

func (l *Logger) logPath(traceID string) string {
	if traceID == "" {
		return filepath.Join(l.dir, "_global.jsonl")
	}
	return filepath.Join(l.dir, traceID+".jsonl")
}
