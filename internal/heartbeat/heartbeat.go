// Package heartbeat records that a `taygency serve` process is up, and lets
// other commands tell whether it still is.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultInterval is how often the serve process refreshes its file.
const DefaultInterval = 30 * time.Second

// Status is the liveness state derived from a heartbeat file.
type Status string

const (
	StatusAlive Status = "alive"
	StatusStale Status = "stale"
	StatusDead  Status = "dead"
)

// Heartbeat is the document written to disk.
type Heartbeat struct {
	PID       int       `json:"pid"`
	Address   string    `json:"address"`
	Clients   int       `json:"clients"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// Uptime is the time between start and the last beat.
func (h Heartbeat) Uptime() time.Duration {
	return h.Timestamp.Sub(h.StartedAt).Truncate(time.Second)
}

// Writer refreshes a heartbeat file until stopped.
type Writer struct {
	path     string
	address  string
	interval time.Duration
	clients  func() int
	now      func() time.Time

	mu      sync.Mutex
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Writer.
type Option func(*Writer)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithClients reports the connected websocket client count on each beat.
func WithClients(fn func() int) Option {
	return func(w *Writer) { w.clients = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a writer for the server listening on address.
func NewWriter(path, address string, opts ...Option) *Writer {
	w := &Writer{
		path:     path,
		address:  address,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start writes the first beat synchronously, then refreshes in the background.
func (w *Writer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return nil
	}
	w.started = w.now()
	if err := w.write(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = w.write()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends the refresh loop and removes the file.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	_ = os.Remove(w.path)
}

func (w *Writer) write() error {
	hb := Heartbeat{
		PID:       os.Getpid(),
		Address:   w.address,
		StartedAt: w.started,
		Timestamp: w.now(),
	}
	if w.clients != nil {
		hb.Clients = w.clients()
	}
	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}

// Check reads path and classifies it against maxAge at time now. A missing
// file is StatusDead with no error.
func Check(path string, maxAge time.Duration, now time.Time) (Status, *Heartbeat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusDead, nil, nil
		}
		return StatusDead, nil, fmt.Errorf("read heartbeat: %w", err)
	}

	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return StatusDead, nil, fmt.Errorf("decode heartbeat: %w", err)
	}
	if now.Sub(hb.Timestamp) > maxAge {
		return StatusStale, &hb, nil
	}
	return StatusAlive, &hb, nil
}
