// Package replay records broadcast envelopes to a per-sprint JSONL file
// and streams them back to a requesting client at a configurable speed.
package replay

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Line is one recorded entry: the envelope exactly as clients received
// it, stamped with milliseconds since the first recorded event.
type Line struct {
	Timestamp int64           `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

// Recorder appends every offered envelope to a recording file. It
// implements the broadcast bus recording sink; the bus already filters
// transient event types, so everything offered here is written.
type Recorder struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	first time.Time
	count int
	clock func() time.Time
}

// NewRecorder opens the recording file for appending, creating the
// sprint's history directory as needed.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Recorder{file: file, path: path, clock: time.Now}, nil
}

// Record appends one envelope. The first record pins the recording's
// zero timestamp. Write failures are logged, not propagated, so a full
// disk never stalls a broadcast.
func (r *Recorder) Record(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return
	}

	now := r.clock()
	if r.count == 0 {
		r.first = now
	}

	line, err := json.Marshal(Line{
		Timestamp: now.Sub(r.first).Milliseconds(),
		Event:     json.RawMessage(data),
	})
	if err != nil {
		slog.Error("Failed to encode recording line", "file", r.path, "error", err)
		return
	}

	if _, err := r.file.Write(append(line, '\n')); err != nil {
		slog.Error("Failed to append recording line", "file", r.path, "error", err)
		return
	}
	r.count++
}

// Count returns the number of lines recorded so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes and closes the recording file. Records after Close are
// dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
