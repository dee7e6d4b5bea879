// Package persist owns every file under the project data root: the
// debounced SprintState snapshot, the resume loader, the per-sprint
// history directory, and the append-grown analytics array.
package persist

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
)

// DebounceDelay is the trailing delay between a schedule and the disk
// write. Bursts of broadcasts coalesce into one write of the final state.
const DebounceDelay = 500 * time.Millisecond

// Persister writes state.json. Schedule arms a trailing debounce, newest
// schedule wins, and at most one write is in flight; Flush forces a
// synchronous write on shutdown.
type Persister struct {
	project  *paths.Project
	snapshot func() *models.SprintState
	delay    time.Duration

	mu    sync.Mutex
	timer *time.Timer

	writeMu sync.Mutex
}

// NewPersister returns a persister that serializes whatever snapshot
// returns at the moment a write fires.
func NewPersister(project *paths.Project, snapshot func() *models.SprintState) *Persister {
	return &Persister{project: project, snapshot: snapshot, delay: DebounceDelay}
}

// Schedule arms the trailing debounce. Scheduling while a write is
// pending pushes it out; the state serialized is the one current when the
// timer finally fires.
func (p *Persister) Schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, p.fire)
}

func (p *Persister) fire() {
	p.mu.Lock()
	p.timer = nil
	p.mu.Unlock()

	if err := p.Write(); err != nil {
		slog.Error("Failed to persist sprint state", "error", err)
	}
}

// Flush cancels any pending debounce and writes synchronously. Called on
// shutdown and after sprint stop so the final state always lands on disk.
func (p *Persister) Flush() error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	return p.Write()
}

// Write serializes the current snapshot to state.json. Writes are
// serialized and atomic, so readers never observe a torn file.
func (p *Persister) Write() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := EnsureProjectRoot(p.project); err != nil {
		return err
	}
	return AtomicWriteJSON(p.project.StateFile(), p.snapshot())
}

// LoadState reads the persisted snapshot for resume. Best effort: a
// missing or malformed file yields nil and the caller starts fresh.
func LoadState(project *paths.Project) *models.SprintState {
	data, err := os.ReadFile(project.StateFile())
	if err != nil {
		return nil
	}
	var st models.SprintState
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("Ignoring malformed persisted state", "file", project.StateFile(), "error", err)
		return nil
	}
	return &st
}

// EnsureProjectRoot creates the data root and seeds its .gitignore so the
// observer's output never ends up committed.
func EnsureProjectRoot(project *paths.Project) error {
	if err := project.EnsureDataRoot(); err != nil {
		return err
	}
	gitignore := project.GitignoreFile()
	if _, err := os.Stat(gitignore); err == nil {
		return nil
	}
	return os.WriteFile(gitignore, []byte("*\n"), 0o644)
}

// AtomicWriteJSON marshals v indented and writes it atomically. The
// memory and learning stores share it for their own files.
func AtomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'))
}

// writeAtomic writes via a temp file in the target directory followed by
// a rename, so a crash mid-write leaves the previous contents intact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}

	written := false
	defer func() {
		if !written {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	written = true
	return nil
}
