// Package watcher turns the host runtime's data directory into a live
// event source. It watches the teams/ and tasks/ subtrees with fsnotify,
// stabilizes each changed file behind a short quiet period, and routes
// the path to the matching coordinator handler.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertnahas/teamclaude/pkg/paths"
)

const (
	// QuietPeriod is the per-path trailing debounce before a changed
	// file is delivered. The host runtime rewrites files in place;
	// waiting out the burst means handlers never read a torn write.
	QuietPeriod = 150 * time.Millisecond

	// StalenessCutoff filters the initial scan: files untouched for
	// longer belong to a previous session and are not replayed. Live
	// events are never filtered.
	StalenessCutoff = 2 * time.Hour
)

// Sink receives stabilized file paths, one call per coalesced burst.
// Implemented by the sprint coordinator.
type Sink interface {
	HandleTeamConfig(path string)
	HandleInbox(path string)
	HandleTaskFile(path string)
}

// Watcher owns the fsnotify instance and the per-path debounce timers.
// Delivery happens on a single goroutine so one file's events arrive in
// order.
type Watcher struct {
	root        *paths.WatchRoot
	sink        Sink
	quiet       time.Duration
	staleCutoff time.Duration

	fsw     *fsnotify.Watcher
	pending chan string
	done    chan struct{}
	wg      sync.WaitGroup

	// Guards timers only; everything else is touched by Start/run.
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New returns a watcher over the given root delivering to sink.
func New(root *paths.WatchRoot, sink Sink) *Watcher {
	return &Watcher{
		root:        root,
		sink:        sink,
		quiet:       QuietPeriod,
		staleCutoff: StalenessCutoff,
		pending:     make(chan string, 256),
		done:        make(chan struct{}),
		timers:      make(map[string]*time.Timer),
	}
}

// Start wires the filesystem watches, replays recent existing files
// through the handlers (the initial scan), and launches the event loop.
// When Start returns the watcher is ready: every later event is live.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	// The host runtime may not have created its tree yet. Materialize
	// the watched directories so the watches can attach now.
	for _, dir := range []string{w.root.Root(), w.root.TeamsDir(), w.root.TasksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fsw.Close()
			return err
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
	}

	w.initialScan()

	w.wg.Add(1)
	go w.run()

	slog.Info("Watching host runtime directory", "root", w.root.Root())
	return nil
}

// Stop tears down the watches and waits for the event loop to exit.
func (w *Watcher) Stop() {
	close(w.done)
	w.fsw.Close()

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// initialScan walks the existing tree: directories gain watches, recent
// files are delivered synchronously in walk order.
func (w *Watcher) initialScan() {
	cutoff := time.Now().Add(-w.staleCutoff)

	for _, top := range []string{w.root.TeamsDir(), w.root.TasksDir()} {
		_ = filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != top {
					_ = w.fsw.Add(path)
				}
				return nil
			}
			info, err := d.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				return nil
			}
			w.deliver(path)
			return nil
		})
	}
}

// run is the single event loop: raw fsnotify events arm debounce timers,
// stabilized paths come back through pending for delivery.
func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case path := <-w.pending:
			w.deliver(path)

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Filesystem watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	// fsnotify watches are non-recursive: new team, inbox, and task
	// directories must be added as they appear.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addDir(event.Name)
			return
		}
	}

	w.schedule(event.Name)
}

// addDir watches a newly created directory and schedules any files that
// landed in it before the watch attached.
func (w *Watcher) addDir(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		slog.Warn("Failed to watch new directory", "dir", dir, "error", err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			w.addDir(path)
			continue
		}
		w.schedule(path)
	}
}

// schedule arms (or re-arms) the quiet-period timer for one path.
func (w *Watcher) schedule(path string) {
	if paths.IsBookkeeping(path) || !strings.HasSuffix(path, ".json") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.quiet, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.pending <- path:
		case <-w.done:
		}
	})
}

// deliver routes one stabilized path to its handler.
func (w *Watcher) deliver(path string) {
	if paths.IsBookkeeping(path) || !strings.HasSuffix(path, ".json") {
		return
	}

	switch {
	case paths.IsTeamConfig(path):
		w.sink.HandleTeamConfig(path)
	case paths.IsInboxFile(path):
		w.sink.HandleInbox(path)
	case paths.IsTaskFile(path):
		w.sink.HandleTaskFile(path)
	}
}
