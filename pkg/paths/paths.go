// Package paths resolves every on-disk location the observer reads or
// writes: the per-project data root under .teamclaude/ and the watched
// subtrees of the host runtime's directory.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirName is the per-project directory holding all observer output.
const DataDirName = ".teamclaude"

// Suffixes the host runtime uses for its own bookkeeping next to inbox
// files. Events on these paths are never delivered to handlers.
const (
	LockSuffix          = ".lock"
	HighWatermarkSuffix = ".hwm"
)

// Project resolves output locations under one project root.
type Project struct {
	root string
}

// NewProject returns path helpers rooted at the given project directory.
func NewProject(projectRoot string) *Project {
	return &Project{root: filepath.Clean(projectRoot)}
}

// Root returns the project directory itself.
func (p *Project) Root() string { return p.root }

// DataRoot returns <project>/.teamclaude.
func (p *Project) DataRoot() string { return filepath.Join(p.root, DataDirName) }

// StateFile returns the debounced SprintState persistence target.
func (p *Project) StateFile() string { return filepath.Join(p.DataRoot(), "state.json") }

// AnalyticsFile returns the append-grown sprint record array.
func (p *Project) AnalyticsFile() string { return filepath.Join(p.DataRoot(), "analytics.json") }

// MemoriesFile returns the agent memory store.
func (p *Project) MemoriesFile() string { return filepath.Join(p.DataRoot(), "memories.json") }

// LearningsFile returns the process learnings store.
func (p *Project) LearningsFile() string { return filepath.Join(p.DataRoot(), "learnings.json") }

// GitignoreFile returns the .gitignore seeded into the data root.
func (p *Project) GitignoreFile() string { return filepath.Join(p.DataRoot(), ".gitignore") }

// HistoryRoot returns the directory holding all sprint history snapshots.
func (p *Project) HistoryRoot() string { return filepath.Join(p.DataRoot(), "history") }

// HistoryDir returns the snapshot directory for one sprint.
func (p *Project) HistoryDir(sprintID string) string {
	return filepath.Join(p.HistoryRoot(), sprintID)
}

// ReplayFile returns the recording path for one sprint.
func (p *Project) ReplayFile(sprintID string) string {
	return filepath.Join(p.HistoryDir(sprintID), "replay.jsonl")
}

// EnsureDataRoot creates the data root if needed.
func (p *Project) EnsureDataRoot() error {
	return os.MkdirAll(p.DataRoot(), 0o755)
}

// WatchRoot resolves the host runtime's directory trees the watcher
// observes: teams (configs + inboxes) and tasks.
type WatchRoot struct {
	root string
}

// NewWatchRoot returns watch-path helpers for the host runtime root.
func NewWatchRoot(root string) *WatchRoot {
	return &WatchRoot{root: filepath.Clean(root)}
}

// DefaultWatchRoot returns the conventional host runtime directory,
// ~/.claude, falling back to a relative path when HOME is unset.
func DefaultWatchRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// Root returns the watch root itself.
func (w *WatchRoot) Root() string { return w.root }

// TeamsDir returns <root>/teams.
func (w *WatchRoot) TeamsDir() string { return filepath.Join(w.root, "teams") }

// TasksDir returns <root>/tasks.
func (w *WatchRoot) TasksDir() string { return filepath.Join(w.root, "tasks") }

// TeamConfigFile returns the config path for one team.
func (w *WatchRoot) TeamConfigFile(team string) string {
	return filepath.Join(w.TeamsDir(), team, "config.json")
}

// InboxDir returns the inbox directory for one team.
func (w *WatchRoot) InboxDir(team string) string {
	return filepath.Join(w.TeamsDir(), team, "inboxes")
}

// InboxFile returns the inbox path for one recipient in one team.
func (w *WatchRoot) InboxFile(team, recipient string) string {
	return filepath.Join(w.InboxDir(team), recipient+".json")
}

// TeamTasksDir returns the task-file directory for one team.
func (w *WatchRoot) TeamTasksDir(team string) string {
	return filepath.Join(w.TasksDir(), team)
}

// IsTeamConfig reports whether the path is a team config.json under teams/.
func IsTeamConfig(path string) bool {
	if filepath.Base(path) != "config.json" {
		return false
	}
	return strings.Contains(filepath.ToSlash(path), "/teams/")
}

// IsInboxFile reports whether the path lives under an inboxes/ directory.
func IsInboxFile(path string) bool {
	return strings.Contains(filepath.ToSlash(path), "/inboxes/")
}

// IsTaskFile reports whether the path lives under a tasks/ directory.
func IsTaskFile(path string) bool {
	return strings.Contains(filepath.ToSlash(path), "/tasks/")
}

// IsBookkeeping reports whether the path carries a lock or high-watermark
// suffix and must never reach a handler.
func IsBookkeeping(path string) bool {
	return strings.HasSuffix(path, LockSuffix) || strings.HasSuffix(path, HighWatermarkSuffix)
}

// RecipientFromInbox derives the recipient agent name from an inbox file
// path: the base name without the .json extension.
func RecipientFromInbox(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// TeamFromPath extracts the team directory name following a teams/ or
// tasks/ segment, or "" when the path has no such segment.
func TeamFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, part := range parts {
		if (part == "teams" || part == "tasks") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
