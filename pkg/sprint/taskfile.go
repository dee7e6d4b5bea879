package sprint

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
)

// taskEntry mirrors one row of a host runtime task file. Subject and
// title are interchangeable across runtime versions.
type taskEntry struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Owner       string   `json:"owner"`
	BlockedBy   []string `json:"blockedBy"`
	Description string   `json:"description"`
}

func (e taskEntry) subject() string {
	if e.Subject != "" {
		return e.Subject
	}
	return e.Title
}

// parseTaskEntries accepts either a JSON array of entries or a single
// object coerced to a singleton.
func parseTaskEntries(data []byte) []taskEntry {
	var entries []taskEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries
	}
	var one taskEntry
	if err := json.Unmarshal(data, &one); err == nil {
		return []taskEntry{one}
	}
	return nil
}

// HandleTaskFile processes a create-or-modify event on a task file
// belonging to the active team. Each entry is upserted by id under the
// monotonic status rank and the protocol override table; completions
// cascade through blockedBy links.
func (c *Coordinator) HandleTaskFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read task file", "path", path, "error", err)
		return
	}
	entries := parseTaskEntries(data)
	if entries == nil {
		slog.Warn("Skipping malformed task file", "path", path)
		return
	}

	c.store.Update(func(st *models.SprintState) {
		if st.TeamName == "" || paths.TeamFromPath(path) != st.TeamName {
			return
		}
		for _, e := range entries {
			c.upsertTask(st, e)
		}
	})
}

// upsertTask folds one task-file entry into the state. Entries whose
// subject names an agent are host-side bookkeeping rows, not tasks.
func (c *Coordinator) upsertTask(st *models.SprintState, e taskEntry) {
	if e.ID == "" {
		return
	}
	if st.AgentByName(e.subject()) != nil {
		return
	}

	incoming := models.Task{
		ID:          e.ID,
		Subject:     e.subject(),
		Status:      models.ParseTaskStatus(e.Status),
		Owner:       e.Owner,
		BlockedBy:   e.BlockedBy,
		Description: e.Description,
	}

	existing := st.TaskByID(e.ID)
	if existing == nil {
		st.ApplyOverride(&incoming)
		st.Tasks = append(st.Tasks, incoming)
		c.bus.Broadcast(events.TaskUpdatedPayload{Task: incoming})
		if incoming.Status == models.TaskCompleted {
			c.unblockDependents(st, incoming.ID)
		}
		return
	}

	prev := *existing
	// Displayed status never decreases, even when the file itself
	// rewinds; the override table then reapplies any protocol wins.
	incoming.Status = models.MaxStatus(incoming.Status, existing.Status)
	st.ApplyOverride(&incoming)
	if sameTask(prev, incoming) {
		return
	}
	*existing = incoming
	c.bus.Broadcast(events.TaskUpdatedPayload{Task: incoming})
	if incoming.Status == models.TaskCompleted && prev.Status != models.TaskCompleted {
		c.unblockDependents(st, incoming.ID)
	}
}
