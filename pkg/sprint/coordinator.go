// Package sprint houses the coordinator, the single state machine that
// turns watcher deliveries and control-API calls into SprintState
// mutations and broadcast events. Every handler body runs inside
// state.Store.Update end to end, broadcasts included, so clients observe
// events in exactly the order the mutations happened.
package sprint

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/albertnahas/teamclaude/pkg/budget"
	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/learning"
	"github.com/albertnahas/teamclaude/pkg/memory"
	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
	"github.com/albertnahas/teamclaude/pkg/persist"
	"github.com/albertnahas/teamclaude/pkg/plugin"
	"github.com/albertnahas/teamclaude/pkg/replay"
	"github.com/albertnahas/teamclaude/pkg/state"
	"github.com/albertnahas/teamclaude/pkg/verify"
	"github.com/albertnahas/teamclaude/pkg/webhook"
)

// Bus is the event fan-out surface the coordinator drives. Implemented
// by *events.Broadcaster; narrowed to an interface so tests can observe
// broadcasts without sockets.
type Bus interface {
	Broadcast(evt events.Event)
	AttachRecorder(r events.RecordSink)
	DetachRecorder()
}

// Deps bundles everything the coordinator needs. All fields are
// required; cmd/teamclaude wires them at startup.
type Deps struct {
	Store     *state.Store
	Bus       Bus
	Project   *paths.Project
	Config    *config.Config
	Persister *persist.Persister
	Verifier  *verify.Runner
	Notifier  *webhook.Notifier
	Plugins   *plugin.Runner
	Memories  *memory.Store
	Learnings *learning.Store
}

// Coordinator owns the sprint state machine. It implements watcher.Sink
// for the three filesystem event kinds and exposes the mutating
// operations the control API calls.
type Coordinator struct {
	store     *state.Store
	bus       Bus
	project   *paths.Project
	cfg       *config.Config
	persister *persist.Persister
	verifier  *verify.Runner
	notifier  *webhook.Notifier
	plugins   *plugin.Runner
	memories  *memory.Store
	learnings *learning.Store

	pricing budget.Pricing

	// budgetConfig is the once-per-sprint budget read performed on the
	// first usage accumulation; the result is cached in the state.
	budgetConfig func() models.BudgetConfig

	// recorder is attached on team recognition and detached on stop,
	// both inside Store.Update bodies, which serializes access.
	recorder *replay.Recorder

	clock func() time.Time
}

// New builds a coordinator over the given dependencies. Token pricing is
// resolved once from the configured agent model.
func New(deps Deps) *Coordinator {
	c := &Coordinator{
		store:     deps.Store,
		bus:       deps.Bus,
		project:   deps.Project,
		cfg:       deps.Config,
		persister: deps.Persister,
		verifier:  deps.Verifier,
		notifier:  deps.Notifier,
		plugins:   deps.Plugins,
		memories:  deps.Memories,
		learnings: deps.Learnings,
		pricing:   budget.PricingFor(budget.FamilyOf(deps.Config.Agents.Model)),
		clock:     time.Now,
	}
	c.budgetConfig = func() models.BudgetConfig {
		fresh, err := config.Load(deps.Project.Root())
		if err != nil {
			slog.Warn("Budget config re-read failed, using startup values", "error", err)
			return budget.ConfigFrom(deps.Config.Sprint)
		}
		return budget.ConfigFrom(fresh.Sprint)
	}
	return c
}

// TogglePause flips the paused flag and broadcasts it. Returns the new
// value.
func (c *Coordinator) TogglePause() bool {
	var paused bool
	c.store.Update(func(st *models.SprintState) {
		st.Paused = !st.Paused
		paused = st.Paused
		c.bus.Broadcast(events.PausedPayload{Paused: st.Paused})
	})
	return paused
}

// AddCheckpoint registers a task id for the human-approval gate. Returns
// false for an empty id or a duplicate registration.
func (c *Coordinator) AddCheckpoint(taskID string) bool {
	if taskID == "" {
		return false
	}
	added := false
	c.store.Update(func(st *models.SprintState) {
		added = st.AddCheckpoint(taskID)
	})
	if added {
		c.persister.Schedule()
	}
	return added
}

// ReleaseCheckpoint clears the pending checkpoint and broadcasts the
// release. Returns false when nothing was pending.
func (c *Coordinator) ReleaseCheckpoint() bool {
	released := false
	c.store.Update(func(st *models.SprintState) {
		if st.PendingCheckpoint == nil {
			return
		}
		st.PendingCheckpoint = nil
		released = true
		c.bus.Broadcast(events.CheckpointPayload{Checkpoint: models.PendingCheckpoint{}})
	})
	return released
}

// DismissEscalation clears the active escalation.
func (c *Coordinator) DismissEscalation() bool {
	cleared := false
	c.store.Update(func(st *models.SprintState) {
		if st.Escalation == nil {
			return
		}
		st.Escalation = nil
		cleared = true
	})
	if cleared {
		c.persister.Schedule()
	}
	return cleared
}

// DismissMergeConflict clears the active merge conflict.
func (c *Coordinator) DismissMergeConflict() bool {
	cleared := false
	c.store.Update(func(st *models.SprintState) {
		if st.MergeConflict == nil {
			return
		}
		st.MergeConflict = nil
		cleared = true
	})
	if cleared {
		c.persister.Schedule()
	}
	return cleared
}

// Resume restores the state from the persisted file, keeping the live
// runtime-only fields, and re-broadcasts init so connected dashboards
// refresh. Returns false when no usable persisted state exists.
func (c *Coordinator) Resume() bool {
	persisted := persist.LoadState(c.project)
	if persisted == nil {
		return false
	}
	c.store.Update(func(st *models.SprintState) {
		st.RestoreFrom(persisted)
		c.bus.Broadcast(events.InitPayload{State: st.Clone()})
	})
	slog.Info("Resumed sprint from persisted state", "sprint_id", persisted.SprintID, "team", persisted.TeamName)
	return true
}

// systemMessage appends a message attributed to "system" and broadcasts
// it. Must run inside a Store.Update body.
func (c *Coordinator) systemMessage(st *models.SprintState, content string) {
	now := c.clock()
	m := models.Message{
		ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), len(st.Messages)),
		Timestamp: now,
		From:      "system",
		To:        st.TeamName,
		Content:   content,
	}
	st.Messages = append(st.Messages, m)
	c.bus.Broadcast(events.MessageSentPayload{Message: m})
}

// ensureAgent auto-discovers an agent seen in inbox traffic before any
// team config mentioned it.
func (c *Coordinator) ensureAgent(st *models.SprintState, name string) {
	if name == "" || st.AgentByName(name) != nil {
		return
	}
	st.Agents = append(st.Agents, models.Agent{Name: name, Status: models.AgentUnknown})
}

// touchTask materializes the effect of the override table on a task,
// creating a placeholder entry when the task was first referenced by
// protocol before any task-file sighting. Broadcasts task_updated on any
// visible change and cascades blockedBy removal when the task completed.
func (c *Coordinator) touchTask(st *models.SprintState, id string) {
	t := st.TaskByID(id)
	created := false
	if t == nil {
		st.Tasks = append(st.Tasks, models.Task{ID: id, Status: models.TaskPending})
		t = &st.Tasks[len(st.Tasks)-1]
		created = true
	}
	prev := *t
	st.ApplyOverride(t)
	if created || !sameTask(prev, *t) {
		c.bus.Broadcast(events.TaskUpdatedPayload{Task: *t})
		if t.Status == models.TaskCompleted && prev.Status != models.TaskCompleted {
			c.unblockDependents(st, id)
		}
	}
}

// unblockDependents removes a completed task id from every other task's
// blockedBy list, re-broadcasting each affected task.
func (c *Coordinator) unblockDependents(st *models.SprintState, id string) {
	for i := range st.Tasks {
		t := &st.Tasks[i]
		if t.ID == id || !slices.Contains(t.BlockedBy, id) {
			continue
		}
		t.BlockedBy = slices.DeleteFunc(t.BlockedBy, func(v string) bool { return v == id })
		c.bus.Broadcast(events.TaskUpdatedPayload{Task: *t})
	}
}

func sameTask(a, b models.Task) bool {
	return a.ID == b.ID &&
		a.Subject == b.Subject &&
		a.Status == b.Status &&
		a.Owner == b.Owner &&
		a.Description == b.Description &&
		slices.Equal(a.BlockedBy, b.BlockedBy)
}
