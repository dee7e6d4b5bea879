package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewValidatingExclusive(t *testing.T) {
	s := NewSprintState()

	require.True(t, s.AddReviewTask("1"))
	assert.Equal(t, []string{"1"}, s.ReviewTaskIDs)

	// Duplicate request is a no-op.
	assert.False(t, s.AddReviewTask("1"))
	assert.Len(t, s.ReviewTaskIDs, 1)

	s.MoveToValidating("1")
	assert.Empty(t, s.ReviewTaskIDs)
	assert.Equal(t, []string{"1"}, s.ValidatingTaskIDs)

	// Re-review supersedes a stale approval: the id moves back.
	require.True(t, s.AddReviewTask("1"))
	assert.Equal(t, []string{"1"}, s.ReviewTaskIDs)
	assert.Empty(t, s.ValidatingTaskIDs)

	// At no point may an id sit in both lists.
	for _, id := range s.ReviewTaskIDs {
		assert.NotContains(t, s.ValidatingTaskIDs, id)
	}
}

func TestRemoveValidatingReportsPresence(t *testing.T) {
	s := NewSprintState()
	s.AddReviewTask("7")
	s.MoveToValidating("7")

	assert.True(t, s.RemoveValidatingTask("7"))
	assert.False(t, s.RemoveValidatingTask("7"))
}

func TestOrderPreservedAcrossInserts(t *testing.T) {
	s := NewSprintState()
	for _, id := range []string{"3", "1", "2"} {
		s.AddReviewTask(id)
	}
	assert.Equal(t, []string{"3", "1", "2"}, s.ReviewTaskIDs)

	s.RemoveReviewTask("1")
	assert.Equal(t, []string{"3", "2"}, s.ReviewTaskIDs)
}

func TestCursors(t *testing.T) {
	s := NewSprintState()

	assert.Zero(t, s.Cursor("/inboxes/pm.json"))

	s.SetCursor("/inboxes/pm.json", 3)
	assert.Equal(t, 3, s.Cursor("/inboxes/pm.json"))

	s.SetCursor("/inboxes/pm.json", 5)
	assert.Equal(t, 5, s.Cursor("/inboxes/pm.json"))
}

func TestRaiseOverrideStatusIsMonotonic(t *testing.T) {
	s := NewSprintState()

	ov := s.RaiseOverrideStatus("1", TaskInProgress)
	assert.Equal(t, TaskInProgress, ov.Status)

	ov = s.RaiseOverrideStatus("1", TaskCompleted)
	assert.Equal(t, TaskCompleted, ov.Status)

	// A lower-ranked write cannot demote.
	ov = s.RaiseOverrideStatus("1", TaskInProgress)
	assert.Equal(t, TaskCompleted, ov.Status)
}

func TestApplyOverride(t *testing.T) {
	s := NewSprintState()
	s.RaiseOverrideStatus("1", TaskInProgress)
	s.SetOverrideOwner("1", "sprint-engineer")

	task := Task{ID: "1", Subject: "A", Status: TaskPending}
	s.ApplyOverride(&task)
	assert.Equal(t, TaskInProgress, task.Status)
	assert.Equal(t, "sprint-engineer", task.Owner)

	// On-disk status higher than the override wins.
	task = Task{ID: "1", Status: TaskCompleted}
	s.ApplyOverride(&task)
	assert.Equal(t, TaskCompleted, task.Status)

	// No override: untouched.
	task = Task{ID: "2", Status: TaskPending, Owner: "sprint-pm"}
	s.ApplyOverride(&task)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, "sprint-pm", task.Owner)
}

func TestCheckpoints(t *testing.T) {
	s := NewSprintState()

	require.True(t, s.AddCheckpoint("4"))
	assert.False(t, s.AddCheckpoint("4"))
	assert.True(t, s.HasCheckpoint("4"))

	assert.True(t, s.RemoveCheckpoint("4"))
	assert.False(t, s.RemoveCheckpoint("4"))
	assert.False(t, s.HasCheckpoint("4"))
}

func TestResetForStopPreservesRuntimeFields(t *testing.T) {
	s := NewSprintState()
	s.TeamName = "sprint-alpha"
	s.Phase = PhaseSprinting
	s.Cycle = 3
	s.Messages = append(s.Messages, Message{ID: "1-0"})
	s.SetCursor("/inboxes/pm.json", 2)
	s.InitMessageSent = true
	s.TokenBudgetExceeded = true
	s.TmuxAvailable = true
	s.TmuxSessionName = "claude-sprint"
	s.ProjectName = "demo"

	s.ResetForStop()

	assert.Empty(t, s.TeamName)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Zero(t, s.Cycle)
	assert.Empty(t, s.Messages)
	assert.Zero(t, s.Cursor("/inboxes/pm.json"))
	assert.False(t, s.InitMessageSent)
	assert.False(t, s.TokenBudgetExceeded)

	assert.True(t, s.TmuxAvailable)
	assert.Equal(t, "claude-sprint", s.TmuxSessionName)
	assert.Equal(t, "demo", s.ProjectName)
}

func TestRestoreFromKeepsLiveRuntimeFields(t *testing.T) {
	live := NewSprintState()
	live.TmuxAvailable = true
	live.TmuxSessionName = "live-session"
	live.ProjectName = "live-project"

	persisted := &SprintState{
		TeamName: "sprint-alpha",
		Phase:    PhaseValidating,
		Cycle:    2,
		// Collections nil, as a sparse persisted file would decode.
		TmuxSessionName: "stale-session",
	}
	persisted.TokenUsage.ByAgent = nil

	live.RestoreFrom(persisted)

	assert.Equal(t, "sprint-alpha", live.TeamName)
	assert.Equal(t, PhaseValidating, live.Phase)
	assert.Equal(t, 2, live.Cycle)

	// Runtime-only fields come from the live process, not the file.
	assert.True(t, live.TmuxAvailable)
	assert.Equal(t, "live-session", live.TmuxSessionName)
	assert.Equal(t, "live-project", live.ProjectName)

	// Nil collections were reallocated.
	assert.NotNil(t, live.Tasks)
	assert.NotNil(t, live.Messages)
	assert.NotNil(t, live.InboxCursors)
	assert.NotNil(t, live.TokenUsage.ByAgent)
	assert.NotNil(t, live.StatusOverrides)
}
