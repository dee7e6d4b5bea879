package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSprintStateAllocatesCollections(t *testing.T) {
	s := NewSprintState()

	assert.Equal(t, ModeManual, s.Mode)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.NotNil(t, s.Agents)
	assert.NotNil(t, s.Tasks)
	assert.NotNil(t, s.Messages)
	assert.NotNil(t, s.ReviewTaskIDs)
	assert.NotNil(t, s.ValidatingTaskIDs)
	assert.NotNil(t, s.Checkpoints)
	assert.NotNil(t, s.TokenUsage.ByAgent)
	assert.NotNil(t, s.InboxCursors)
	assert.NotNil(t, s.StatusOverrides)
}

func TestTaskByID(t *testing.T) {
	s := NewSprintState()
	s.Tasks = append(s.Tasks, Task{ID: "1", Subject: "first"}, Task{ID: "2", Subject: "second"})

	task := s.TaskByID("2")
	require.NotNil(t, task)
	assert.Equal(t, "second", task.Subject)

	// The pointer aliases the slice entry so callers can mutate in place.
	task.Status = TaskInProgress
	assert.Equal(t, TaskInProgress, s.Tasks[1].Status)

	assert.Nil(t, s.TaskByID("404"))
}

func TestAgentByName(t *testing.T) {
	s := NewSprintState()
	s.Agents = append(s.Agents, Agent{Name: "sprint-manager", Status: AgentActive})

	agent := s.AgentByName("sprint-manager")
	require.NotNil(t, agent)
	assert.Equal(t, AgentActive, agent.Status)
	assert.Nil(t, s.AgentByName("sprint-pm"))
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSprintState()
	s.TeamName = "sprint-alpha"
	s.Agents = append(s.Agents, Agent{Name: "sprint-engineer", Status: AgentActive})
	s.Tasks = append(s.Tasks, Task{ID: "1", Status: TaskPending, BlockedBy: []string{"2"}})
	s.ReviewTaskIDs = append(s.ReviewTaskIDs, "1")
	s.TokenUsage.ByAgent["sprint-engineer"] = 42
	s.InboxCursors["/inboxes/sprint-engineer.json"] = 3
	s.StatusOverrides["1"] = StatusOverride{Status: TaskInProgress}
	s.PendingCheckpoint = &PendingCheckpoint{TaskID: "1", TaskSubject: "A"}
	s.TokenBudgetConfig = &BudgetConfig{TokenLimit: 100}

	c := s.Clone()

	// Mutating the clone must not leak into the original.
	c.Tasks[0].Status = TaskCompleted
	c.Tasks[0].BlockedBy[0] = "9"
	c.ReviewTaskIDs[0] = "9"
	c.TokenUsage.ByAgent["sprint-engineer"] = 0
	c.InboxCursors["/inboxes/sprint-engineer.json"] = 0
	c.StatusOverrides["1"] = StatusOverride{Status: TaskDeleted}
	c.PendingCheckpoint.TaskID = "9"
	c.TokenBudgetConfig.TokenLimit = 1

	assert.Equal(t, TaskPending, s.Tasks[0].Status)
	assert.Equal(t, []string{"2"}, s.Tasks[0].BlockedBy)
	assert.Equal(t, []string{"1"}, s.ReviewTaskIDs)
	assert.Equal(t, 42, s.TokenUsage.ByAgent["sprint-engineer"])
	assert.Equal(t, 3, s.InboxCursors["/inboxes/sprint-engineer.json"])
	assert.Equal(t, TaskInProgress, s.StatusOverrides["1"].Status)
	assert.Equal(t, "1", s.PendingCheckpoint.TaskID)
	assert.Equal(t, 100, s.TokenBudgetConfig.TokenLimit)
}

func TestBudgetConfigConfigured(t *testing.T) {
	assert.False(t, BudgetConfig{}.Configured())
	assert.True(t, BudgetConfig{TokenLimit: 1}.Configured())
	assert.True(t, BudgetConfig{USDLimit: 0.5}.Configured())
}
