package events

import (
	"github.com/albertnahas/teamclaude/pkg/models"
)

// InitPayload is sent once per connection, immediately after the
// upgrade, carrying the full state snapshot.
type InitPayload struct {
	State *models.SprintState `json:"state"`
}

func (InitPayload) EventType() string { return EventTypeInit }

// TaskUpdatedPayload announces a task insert or status/owner change.
type TaskUpdatedPayload struct {
	Task models.Task `json:"task"`
}

func (TaskUpdatedPayload) EventType() string { return EventTypeTaskUpdated }

// MessageSentPayload announces a message appended to the live state.
type MessageSentPayload struct {
	Message models.Message `json:"message"`
}

func (MessageSentPayload) EventType() string { return EventTypeMessageSent }

// AgentStatusPayload announces an agent transitioning between active,
// idle, and unknown.
type AgentStatusPayload struct {
	Agent  string             `json:"agent"`
	Status models.AgentStatus `json:"status"`
}

func (AgentStatusPayload) EventType() string { return EventTypeAgentStatus }

// PausedPayload announces the paused flag flipping.
type PausedPayload struct {
	Paused bool `json:"paused"`
}

func (PausedPayload) EventType() string { return EventTypePaused }

// EscalationPayload announces a raised escalation.
type EscalationPayload struct {
	Escalation models.Escalation `json:"escalation"`
}

func (EscalationPayload) EventType() string { return EventTypeEscalation }

// MergeConflictPayload announces a detected merge conflict.
type MergeConflictPayload struct {
	MergeConflict models.MergeConflict `json:"mergeConflict"`
}

func (MergeConflictPayload) EventType() string { return EventTypeMergeConflict }

// CycleInfoPayload announces a cycle phase transition (autonomous mode).
type CycleInfoPayload struct {
	Phase models.SprintPhase `json:"phase"`
	Cycle int                `json:"cycle"`
}

func (CycleInfoPayload) EventType() string { return EventTypeCycleInfo }

// TokenUsagePayload carries the cumulative usage after an accumulation.
type TokenUsagePayload struct {
	Usage models.TokenUsage `json:"usage"`
}

func (TokenUsagePayload) EventType() string { return EventTypeTokenUsage }

// CheckpointPayload announces a checkpointed task reaching review and
// blocking for human release. A zero-value checkpoint announces the
// release.
type CheckpointPayload struct {
	Checkpoint models.PendingCheckpoint `json:"checkpoint"`
}

func (CheckpointPayload) EventType() string { return EventTypeCheckpoint }

// CheckResult is the outcome of one configured verification command.
type CheckResult struct {
	Command string `json:"command"`
	Passed  bool   `json:"passed"`
	Output  string `json:"output,omitempty"`
}

// ValidationPayload carries full per-check results for a cycle- or
// sprint-scope verification run.
type ValidationPayload struct {
	Scope  string        `json:"scope"` // "cycle" or "sprint"
	Passed bool          `json:"passed"`
	Checks []CheckResult `json:"checks"`
}

func (ValidationPayload) EventType() string { return EventTypeValidation }

// TaskValidationPayload carries the outcome of a per-task verification
// gate.
type TaskValidationPayload struct {
	TaskID string `json:"taskId"`
	Passed bool   `json:"passed"`
	Output string `json:"output,omitempty"`
}

func (TaskValidationPayload) EventType() string { return EventTypeTaskValidation }

// ProcessStartedPayload announces the launched host runtime process.
type ProcessStartedPayload struct {
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

func (ProcessStartedPayload) EventType() string { return EventTypeProcessStarted }

// ProcessExitedPayload announces the host runtime process exiting.
type ProcessExitedPayload struct {
	Code int `json:"code"`
}

func (ProcessExitedPayload) EventType() string { return EventTypeProcessExited }

// TerminalOutputPayload streams one line of launched-process output.
// Transient: never persisted or recorded.
type TerminalOutputPayload struct {
	Line string `json:"line"`
}

func (TerminalOutputPayload) EventType() string { return EventTypeTerminalOutput }

// Pane describes one discovered tmux pane.
type Pane struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PanesDiscoveredPayload lists the tmux panes found after launch.
// Transient: never persisted or recorded.
type PanesDiscoveredPayload struct {
	Panes []Pane `json:"panes"`
}

func (PanesDiscoveredPayload) EventType() string { return EventTypePanesDiscovered }

// WebhookStatusPayload reports the outcome of a webhook delivery attempt.
type WebhookStatusPayload struct {
	Event  string `json:"event"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (WebhookStatusPayload) EventType() string { return EventTypeWebhookStatus }

// TokenBudgetApproachingPayload fires once when usage crosses 80% of a
// configured limit.
type TokenBudgetApproachingPayload struct {
	Usage  models.TokenUsage   `json:"usage"`
	Config models.BudgetConfig `json:"config"`
}

func (TokenBudgetApproachingPayload) EventType() string { return EventTypeTokenBudgetApproaching }

// TokenBudgetExceededPayload fires once when usage reaches a configured
// limit; the sprint is paused alongside.
type TokenBudgetExceededPayload struct {
	Usage  models.TokenUsage   `json:"usage"`
	Config models.BudgetConfig `json:"config"`
}

func (TokenBudgetExceededPayload) EventType() string { return EventTypeTokenBudgetExceeded }

// ReplayStartPayload frames the beginning of a replay stream to one
// client.
type ReplayStartPayload struct {
	SprintID    string  `json:"sprintId"`
	TotalEvents int     `json:"totalEvents"`
	Speed       float64 `json:"speed"`
}

func (ReplayStartPayload) EventType() string { return EventTypeReplayStart }

// ReplayCompletePayload frames the end of a replay stream.
type ReplayCompletePayload struct{}

func (ReplayCompletePayload) EventType() string { return EventTypeReplayComplete }
