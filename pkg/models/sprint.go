package models

import "time"

// Agent is one member of the observed sprint team.
type Agent struct {
	Name      string      `json:"name"`
	AgentID   string      `json:"agentId,omitempty"`
	AgentType string      `json:"agentType,omitempty"`
	Status    AgentStatus `json:"status"`
}

// Task mirrors one entry of the host runtime's task file, adjusted by the
// override table. BlockedBy holds task ids, not object links.
type Task struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Status      TaskStatus `json:"status"`
	Owner       string     `json:"owner,omitempty"`
	BlockedBy   []string   `json:"blockedBy,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Message is one observed inter-agent message. Protocol carries the decoded
// tag when the content opened with one.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Protocol  string    `json:"protocol,omitempty"`
}

// StatusOverride records protocol-derived task state that may have raced
// ahead of the host writing the task file.
type StatusOverride struct {
	Status TaskStatus `json:"status"`
	Owner  string     `json:"owner,omitempty"`
}

// MergeConflict is the at-most-one active merge conflict surfaced to the
// dashboard. Setting replaces, dismissing clears.
type MergeConflict struct {
	Branch     string    `json:"branch,omitempty"`
	Files      []string  `json:"files,omitempty"`
	Details    string    `json:"details,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Escalation is the at-most-one active escalation. Source is the agent name
// that raised it, or "system" for verification failures.
type Escalation struct {
	TaskID   string    `json:"taskId,omitempty"`
	Reason   string    `json:"reason"`
	Source   string    `json:"source"`
	RaisedAt time.Time `json:"raisedAt"`
}

// PendingCheckpoint blocks the sprint until released by the user.
type PendingCheckpoint struct {
	TaskID      string `json:"taskId"`
	TaskSubject string `json:"taskSubject,omitempty"`
}

// SprintStats are running counters the end-of-sprint analytics record and
// the learning detectors consume. Persisted so a restart mid-sprint keeps
// counting.
type SprintStats struct {
	Escalations        int `json:"escalations"`
	Approvals          int `json:"approvals"`
	ChangeRequests     int `json:"changeRequests"`
	ValidationFailures int `json:"validationFailures"`
}

// TokenUsage is the cumulative token and cost accounting for the sprint.
type TokenUsage struct {
	Total            int            `json:"total"`
	ByAgent          map[string]int `json:"byAgent"`
	EstimatedCostUSD float64        `json:"estimatedCostUsd"`
}

// NewTokenUsage returns a zeroed usage record with an allocated per-agent map.
func NewTokenUsage() TokenUsage {
	return TokenUsage{ByAgent: make(map[string]int)}
}

// BudgetConfig is the cached token budget read from .sprint.yml. A zero
// limit means that dimension is unbounded.
type BudgetConfig struct {
	TokenLimit int     `json:"tokenLimit,omitempty"`
	USDLimit   float64 `json:"usdLimit,omitempty"`
}

// Configured reports whether at least one budget dimension is set.
func (b BudgetConfig) Configured() bool {
	return b.TokenLimit > 0 || b.USDLimit > 0
}

// SprintState is the single shared model every core component reads and
// mutates. The three tmux/project fields are runtime-only: they are
// populated at process start and stripped by the resume loader.
type SprintState struct {
	TeamName string      `json:"teamName,omitempty"`
	SprintID string      `json:"sprintId,omitempty"`
	Mode     SprintMode  `json:"mode"`
	Phase    SprintPhase `json:"phase"`
	Cycle    int         `json:"cycle"`
	Paused   bool        `json:"paused"`

	Agents   []Agent   `json:"agents"`
	Tasks    []Task    `json:"tasks"`
	Messages []Message `json:"messages"`

	ReviewTaskIDs     []string           `json:"reviewTaskIds"`
	ValidatingTaskIDs []string           `json:"validatingTaskIds"`
	Checkpoints       []string           `json:"checkpoints"`
	PendingCheckpoint *PendingCheckpoint `json:"pendingCheckpoint,omitempty"`
	Escalation        *Escalation        `json:"escalation,omitempty"`
	MergeConflict     *MergeConflict     `json:"mergeConflict,omitempty"`

	TokenUsage             TokenUsage    `json:"tokenUsage"`
	TokenBudgetApproaching bool          `json:"tokenBudgetApproaching,omitempty"`
	TokenBudgetExceeded    bool          `json:"tokenBudgetExceeded,omitempty"`
	TokenBudgetConfig      *BudgetConfig `json:"tokenBudgetConfig,omitempty"`

	Stats SprintStats `json:"stats"`

	// InboxCursors maps inbox file paths to the count of messages already
	// processed; StatusOverrides keeps protocol wins over on-disk status.
	// Both persist so cursor and rank monotonicity survive a restart.
	InboxCursors    map[string]int            `json:"inboxCursors"`
	StatusOverrides map[string]StatusOverride `json:"statusOverrides"`

	// InitMessageSent is the one-shot guard for the "Sprint initialized"
	// system message. Reset on sprint stop.
	InitMessageSent bool `json:"initMessageSent,omitempty"`

	StartedAt time.Time `json:"startedAt,omitempty"`

	// Runtime-only fields, stripped on resume.
	TmuxAvailable   bool   `json:"tmuxAvailable,omitempty"`
	TmuxSessionName string `json:"tmuxSessionName,omitempty"`
	ProjectName     string `json:"projectName,omitempty"`
}

// NewSprintState returns an idle state with all collections allocated.
func NewSprintState() *SprintState {
	return &SprintState{
		Mode:              ModeManual,
		Phase:             PhaseIdle,
		Agents:            []Agent{},
		Tasks:             []Task{},
		Messages:          []Message{},
		ReviewTaskIDs:     []string{},
		ValidatingTaskIDs: []string{},
		Checkpoints:       []string{},
		TokenUsage:        NewTokenUsage(),
		InboxCursors:      make(map[string]int),
		StatusOverrides:   make(map[string]StatusOverride),
	}
}

// TaskByID returns a pointer into Tasks for the given id, or nil.
func (s *SprintState) TaskByID(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// AgentByName returns a pointer into Agents for the given name, or nil.
func (s *SprintState) AgentByName(name string) *Agent {
	for i := range s.Agents {
		if s.Agents[i].Name == name {
			return &s.Agents[i]
		}
	}
	return nil
}

// Clone deep-copies the state so snapshots can be marshaled outside the
// store lock without racing subsequent mutations.
func (s *SprintState) Clone() *SprintState {
	c := *s

	c.Agents = append([]Agent(nil), s.Agents...)
	c.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		c.Tasks[i] = t
		c.Tasks[i].BlockedBy = append([]string(nil), t.BlockedBy...)
	}
	c.Messages = append([]Message(nil), s.Messages...)
	c.ReviewTaskIDs = append([]string(nil), s.ReviewTaskIDs...)
	c.ValidatingTaskIDs = append([]string(nil), s.ValidatingTaskIDs...)
	c.Checkpoints = append([]string(nil), s.Checkpoints...)

	if s.PendingCheckpoint != nil {
		pc := *s.PendingCheckpoint
		c.PendingCheckpoint = &pc
	}
	if s.Escalation != nil {
		esc := *s.Escalation
		c.Escalation = &esc
	}
	if s.MergeConflict != nil {
		mc := *s.MergeConflict
		mc.Files = append([]string(nil), s.MergeConflict.Files...)
		c.MergeConflict = &mc
	}
	if s.TokenBudgetConfig != nil {
		bc := *s.TokenBudgetConfig
		c.TokenBudgetConfig = &bc
	}

	c.TokenUsage.ByAgent = make(map[string]int, len(s.TokenUsage.ByAgent))
	for k, v := range s.TokenUsage.ByAgent {
		c.TokenUsage.ByAgent[k] = v
	}
	c.InboxCursors = make(map[string]int, len(s.InboxCursors))
	for k, v := range s.InboxCursors {
		c.InboxCursors[k] = v
	}
	c.StatusOverrides = make(map[string]StatusOverride, len(s.StatusOverrides))
	for k, v := range s.StatusOverrides {
		c.StatusOverrides[k] = v
	}

	return &c
}
