package models

// AgentStatus describes the activity state of a discovered agent.
type AgentStatus string

const (
	// AgentActive marks an agent with recent outgoing traffic.
	AgentActive AgentStatus = "active"
	// AgentIdle marks an agent that announced an idle sentinel.
	AgentIdle AgentStatus = "idle"
	// AgentUnknown marks an agent before any traffic has been observed.
	AgentUnknown AgentStatus = "unknown"
)

// IsValid checks if the agent status is valid.
func (s AgentStatus) IsValid() bool {
	return s == AgentActive || s == AgentIdle || s == AgentUnknown
}

// TaskStatus describes the display status of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDeleted    TaskStatus = "deleted"
)

// IsValid checks if the task status is valid.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskDeleted:
		return true
	default:
		return false
	}
}

// ParseTaskStatus maps a task-file status string onto the closed status
// set. Unrecognized values fall back to pending so a host runtime typo
// cannot poison the rank order.
func ParseTaskStatus(s string) TaskStatus {
	status := TaskStatus(s)
	if !status.IsValid() {
		return TaskPending
	}
	return status
}

// Rank maps a task status onto the monotonic order used for display
// precedence: pending < in_progress < completed < deleted. Unknown
// statuses rank below pending so they never win against real ones.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskPending:
		return 0
	case TaskInProgress:
		return 1
	case TaskCompleted:
		return 2
	case TaskDeleted:
		return 3
	default:
		return -1
	}
}

// MaxStatus returns the higher-ranked of two task statuses.
func MaxStatus(a, b TaskStatus) TaskStatus {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// SprintMode distinguishes PM-driven autonomous sprints from manual ones.
type SprintMode string

const (
	ModeManual     SprintMode = "manual"
	ModeAutonomous SprintMode = "autonomous"
)

// IsValid checks if the sprint mode is valid.
func (m SprintMode) IsValid() bool {
	return m == ModeManual || m == ModeAutonomous
}

// SprintPhase is the coarse position of the sprint inside a cycle.
type SprintPhase string

const (
	PhaseIdle       SprintPhase = "idle"
	PhaseAnalyzing  SprintPhase = "analyzing"
	PhaseSprinting  SprintPhase = "sprinting"
	PhaseValidating SprintPhase = "validating"
)

// IsValid checks if the sprint phase is valid.
func (p SprintPhase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseAnalyzing, PhaseSprinting, PhaseValidating:
		return true
	default:
		return false
	}
}

// AgentRole is the coarse role bucket used by the memory and learning stores.
type AgentRole string

const (
	RolePM       AgentRole = "pm"
	RoleManager  AgentRole = "manager"
	RoleEngineer AgentRole = "engineer"
)

// IsValid checks if the agent role is valid.
func (r AgentRole) IsValid() bool {
	return r == RolePM || r == RoleManager || r == RoleEngineer
}

// RoleOf buckets a sprint agent name into its role. Engineer is the
// fallback for every non-pm, non-manager member, including numbered
// engineers (sprint-engineer-2) and unrecognized names.
func RoleOf(agentName string) AgentRole {
	switch agentName {
	case "sprint-pm":
		return RolePM
	case "sprint-manager":
		return RoleManager
	default:
		return RoleEngineer
	}
}
