package models

import "time"

// SprintRecord is one entry of the append-grown analytics array and the
// record.json written into a sprint's history directory. It is the input
// the learning signal detectors read at sprint stop.
type SprintRecord struct {
	SprintID       string      `json:"sprintId"`
	TeamName       string      `json:"teamName,omitempty"`
	StartedAt      time.Time   `json:"startedAt,omitempty"`
	EndedAt        time.Time   `json:"endedAt"`
	Cycles         int         `json:"cycles"`
	TasksTotal     int         `json:"tasksTotal"`
	TasksCompleted int         `json:"tasksCompleted"`
	Messages       int         `json:"messages"`
	Stats          SprintStats `json:"stats"`
	TokenUsage     TokenUsage  `json:"tokenUsage"`
	BudgetExceeded bool        `json:"budgetExceeded,omitempty"`
}

// NewSprintRecord summarizes a terminal state. Deleted tasks do not count
// toward the total, so an all-deleted backlog still reads as complete.
func NewSprintRecord(s *SprintState, endedAt time.Time) SprintRecord {
	rec := SprintRecord{
		SprintID:       s.SprintID,
		TeamName:       s.TeamName,
		StartedAt:      s.StartedAt,
		EndedAt:        endedAt,
		Cycles:         s.Cycle,
		Messages:       len(s.Messages),
		Stats:          s.Stats,
		TokenUsage:     s.TokenUsage,
		BudgetExceeded: s.TokenBudgetExceeded,
	}
	for _, t := range s.Tasks {
		switch t.Status {
		case TaskDeleted:
		case TaskCompleted:
			rec.TasksTotal++
			rec.TasksCompleted++
		default:
			rec.TasksTotal++
		}
	}
	return rec
}

// Incomplete reports whether the sprint stopped with unfinished tasks.
func (r SprintRecord) Incomplete() bool {
	return r.TasksCompleted < r.TasksTotal
}
