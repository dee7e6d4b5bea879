package sprint

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/persist"
)

// StopResult is the control API's stop response: the generated retro
// and a PR-ready summary of completed work.
type StopResult struct {
	SprintID  string `json:"sprintId,omitempty"`
	Retro     string `json:"retro"`
	PRSummary string `json:"prSummary"`
}

// Stop ends the sprint: writes the history snapshot, appends the
// analytics record, runs the learning detectors, detaches the recorder,
// resets the state, and flushes a final persist. Safe to call with no
// active sprint; the reset still happens.
func (c *Coordinator) Stop() StopResult {
	var res StopResult
	c.store.Update(func(st *models.SprintState) {
		endedAt := c.clock()
		res.SprintID = st.SprintID
		res.Retro = buildRetro(st, endedAt)
		res.PRSummary = buildPRSummary(st)

		if st.SprintID != "" {
			record := models.NewSprintRecord(st, endedAt)
			if err := persist.WriteHistory(c.project, st.SprintID, st, res.Retro, record); err != nil {
				slog.Error("Failed to write sprint history", "sprint_id", st.SprintID, "error", err)
			}
			if err := persist.AppendAnalytics(c.project, record); err != nil {
				slog.Error("Failed to append sprint analytics", "sprint_id", st.SprintID, "error", err)
			}
			if fired, err := c.learnings.RunDetectors(record); err != nil {
				slog.Warn("Learning detectors failed", "error", err)
			} else if len(fired) > 0 {
				slog.Info("Learning signals fired", "count", len(fired))
			}
			slog.Info("Sprint stopped",
				"sprint_id", st.SprintID,
				"tasks_completed", record.TasksCompleted,
				"tasks_total", record.TasksTotal,
				"messages", record.Messages)
		}

		c.bus.DetachRecorder()
		if c.recorder != nil {
			if err := c.recorder.Close(); err != nil {
				slog.Warn("Failed to close replay recording", "error", err)
			}
			c.recorder = nil
		}

		st.ResetForStop()
	})

	if err := c.persister.Flush(); err != nil {
		slog.Error("Final persist after stop failed", "error", err)
	}
	return res
}

// buildRetro renders a markdown retrospective from the final state.
func buildRetro(st *models.SprintState, endedAt time.Time) string {
	var b strings.Builder
	team := st.TeamName
	if team == "" {
		team = "(no team)"
	}
	fmt.Fprintf(&b, "# Sprint Retro: %s\n\n", team)
	if st.SprintID != "" {
		fmt.Fprintf(&b, "- Sprint: %s\n", st.SprintID)
	}
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- Duration: %s\n", endedAt.Sub(st.StartedAt).Round(time.Second))
	}
	if st.Mode == models.ModeAutonomous {
		fmt.Fprintf(&b, "- Cycles: %d\n", st.Cycle)
	}
	completed, open := partitionTasks(st.Tasks)
	fmt.Fprintf(&b, "- Tasks: %d/%d completed\n", len(completed), len(completed)+len(open))
	fmt.Fprintf(&b, "- Messages: %d\n", len(st.Messages))
	fmt.Fprintf(&b, "- Tokens: %d (est. $%.2f)\n", st.TokenUsage.Total, st.TokenUsage.EstimatedCostUSD)
	if st.Stats != (models.SprintStats{}) {
		fmt.Fprintf(&b, "- Review flow: %d approvals, %d change requests, %d escalations, %d validation failures\n",
			st.Stats.Approvals, st.Stats.ChangeRequests, st.Stats.Escalations, st.Stats.ValidationFailures)
	}
	if st.TokenBudgetExceeded {
		b.WriteString("- Token budget was exceeded; the sprint was paused.\n")
	}

	if len(completed) > 0 {
		b.WriteString("\n## Completed\n\n")
		for _, t := range completed {
			fmt.Fprintf(&b, "- #%s %s", t.ID, t.Subject)
			if t.Owner != "" {
				fmt.Fprintf(&b, " (%s)", t.Owner)
			}
			b.WriteByte('\n')
		}
	}
	if len(open) > 0 {
		b.WriteString("\n## Unfinished\n\n")
		for _, t := range open {
			fmt.Fprintf(&b, "- #%s %s [%s]\n", t.ID, t.Subject, t.Status)
		}
	}
	return b.String()
}

// buildPRSummary renders the completed-task line list used to describe
// the sprint's work in a pull request body.
func buildPRSummary(st *models.SprintState) string {
	completed, _ := partitionTasks(st.Tasks)
	if len(completed) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d tasks completed\n\n", st.TeamName, len(completed))
	for _, t := range completed {
		fmt.Fprintf(&b, "- #%s %s\n", t.ID, t.Subject)
	}
	return b.String()
}

// partitionTasks splits tasks into completed and still-open, dropping
// deleted ones from both.
func partitionTasks(tasks []models.Task) (completed, open []models.Task) {
	for _, t := range tasks {
		switch t.Status {
		case models.TaskCompleted:
			completed = append(completed, t)
		case models.TaskDeleted:
		default:
			open = append(open, t)
		}
	}
	return completed, open
}
