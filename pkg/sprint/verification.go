package sprint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/plugin"
	"github.com/albertnahas/teamclaude/pkg/verify"
	"github.com/albertnahas/teamclaude/pkg/webhook"
)

const (
	scopeCycle  = "cycle"
	scopeSprint = "sprint"
)

// runTaskGate runs the per-task verification gate on its own goroutine
// and re-enters the store to apply the outcome. A result whose task id
// has left validatingTaskIds in the meantime is stale and discarded: a
// re-review superseded the approval while the commands ran.
func (c *Coordinator) runTaskGate(taskID string) {
	results := c.verifier.RunAll(context.Background())
	passed := verify.Passed(results)
	output := failureOutput(results)

	c.store.Update(func(st *models.SprintState) {
		if !st.RemoveValidatingTask(taskID) {
			slog.Debug("Discarding stale verification result", "task_id", taskID)
			return
		}
		if passed {
			st.RaiseOverrideStatus(taskID, models.TaskCompleted)
			c.touchTask(st, taskID)
			c.bus.Broadcast(events.TaskValidationPayload{TaskID: taskID, Passed: true})
			subject := ""
			if t := st.TaskByID(taskID); t != nil {
				subject = t.Subject
			}
			c.notifier.Notify(context.Background(), webhook.EventTaskCompleted, map[string]any{
				"taskId":  taskID,
				"subject": subject,
			})
			c.plugins.Invoke(context.Background(), plugin.HookTaskCompleted, map[string]any{
				"taskId":  taskID,
				"subject": subject,
			})
			return
		}
		st.Stats.ValidationFailures++
		c.bus.Broadcast(events.TaskValidationPayload{TaskID: taskID, Passed: false, Output: output})
		c.systemMessage(st, fmt.Sprintf(
			"Verification failed for task #%s: approval reverted, task stays in progress.", taskID))
	})
}

// runScopedGate runs the cycle- or sprint-scope verification and
// publishes the full per-check results. Any failure raises a
// system-attributed escalation instead of blocking the sprint.
func (c *Coordinator) runScopedGate(scope string) {
	results := c.verifier.RunAll(context.Background())
	passed := verify.Passed(results)
	checks := make([]events.CheckResult, len(results))
	for i, r := range results {
		checks[i] = events.CheckResult{
			Command: r.Command,
			Passed:  r.Passed,
			Output:  truncate(strings.TrimSpace(r.Output), 2000),
		}
	}

	c.store.Update(func(st *models.SprintState) {
		c.bus.Broadcast(events.ValidationPayload{Scope: scope, Passed: passed, Checks: checks})
		if passed {
			c.systemMessage(st, fmt.Sprintf(
				"%s verification passed: %d checks green.", scopeLabel(scope), len(results)))
			return
		}
		c.systemMessage(st, fmt.Sprintf(
			"%s verification failed: escalating to the team.", scopeLabel(scope)))
		st.Stats.ValidationFailures++
		esc := models.Escalation{
			Reason:   fmt.Sprintf("%s verification failed:\n%s", scopeLabel(scope), failureOutput(results)),
			Source:   "system",
			RaisedAt: c.clock(),
		}
		st.Escalation = &esc
		st.Stats.Escalations++
		c.bus.Broadcast(events.EscalationPayload{Escalation: esc})
	})
}

// failureOutput joins the outputs of failing checks, each prefixed by
// its command.
func failureOutput(results []verify.Result) string {
	var parts []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		parts = append(parts, fmt.Sprintf("$ %s\n%s", r.Command, strings.TrimSpace(r.Output)))
	}
	return truncate(strings.Join(parts, "\n"), 2000)
}

func scopeLabel(scope string) string {
	if scope == scopeSprint {
		return "Sprint"
	}
	return "Cycle"
}
