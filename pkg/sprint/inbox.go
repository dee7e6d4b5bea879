package sprint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/albertnahas/teamclaude/pkg/budget"
	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
	"github.com/albertnahas/teamclaude/pkg/plugin"
	"github.com/albertnahas/teamclaude/pkg/protocol"
	"github.com/albertnahas/teamclaude/pkg/webhook"
)

// inboxMessage mirrors one entry of a host runtime inbox file. Content
// may be a plain string or structured blocks; both are accepted.
type inboxMessage struct {
	From      string          `json:"from"`
	Text      string          `json:"text"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
	Usage     *messageUsage   `json:"usage"`
}

type messageUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// parseInboxEntries accepts either a JSON array of messages or a single
// object coerced to a singleton. Entries stay raw so malformed ones can
// be skipped individually without losing their cursor slot.
func parseInboxEntries(data []byte) ([]json.RawMessage, bool) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, true
	}
	var one map[string]json.RawMessage
	if err := json.Unmarshal(data, &one); err == nil {
		return []json.RawMessage{json.RawMessage(data)}, true
	}
	return nil, false
}

// messageContent extracts the display text: first available of text,
// content, or the raw message.
func messageContent(raw json.RawMessage, msg inboxMessage) string {
	if msg.Text != "" {
		return msg.Text
	}
	if len(msg.Content) > 0 {
		var s string
		if err := json.Unmarshal(msg.Content, &s); err == nil {
			return s
		}
		return string(msg.Content)
	}
	return string(raw)
}

// HandleInbox processes a create-or-modify event on an inbox file
// belonging to the active team. Only messages beyond the persisted
// cursor are new; the cursor advances to the file length afterwards.
func (c *Coordinator) HandleInbox(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read inbox", "path", path, "error", err)
		return
	}
	entries, ok := parseInboxEntries(data)
	if !ok {
		slog.Warn("Skipping malformed inbox file", "path", path)
		return
	}

	recipient := paths.RecipientFromInbox(path)
	c.store.Update(func(st *models.SprintState) {
		if st.TeamName == "" || paths.TeamFromPath(path) != st.TeamName {
			return
		}
		cursor := st.Cursor(path)
		if len(entries) < cursor {
			// A shrink should not occur live; clamping means a later
			// regrowth re-ingests the tail.
			slog.Warn("Inbox shrank below cursor", "path", path, "cursor", cursor, "messages", len(entries))
			cursor = len(entries)
		}
		for i := cursor; i < len(entries); i++ {
			c.processMessage(st, path, recipient, i, entries[i])
		}
		st.SetCursor(path, len(entries))
	})
}

// processMessage runs the per-message pipeline: agent discovery, usage
// folding, content extraction, the idle sentinel, sender promotion,
// append-and-broadcast, then protocol transitions.
func (c *Coordinator) processMessage(st *models.SprintState, path, recipient string, index int, raw json.RawMessage) {
	var msg inboxMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("Skipping malformed inbox entry", "path", path, "index", index, "error", err)
		return
	}

	from := msg.From
	if from == "" {
		from = "unknown"
	}
	c.ensureAgent(st, from)
	c.ensureAgent(st, recipient)

	// Usage folds even for messages skipped below: idle reports still
	// burn tokens.
	if msg.Usage != nil {
		c.foldUsage(st, recipient, msg.Usage.InputTokens, msg.Usage.OutputTokens)
	}

	content := protocol.Strip(messageContent(raw, msg))

	if protocol.IsIdleSentinel(content) {
		if ag := st.AgentByName(recipient); ag != nil {
			ag.Status = models.AgentIdle
			c.bus.Broadcast(events.AgentStatusPayload{Agent: recipient, Status: models.AgentIdle})
		}
		return
	}

	if ag := st.AgentByName(from); ag != nil && ag.Status != models.AgentActive {
		ag.Status = models.AgentActive
		c.bus.Broadcast(events.AgentStatusPayload{Agent: from, Status: models.AgentActive})
	}

	ts := c.clock()
	if msg.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			ts = parsed
		}
	}

	decoded := protocol.Decode(content)
	m := models.Message{
		ID:        fmt.Sprintf("%d-%d", ts.UnixMilli(), index),
		Timestamp: ts,
		From:      from,
		To:        recipient,
		Content:   content,
	}
	if decoded != nil {
		m.Protocol = string(decoded.Tag)
	}
	st.Messages = append(st.Messages, m)
	c.bus.Broadcast(events.MessageSentPayload{Message: m})

	c.detectMergeConflict(st, content)

	if decoded != nil {
		c.applyTransition(st, decoded, from, recipient)
	}
}

// foldUsage accumulates token counts and evaluates the budget. Once the
// budget is exceeded no further budget work runs until sprint reset;
// accumulation and its token_usage broadcast continue regardless.
func (c *Coordinator) foldUsage(st *models.SprintState, agent string, in, out int) {
	budget.Fold(&st.TokenUsage, agent, in, out, c.pricing)
	c.bus.Broadcast(events.TokenUsagePayload{Usage: st.TokenUsage})

	if st.TokenBudgetExceeded {
		return
	}
	if st.TokenBudgetConfig == nil {
		cfg := c.budgetConfig()
		st.TokenBudgetConfig = &cfg
	}
	switch budget.Evaluate(st.TokenUsage, *st.TokenBudgetConfig, st.TokenBudgetApproaching, st.TokenBudgetExceeded) {
	case budget.OutcomeExceeded:
		st.TokenBudgetExceeded = true
		st.TokenBudgetApproaching = true
		st.Paused = true
		slog.Warn("Token budget exceeded, pausing sprint",
			"total_tokens", st.TokenUsage.Total,
			"estimated_cost_usd", st.TokenUsage.EstimatedCostUSD)
		c.bus.Broadcast(events.PausedPayload{Paused: true})
		c.bus.Broadcast(events.TokenBudgetExceededPayload{Usage: st.TokenUsage, Config: *st.TokenBudgetConfig})
		c.notifier.Notify(context.Background(), webhook.EventTokenBudgetExceeded, map[string]any{
			"totalTokens":      st.TokenUsage.Total,
			"estimatedCostUsd": st.TokenUsage.EstimatedCostUSD,
		})
	case budget.OutcomeApproaching:
		st.TokenBudgetApproaching = true
		c.bus.Broadcast(events.TokenBudgetApproachingPayload{Usage: st.TokenUsage, Config: *st.TokenBudgetConfig})
	}
}

var conflictFilePattern = regexp.MustCompile(`Merge conflict in (\S+)`)

// detectMergeConflict watches observed traffic for relayed git conflict
// output. Setting replaces any previous conflict; dismissal is manual.
func (c *Coordinator) detectMergeConflict(st *models.SprintState, content string) {
	if !strings.Contains(strings.ToLower(content), "merge conflict") &&
		!strings.Contains(content, "CONFLICT (") {
		return
	}
	mc := models.MergeConflict{
		Details:    truncate(content, 500),
		DetectedAt: c.clock(),
	}
	for _, m := range conflictFilePattern.FindAllStringSubmatch(content, -1) {
		mc.Files = append(mc.Files, m[1])
	}
	st.MergeConflict = &mc
	c.bus.Broadcast(events.MergeConflictPayload{MergeConflict: mc})
}

// applyTransition runs the protocol state machine for one decoded tag.
func (c *Coordinator) applyTransition(st *models.SprintState, d *protocol.Decoded, sender, recipient string) {
	if d.Tag.IsCycleScoped() {
		if st.Mode != models.ModeAutonomous {
			return
		}
		c.applyCycleTransition(st, d)
		return
	}

	switch d.Tag {
	case protocol.TagTaskAssigned:
		tid := d.TaskID()
		if tid == "" {
			return
		}
		st.RaiseOverrideStatus(tid, models.TaskInProgress)
		st.SetOverrideOwner(tid, recipient)
		c.touchTask(st, tid)

	case protocol.TagReadyForReview:
		tid := d.TaskID()
		if tid == "" {
			return
		}
		if !st.AddReviewTask(tid) {
			return
		}
		st.RaiseOverrideStatus(tid, models.TaskInProgress)
		c.touchTask(st, tid)
		if st.RemoveCheckpoint(tid) {
			pc := models.PendingCheckpoint{TaskID: tid}
			if t := st.TaskByID(tid); t != nil {
				pc.TaskSubject = t.Subject
			}
			st.PendingCheckpoint = &pc
			c.bus.Broadcast(events.CheckpointPayload{Checkpoint: pc})
			c.notifier.Notify(context.Background(), webhook.EventCheckpointHit, map[string]any{
				"taskId":      tid,
				"taskSubject": pc.TaskSubject,
			})
		}

	case protocol.TagApproved:
		tid := d.TaskID()
		if tid == "" {
			return
		}
		st.MoveToValidating(tid)
		st.Stats.Approvals++
		st.RaiseOverrideStatus(tid, models.TaskInProgress)
		c.touchTask(st, tid)
		go c.runTaskGate(tid)

	case protocol.TagRequestChanges, protocol.TagResubmit:
		tid := d.TaskID()
		if tid == "" {
			return
		}
		st.RemoveReviewTask(tid)
		st.Stats.ChangeRequests++
		st.RaiseOverrideStatus(tid, models.TaskInProgress)
		c.touchTask(st, tid)

	case protocol.TagEscalate:
		esc := models.Escalation{
			TaskID:   d.TaskID(),
			Reason:   d.Body,
			Source:   sender,
			RaisedAt: c.clock(),
		}
		st.Escalation = &esc
		st.Stats.Escalations++
		c.bus.Broadcast(events.EscalationPayload{Escalation: esc})
		c.notifier.Notify(context.Background(), webhook.EventTaskEscalated, map[string]any{
			"taskId": esc.TaskID,
			"reason": esc.Reason,
			"source": sender,
		})
		c.plugins.Invoke(context.Background(), plugin.HookTaskEscalated, map[string]any{
			"taskId": esc.TaskID,
			"reason": esc.Reason,
			"source": sender,
		})

	case protocol.TagMemory:
		key, value, ok := protocol.ParseMemory(d.Body)
		if !ok {
			slog.Debug("Ignoring MEMORY message without key/value body", "sender", sender)
			return
		}
		role := models.RoleOf(sender)
		if _, err := c.memories.Save(string(role), key, value, st.SprintID); err != nil {
			slog.Warn("Failed to save agent memory", "role", role, "key", key, "error", err)
		}

	case protocol.TagProcessLearning:
		roleStr, action, ok := protocol.ParseLearning(d.Body)
		if !ok {
			slog.Debug("Ignoring PROCESS_LEARNING message without role/action body", "sender", sender)
			return
		}
		role := models.AgentRole(roleStr)
		if !role.IsValid() {
			role = models.RoleOf(sender)
		}
		if _, recorded, err := c.learnings.RecordReflection(role, action, st.SprintID); err != nil {
			slog.Warn("Failed to record process learning", "role", role, "error", err)
		} else if !recorded {
			slog.Debug("Reflection cap reached for sprint", "sprint_id", st.SprintID)
		}
	}
}

// applyCycleTransition runs the autonomous-mode phase machine.
func (c *Coordinator) applyCycleTransition(st *models.SprintState, d *protocol.Decoded) {
	switch d.Tag {
	case protocol.TagRoadmapReady:
		if n, ok := d.Cycle(); ok {
			st.Cycle = n
		}
		c.setPhase(st, models.PhaseSprinting,
			fmt.Sprintf("Roadmap ready: cycle %d is sprinting.", st.Cycle))

	case protocol.TagCycleComplete:
		c.setPhase(st, models.PhaseValidating,
			fmt.Sprintf("Cycle %d complete: running verification.", st.Cycle))
		go c.runScopedGate(scopeCycle)

	case protocol.TagSprintComplete:
		c.setPhase(st, models.PhaseValidating,
			"Sprint complete: running final verification.")
		go c.runScopedGate(scopeSprint)
		c.notifier.Notify(context.Background(), webhook.EventSprintComplete, map[string]any{
			"team":  st.TeamName,
			"cycle": st.Cycle,
		})

	case protocol.TagNextCycle:
		if n, ok := d.Cycle(); ok {
			st.Cycle = n
		} else {
			st.Cycle++
		}
		c.setPhase(st, models.PhaseAnalyzing,
			fmt.Sprintf("Cycle %d: analyzing.", st.Cycle))

	case protocol.TagAcceptance:
		c.setPhase(st, models.PhaseAnalyzing,
			"Acceptance review: analyzing results.")
	}
}

// setPhase transitions the sprint phase, broadcasting cycle_info and an
// explanatory one-line system message. No-op when the phase is
// unchanged.
func (c *Coordinator) setPhase(st *models.SprintState, phase models.SprintPhase, note string) {
	if st.Phase == phase {
		return
	}
	st.Phase = phase
	c.bus.Broadcast(events.CycleInfoPayload{Phase: phase, Cycle: st.Cycle})
	c.systemMessage(st, note)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
