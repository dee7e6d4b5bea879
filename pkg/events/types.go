// Package events defines the closed WebSocket event union the dashboard
// consumes and the broadcaster that fans each event out to every
// connected client.
//
// Every event on the wire is a JSON object whose "type" field
// discriminates the payload. Clients connect to /ws, immediately receive
// an init event carrying the full state snapshot, and from then on see
// every broadcast in the order it was produced. terminal_output and
// panes_discovered are transient: they reach clients but are never
// persisted or recorded (high-volume and replay-irrelevant).
package events

import "encoding/json"

// Event types delivered to clients.
const (
	EventTypeInit                   = "init"
	EventTypeTaskUpdated            = "task_updated"
	EventTypeMessageSent            = "message_sent"
	EventTypeAgentStatus            = "agent_status"
	EventTypePaused                 = "paused"
	EventTypeEscalation             = "escalation"
	EventTypeMergeConflict          = "merge_conflict"
	EventTypeCycleInfo              = "cycle_info"
	EventTypeTokenUsage             = "token_usage"
	EventTypeCheckpoint             = "checkpoint"
	EventTypeValidation             = "validation"
	EventTypeTaskValidation         = "task_validation"
	EventTypeProcessStarted         = "process_started"
	EventTypeProcessExited          = "process_exited"
	EventTypeTerminalOutput         = "terminal_output"
	EventTypePanesDiscovered        = "panes_discovered"
	EventTypeWebhookStatus          = "webhook_status"
	EventTypeTokenBudgetApproaching = "token_budget_approaching"
	EventTypeTokenBudgetExceeded    = "token_budget_exceeded"
	EventTypeReplayStart            = "replay_start"
	EventTypeReplayComplete         = "replay_complete"
)

// Event is implemented by every payload in the closed union.
type Event interface {
	EventType() string
}

// IsTransient reports whether an event type bypasses persistence and
// recording.
func IsTransient(eventType string) bool {
	return eventType == EventTypeTerminalOutput || eventType == EventTypePanesDiscovered
}

// Marshal serializes an event with its type discriminator injected as
// the first field, so the payload structs stay free of a redundant Type
// member that call sites could forget to set.
func Marshal(evt Event) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	// Payloads are structs, so body is always a JSON object.
	out := make([]byte, 0, len(body)+len(evt.EventType())+11)
	out = append(out, `{"type":"`...)
	out = append(out, evt.EventType()...)
	out = append(out, '"')
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action   string  `json:"action"`             // "ping", "replay", "replay_stop"
	SprintID string  `json:"sprintId,omitempty"` // recording to replay
	Speed    float64 `json:"speed,omitempty"`    // replay speed multiplier (default 1)
}
