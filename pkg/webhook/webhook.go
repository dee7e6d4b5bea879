// Package webhook delivers sprint lifecycle notifications to the
// configured URL. Deliveries run on their own goroutine with bounded
// retries; every final outcome is surfaced to the dashboard as a
// webhook_status event.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/events"
)

// Notification event names posted to the configured webhook.
const (
	EventTeamDiscovered      = "team_discovered"
	EventCheckpointHit       = "checkpoint_hit"
	EventTaskEscalated       = "task_escalated"
	EventTaskCompleted       = "task_completed"
	EventSprintComplete      = "sprint_complete"
	EventTokenBudgetExceeded = "token_budget_exceeded"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 5 * time.Second

// maxRetries is the number of re-attempts after the initial try.
const maxRetries = 3

// payload is the POST body: the event name, when it happened, and
// event-specific details.
type payload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier posts notifications to one webhook URL, applying the
// configured event filter and extra headers.
type Notifier struct {
	url          string
	allowed      map[string]bool
	headers      map[string]string
	client       *http.Client
	buildBackoff func() backoff.BackOff
	broadcast    func(events.Event)
	clock        func() time.Time
}

// NewNotifier builds a notifier from the notifications config. broadcast
// receives the webhook_status outcome events and may be nil in tests.
func NewNotifier(cfg config.NotificationsConfig, broadcast func(events.Event)) *Notifier {
	allowed := make(map[string]bool, len(cfg.Events))
	for _, e := range cfg.Events {
		allowed[e] = true
	}
	return &Notifier{
		url:     cfg.Webhook,
		allowed: allowed,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: DefaultTimeout},
		buildBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return backoff.WithMaxRetries(b, maxRetries)
		},
		broadcast: broadcast,
		clock:     time.Now,
	}
}

// Configured reports whether a webhook URL is set.
func (n *Notifier) Configured() bool {
	return n.url != ""
}

// wants applies the configured event filter; an empty filter allows all.
func (n *Notifier) wants(event string) bool {
	return len(n.allowed) == 0 || n.allowed[event]
}

// Notify posts one notification asynchronously. Unconfigured notifiers
// and filtered-out events are a no-op.
func (n *Notifier) Notify(ctx context.Context, event string, data map[string]any) {
	if !n.Configured() || !n.wants(event) {
		return
	}

	body, err := json.Marshal(payload{Event: event, Timestamp: n.clock(), Data: data})
	if err != nil {
		slog.Error("Failed to marshal webhook payload", "event", event, "error", err)
		return
	}

	go n.send(ctx, event, body)
}

// send delivers with retries and broadcasts the final outcome.
func (n *Notifier) send(ctx context.Context, event string, body []byte) {
	status, err := n.deliver(ctx, body)

	outcome := events.WebhookStatusPayload{Event: event, OK: err == nil, Status: status}
	if err != nil {
		outcome.Error = err.Error()
		slog.Warn("Webhook delivery failed", "event", event, "url", n.url, "error", err)
	} else {
		slog.Info("Webhook delivered", "event", event, "status", status)
	}

	if n.broadcast != nil {
		n.broadcast(outcome)
	}
}

// deliver posts the body, retrying on transport errors and non-2xx
// responses. It returns the last HTTP status seen, 0 when no response
// ever arrived.
func (n *Notifier) deliver(ctx context.Context, body []byte) (int, error) {
	var lastStatus int

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range n.headers {
			req.Header.Set(k, v)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		lastStatus = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(n.buildBackoff(), ctx))
	return lastStatus, err
}
