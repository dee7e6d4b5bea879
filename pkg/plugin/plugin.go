// Package plugin invokes user-configured hook executables at sprint
// lifecycle moments. Each plugin receives the hook payload as JSON on
// stdin. Invocations are fire-and-forget: a broken plugin is logged and
// never affects sprint state.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"time"
)

// Hook names passed to plugins. They mirror the webhook notification
// moments so one integration script can serve both.
const (
	HookTeamDiscovered = "team_discovered"
	HookTaskCompleted  = "task_completed"
	HookTaskEscalated  = "task_escalated"
)

// DefaultTimeout bounds one plugin invocation.
const DefaultTimeout = 10 * time.Second

// Runner executes the configured plugin commands.
type Runner struct {
	plugins []string
	dir     string
	timeout time.Duration
}

// NewRunner returns a runner over the configured plugin commands,
// executing in dir (typically the project root).
func NewRunner(plugins []string, dir string) *Runner {
	return &Runner{plugins: plugins, dir: dir, timeout: DefaultTimeout}
}

// Configured reports whether any plugins are configured.
func (r *Runner) Configured() bool {
	return len(r.plugins) > 0
}

// Invoke runs every configured plugin with the hook payload on stdin,
// each on its own goroutine.
func (r *Runner) Invoke(ctx context.Context, hook string, data map[string]any) {
	if !r.Configured() {
		return
	}

	body, err := json.Marshal(struct {
		Hook      string         `json:"hook"`
		Timestamp time.Time      `json:"timestamp"`
		Data      map[string]any `json:"data,omitempty"`
	}{Hook: hook, Timestamp: time.Now(), Data: data})
	if err != nil {
		slog.Error("Failed to marshal plugin payload", "hook", hook, "error", err)
		return
	}

	for _, plugin := range r.plugins {
		go r.runOne(ctx, plugin, hook, body)
	}
}

func (r *Runner) runOne(ctx context.Context, plugin, hook string, body []byte) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", plugin)
	cmd.Dir = r.dir
	cmd.Stdin = bytes.NewReader(body)

	if output, err := cmd.CombinedOutput(); err != nil {
		slog.Warn("Plugin hook failed",
			"plugin", plugin, "hook", hook, "error", err, "output", string(output))
		return
	}
	slog.Debug("Plugin hook completed", "plugin", plugin, "hook", hook)
}
