// Package verify runs the configured external check commands backing the
// per-task and cycle verification gates. It only executes and reports;
// the coordinator owns the resulting state transitions.
package verify

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultTimeout bounds one check command. Checks are build/test style
// commands; anything slower is treated as hung.
const DefaultTimeout = 5 * time.Minute

// Result is the outcome of one check command. Invoked reports whether
// the command could be started at all: a false value is an
// infrastructure failure, and gates treat it as a pass (fail open).
type Result struct {
	Command string
	Passed  bool
	Invoked bool
	Output  string
}

// Runner executes check commands sequentially in a fixed directory.
type Runner struct {
	commands []string
	dir      string
	timeout  time.Duration
}

// NewRunner returns a runner over the configured commands, executing in
// dir (typically the project root).
func NewRunner(commands []string, dir string) *Runner {
	return &Runner{commands: commands, dir: dir, timeout: DefaultTimeout}
}

// Configured reports whether any check commands are configured.
func (r *Runner) Configured() bool {
	return len(r.commands) > 0
}

// RunAll executes every configured command in order via the shell,
// capturing combined output. It never short-circuits: later checks run
// even when earlier ones fail, so the cycle gate can report all results.
func (r *Runner) RunAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.commands))
	for _, command := range r.commands {
		results = append(results, r.runOne(ctx, command))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, command string) Result {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = r.dir
	output, err := cmd.CombinedOutput()

	result := Result{Command: command, Invoked: true, Output: string(output)}
	switch {
	case err == nil:
		result.Passed = true
	case cmd.ProcessState != nil:
		// The command ran and exited non-zero: a real check failure.
		slog.Info("Verification check failed",
			"command", command, "exit_code", cmd.ProcessState.ExitCode())
	default:
		// The command never started (missing shell, bad dir). Fail open
		// so a tooling outage cannot livelock the sprint.
		slog.Warn("Verification check could not run", "command", command, "error", err)
		result.Invoked = false
		result.Passed = true
		result.Output = err.Error()
	}
	return result
}

// Passed reports whether a result set clears the gate: every check
// passed, counting fail-open invocation errors as passes. An empty set
// passes trivially.
func Passed(results []Result) bool {
	for _, res := range results {
		if !res.Passed {
			return false
		}
	}
	return true
}
