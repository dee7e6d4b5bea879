// Package runner launches and supervises the host runtime process on
// behalf of the control API. Output lines stream as terminal_output
// events, lifecycle edges broadcast process_started and process_exited,
// and stop escalates from SIGTERM to SIGKILL against the whole process
// group.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/events"
)

// ErrNoCommand is returned by Launch when no launch.command is
// configured; the API maps it to 409.
var ErrNoCommand = errors.New("no launch command configured")

// ErrAlreadyRunning is returned by Launch while a previous launch is
// still alive.
var ErrAlreadyRunning = errors.New("host runtime already running")

const (
	// stopGrace is how long Stop waits after SIGTERM before SIGKILL.
	stopGrace = 5 * time.Second

	// paneSettle is how long after start the tmux pane listing runs;
	// panes appear only once the runtime has booted its splits.
	paneSettle = 1500 * time.Millisecond
)

// Bus is the broadcast surface the runner publishes to.
type Bus interface {
	Broadcast(evt events.Event)
}

// Runner supervises at most one host runtime process.
type Runner struct {
	cfg  config.LaunchConfig
	dir  string
	bus  Bus
	tmux tmuxInfo

	mu   sync.Mutex
	cmd  *exec.Cmd
	pgid int
	done chan struct{}
}

// New builds a runner rooted at the project directory. Tmux detection
// runs once here; the results feed the runtime-only state fields.
func New(cfg config.LaunchConfig, dir string, bus Bus) *Runner {
	return &Runner{
		cfg:  cfg,
		dir:  dir,
		bus:  bus,
		tmux: detectTmux(),
	}
}

// TmuxAvailable reports whether a usable tmux binary was found.
func (r *Runner) TmuxAvailable() bool { return r.tmux.available }

// TmuxSessionName returns the surrounding tmux session name, or "" when
// not running inside tmux.
func (r *Runner) TmuxSessionName() string { return r.tmux.session }

// Running reports whether a launched process is still alive.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Launch spawns the configured command through the shell and starts the
// output and exit pumps. The optional prompt is handed to the command
// via the TEAMCLAUDE_PROMPT environment variable.
func (r *Runner) Launch(prompt string) (int, error) {
	if r.cfg.Command == "" {
		return 0, ErrNoCommand
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return 0, ErrAlreadyRunning
	}

	cmd := exec.Command("sh", "-c", r.cfg.Command)
	cmd.Dir = r.dir
	cmd.Env = os.Environ()
	if prompt != "" {
		cmd.Env = append(cmd.Env, "TEAMCLAUDE_PROMPT="+prompt)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return 0, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return 0, fmt.Errorf("start launch command: %w", err)
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		pgid = pid
	}
	r.cmd = cmd
	r.pgid = pgid
	r.done = make(chan struct{})

	slog.Info("Host runtime launched", "pid", pid, "command", r.cfg.Command)
	r.bus.Broadcast(events.ProcessStartedPayload{PID: pid, Command: r.cfg.Command})

	// Wait must not run until both pipes hit EOF, or it may close them
	// under the scanners and drop tail output.
	var pumps sync.WaitGroup
	pumps.Add(2)
	go r.pumpLines(stdout, &pumps)
	go r.pumpLines(stderr, &pumps)
	go r.waitForExit(cmd, &pumps)
	if r.tmux.available {
		go r.discoverPanes()
	}

	return pid, nil
}

// pumpLines streams one output pipe line by line. Terminal output is a
// transient event, never persisted or recorded.
func (r *Runner) pumpLines(pipe io.ReadCloser, pumps *sync.WaitGroup) {
	defer pumps.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.bus.Broadcast(events.TerminalOutputPayload{Line: scanner.Text()})
	}
}

// waitForExit reaps the process and broadcasts its exit code. A
// signal-terminated process reports code -1.
func (r *Runner) waitForExit(cmd *exec.Cmd, pumps *sync.WaitGroup) {
	pumps.Wait()
	err := cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}

	r.mu.Lock()
	if r.cmd == cmd {
		r.cmd = nil
		r.pgid = 0
		close(r.done)
	}
	r.mu.Unlock()

	slog.Info("Host runtime exited", "code", code)
	r.bus.Broadcast(events.ProcessExitedPayload{Code: code})
}

// Stop terminates the launched process group, SIGTERM first and SIGKILL
// after the grace period. No-op when nothing is running.
func (r *Runner) Stop() {
	r.mu.Lock()
	cmd := r.cmd
	pgid := r.pgid
	done := r.done
	r.mu.Unlock()
	if cmd == nil {
		return
	}

	target := -pgid
	if pgid == 0 {
		target = cmd.Process.Pid
	}
	slog.Info("Stopping host runtime", "pgid", pgid)
	_ = syscall.Kill(target, syscall.SIGTERM)

	select {
	case <-done:
		return
	case <-time.After(stopGrace):
	}

	slog.Warn("Host runtime ignored SIGTERM, killing", "pgid", pgid)
	_ = syscall.Kill(target, syscall.SIGKILL)
	<-done
}

// discoverPanes samples the tmux pane list once the runtime has had a
// moment to boot, and broadcasts panes_discovered when any were found.
func (r *Runner) discoverPanes() {
	time.Sleep(paneSettle)
	panes := listPanes(r.tmux.session)
	if len(panes) == 0 {
		return
	}
	slog.Debug("Discovered tmux panes", "count", len(panes))
	r.bus.Broadcast(events.PanesDiscoveredPayload{Panes: panes})
}
