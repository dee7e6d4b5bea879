package runner

import (
	"os"
	"os/exec"
	"strings"

	"github.com/albertnahas/teamclaude/pkg/events"
)

type tmuxInfo struct {
	available bool
	session   string
}

// detectTmux probes for a usable tmux binary and, when the process runs
// inside a tmux client, resolves the surrounding session name.
func detectTmux() tmuxInfo {
	if _, err := exec.LookPath("tmux"); err != nil {
		return tmuxInfo{}
	}
	info := tmuxInfo{available: true}
	if os.Getenv("TMUX") == "" {
		return info
	}
	out, err := exec.Command("tmux", "display-message", "-p", "#S").Output()
	if err != nil {
		return info
	}
	info.session = strings.TrimSpace(string(out))
	return info
}

// listPanes returns the panes of the given session, or of the whole
// server when no session name is known.
func listPanes(session string) []events.Pane {
	args := []string{"list-panes", "-F", "#{pane_id}\t#{pane_title}"}
	if session != "" {
		args = append(args, "-s", "-t", session)
	} else {
		args = append(args, "-a")
	}
	out, err := exec.Command("tmux", args...).Output()
	if err != nil {
		return nil
	}
	return parsePanes(out)
}

// parsePanes splits tmux list-panes output into pane records; each line
// is "<pane_id>\t<pane_title>".
func parsePanes(out []byte) []events.Pane {
	var panes []events.Pane
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		id, title, _ := strings.Cut(line, "\t")
		panes = append(panes, events.Pane{ID: id, Title: title})
	}
	return panes
}
