package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/paths"
)

// maxLineBytes bounds a single recorded line when reading a recording
// back. Broadcast envelopes are small; this is headroom, not a target.
const maxLineBytes = 4 * 1024 * 1024

// Player streams recorded sprints back to individual clients. It
// implements the broadcast bus replay starter.
type Player struct {
	project *paths.Project
}

// NewPlayer returns a player reading recordings under the project's
// history directory.
func NewPlayer(project *paths.Project) *Player {
	return &Player{project: project}
}

// StartReplay loads the named recording and streams it to send on a new
// goroutine: a replay_start frame immediately, each recorded event at
// its timestamp divided by speed, and a replay_complete frame after the
// last. The returned cancel stops all pending sends.
func (p *Player) StartReplay(ctx context.Context, sprintID string, speed float64, send func([]byte) error) (func(), error) {
	lines, err := ReadRecording(p.project.ReplayFile(sprintID))
	if err != nil {
		return nil, err
	}
	if speed <= 0 {
		speed = 1
	}

	replayCtx, cancel := context.WithCancel(ctx)
	go run(replayCtx, sprintID, speed, lines, send)
	return cancel, nil
}

// run delivers one replay on a single goroutine so recorded order is
// preserved end to end.
func run(ctx context.Context, sprintID string, speed float64, lines []Line, send func([]byte) error) {
	start, err := events.Marshal(events.ReplayStartPayload{
		SprintID:    sprintID,
		TotalEvents: len(lines),
		Speed:       speed,
	})
	if err != nil {
		slog.Error("Failed to marshal replay start", "sprint_id", sprintID, "error", err)
		return
	}
	if err := send(start); err != nil {
		return
	}

	began := time.Now()
	for _, line := range lines {
		target := time.Duration(float64(line.Timestamp) / speed * float64(time.Millisecond))
		if delay := target - time.Since(began); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		if err := send(line.Event); err != nil {
			// Client gone; nothing left to stream to.
			return
		}
	}

	complete, err := events.Marshal(events.ReplayCompletePayload{})
	if err != nil {
		slog.Error("Failed to marshal replay complete", "sprint_id", sprintID, "error", err)
		return
	}
	_ = send(complete)
}

// ReadRecording parses a recording file into its lines. A torn or
// malformed trailing line (crash mid-write) is skipped, not fatal.
func ReadRecording(path string) ([]Line, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []Line
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line Line
		if err := json.Unmarshal(raw, &line); err != nil {
			slog.Warn("Skipping malformed recording line", "file", path, "error", err)
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
