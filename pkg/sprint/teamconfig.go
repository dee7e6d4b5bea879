package sprint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/learning"
	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
	"github.com/albertnahas/teamclaude/pkg/plugin"
	"github.com/albertnahas/teamclaude/pkg/replay"
	"github.com/albertnahas/teamclaude/pkg/webhook"
)

// teamMember mirrors one entry of the host runtime's team config.json.
type teamMember struct {
	Name      string `json:"name"`
	AgentID   string `json:"agentId"`
	AgentType string `json:"agentType"`
}

// teamConfig mirrors the host runtime's per-team config.json.
type teamConfig struct {
	Name    string       `json:"name"`
	Members []teamMember `json:"members"`
}

const (
	teamPrefix  = "sprint-"
	pmAgentName = "sprint-pm"
	managerName = "sprint-manager"
)

var engineerPattern = regexp.MustCompile(`^sprint-engineer(-\d+)?$`)

// recognized decides whether a config describes a sprint team: either
// the directory or config name carries the sprint- prefix, or the
// membership has the manager-plus-engineer shape.
func recognized(team string, cfg teamConfig) bool {
	if strings.HasPrefix(team, teamPrefix) || strings.HasPrefix(cfg.Name, teamPrefix) {
		return true
	}
	var manager, engineer bool
	for _, m := range cfg.Members {
		switch {
		case m.Name == managerName:
			manager = true
		case engineerPattern.MatchString(m.Name):
			engineer = true
		}
	}
	return manager && engineer
}

// HandleTeamConfig processes a create-or-modify event on a team
// config.json. The first recognized sprint team starts the sprint;
// repeated events for the same team refresh membership; configs for a
// second team while a sprint is active are ignored.
func (c *Coordinator) HandleTeamConfig(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read team config", "path", path, "error", err)
		return
	}
	var cfg teamConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("Skipping malformed team config", "path", path, "error", err)
		return
	}
	team := paths.TeamFromPath(path)
	if !recognized(team, cfg) {
		slog.Debug("Ignoring non-sprint team config", "team", team)
		return
	}

	c.store.Update(func(st *models.SprintState) {
		switch {
		case st.TeamName == "":
			c.initializeSprint(st, team, cfg)
		case st.TeamName == team:
			c.refreshMembers(st, cfg)
		default:
			slog.Debug("Ignoring second team during active sprint", "team", team, "active", st.TeamName)
		}
	})
}

// initializeSprint performs the first-recognition sequence: identity,
// membership, mode and phase, init broadcast, discovery hooks, and the
// one-shot system message.
func (c *Coordinator) initializeSprint(st *models.SprintState, team string, cfg teamConfig) {
	now := c.clock()
	st.TeamName = team
	st.SprintID = fmt.Sprintf("sprint-%d", now.UnixMilli())
	st.StartedAt = now

	hasPM := false
	agentNames := make([]string, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		if m.Name == "" || st.AgentByName(m.Name) != nil {
			continue
		}
		st.Agents = append(st.Agents, models.Agent{
			Name:      m.Name,
			AgentID:   m.AgentID,
			AgentType: m.AgentType,
			Status:    models.AgentUnknown,
		})
		agentNames = append(agentNames, m.Name)
		if m.Name == pmAgentName {
			hasPM = true
		}
	}
	if hasPM {
		st.Mode = models.ModeAutonomous
		st.Phase = models.PhaseAnalyzing
	} else {
		st.Mode = models.ModeManual
		st.Phase = models.PhaseSprinting
	}

	c.attachRecorder(st.SprintID)

	slog.Info("Sprint team recognized",
		"team", team,
		"sprint_id", st.SprintID,
		"agents", len(agentNames),
		"mode", st.Mode)

	c.bus.Broadcast(events.InitPayload{State: st.Clone()})
	c.notifier.Notify(context.Background(), webhook.EventTeamDiscovered, map[string]any{
		"team":   team,
		"agents": agentNames,
	})
	c.plugins.Invoke(context.Background(), plugin.HookTeamDiscovered, map[string]any{
		"team":   team,
		"agents": agentNames,
	})

	if !st.InitMessageSent {
		st.InitMessageSent = true
		c.systemMessage(st, fmt.Sprintf(
			"Sprint initialized: team %s with %d agents in %s mode.",
			team, len(agentNames), st.Mode))
	}

	c.announceLearnings()
}

// refreshMembers adds members that joined after recognition. Existing
// agents keep their observed status.
func (c *Coordinator) refreshMembers(st *models.SprintState, cfg teamConfig) {
	for _, m := range cfg.Members {
		if m.Name == "" || st.AgentByName(m.Name) != nil {
			continue
		}
		st.Agents = append(st.Agents, models.Agent{
			Name:      m.Name,
			AgentID:   m.AgentID,
			AgentType: m.AgentType,
			Status:    models.AgentUnknown,
		})
		c.bus.Broadcast(events.AgentStatusPayload{Agent: m.Name, Status: models.AgentUnknown})
	}
}

// attachRecorder starts the replay recording for this sprint when
// recording is enabled. A recorder that cannot open its file is logged
// and skipped; the sprint proceeds unrecorded.
func (c *Coordinator) attachRecorder(sprintID string) {
	if !c.cfg.Recording.Enabled {
		return
	}
	rec, err := replay.NewRecorder(c.project.ReplayFile(sprintID))
	if err != nil {
		slog.Error("Replay recorder unavailable", "sprint_id", sprintID, "error", err)
		return
	}
	c.recorder = rec
	c.bus.AttachRecorder(rec)
}

// announceLearnings surfaces accumulated process learnings at sprint
// start; the role-partitioned summary is what external prompt tooling
// consumes.
func (c *Coordinator) announceLearnings() {
	summary, err := c.learnings.Summary(learning.MaxReflectionsPerSprint)
	if err != nil || len(summary) == 0 {
		return
	}
	total := 0
	for _, items := range summary {
		total += len(items)
	}
	slog.Info("Loaded process learnings", "roles", len(summary), "learnings", total)
}
