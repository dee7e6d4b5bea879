package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// pauseHandler handles POST /api/pause. Toggles the paused flag and
// returns the new value.
func (s *Server) pauseHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &PauseResponse{Paused: s.coordinator.TogglePause()})
}

// stopHandler handles POST /api/stop.
// Ends the sprint: kills the host runtime, writes the history snapshot,
// resets the state, and returns the retro plus a PR-ready summary.
func (s *Server) stopHandler(c *echo.Context) error {
	// The host runtime dies first so no inbox write lands mid-reset.
	if s.runner != nil {
		s.runner.Stop()
	}
	res := s.coordinator.Stop()
	return c.JSON(http.StatusOK, &res)
}

// addCheckpointHandler handles POST /api/checkpoint.
func (s *Server) addCheckpointHandler(c *echo.Context) error {
	var req CheckpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TaskID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "taskId field is required")
	}
	return c.JSON(http.StatusOK, &CheckpointResponse{Added: s.coordinator.AddCheckpoint(req.TaskID)})
}

// releaseCheckpointHandler handles POST /api/checkpoint/release.
func (s *Server) releaseCheckpointHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &ReleaseResponse{Released: s.coordinator.ReleaseCheckpoint()})
}

// dismissEscalationHandler handles POST /api/dismiss-escalation.
func (s *Server) dismissEscalationHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &DismissResponse{Dismissed: s.coordinator.DismissEscalation()})
}

// dismissMergeConflictHandler handles POST /api/dismiss-merge-conflict.
func (s *Server) dismissMergeConflictHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &DismissResponse{Dismissed: s.coordinator.DismissMergeConflict()})
}

// resumeHandler handles POST /api/resume.
// Restores the sprint from the persisted state file and re-broadcasts
// init to connected dashboards.
func (s *Server) resumeHandler(c *echo.Context) error {
	if !s.coordinator.Resume() {
		return echo.NewHTTPError(http.StatusNotFound, "no persisted sprint state")
	}
	return c.JSON(http.StatusOK, &ResumeResponse{Resumed: true})
}
