package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// launchHandler handles POST /api/launch.
// Spawns the configured host runtime command; its output streams to
// dashboards as terminal_output events. The optional prompt rides along
// in the child's environment.
func (s *Server) launchHandler(c *echo.Context) error {
	if s.runner == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "host runtime launcher not available")
	}

	var req LaunchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pid, err := s.runner.Launch(req.Prompt)
	if err != nil {
		return mapControlError(err)
	}
	return c.JSON(http.StatusOK, &LaunchResponse{PID: pid})
}
