package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/albertnahas/teamclaude/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /api/health.
// Only local components are checked: the project data root must be
// writable, and the launcher reports whether a host runtime can be
// spawned. External processes (agents, webhook targets) are excluded so
// their failures never make the observer itself look unhealthy.
func (s *Server) healthHandler(c *echo.Context) error {
	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.project.EnsureDataRoot(); err != nil {
		status = healthStatusUnhealthy
		checks["data_root"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["data_root"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.runner != nil {
		switch {
		case s.runner.Running():
			checks["host_runtime"] = HealthCheck{Status: healthStatusHealthy, Message: "process running"}
		case s.cfg.Launch.Command == "":
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			checks["host_runtime"] = HealthCheck{Status: healthStatusDegraded, Message: "no launch command configured"}
		default:
			checks["host_runtime"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	})
}
