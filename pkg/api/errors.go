package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/albertnahas/teamclaude/pkg/runner"
)

// mapControlError maps core-layer errors to HTTP error responses.
func mapControlError(err error) *echo.HTTPError {
	if errors.Is(err, runner.ErrNoCommand) {
		return echo.NewHTTPError(http.StatusConflict, "no launch command configured")
	}
	if errors.Is(err, runner.ErrAlreadyRunning) {
		return echo.NewHTTPError(http.StatusConflict, "host runtime is already running")
	}

	// Unexpected error
	slog.Error("Unexpected control error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
