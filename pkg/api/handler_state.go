package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// stateHandler handles GET /api/state.
// Returns the full sprint state snapshot, the same shape the WebSocket
// init event carries.
func (s *Server) stateHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Snapshot())
}
