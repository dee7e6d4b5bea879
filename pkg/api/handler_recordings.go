package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/albertnahas/teamclaude/pkg/persist"
)

// listRecordingsHandler handles GET /api/recordings.
// Returns the sprint ids that have a replay recording, newest first.
// Dashboards pick from this list when requesting a replay over /ws.
func (s *Server) listRecordingsHandler(c *echo.Context) error {
	recordings := persist.ListRecordings(s.project)
	if recordings == nil {
		recordings = []string{}
	}
	return c.JSON(http.StatusOK, &RecordingsResponse{Recordings: recordings})
}
