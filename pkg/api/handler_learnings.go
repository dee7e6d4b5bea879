package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/albertnahas/teamclaude/pkg/learning"
)

// listLearningsHandler handles GET /api/process-learnings.
func (s *Server) listLearningsHandler(c *echo.Context) error {
	if s.learnings == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "learnings store not available")
	}

	items, err := s.learnings.List()
	if err != nil {
		return mapControlError(err)
	}
	if items == nil {
		items = []learning.Learning{}
	}
	return c.JSON(http.StatusOK, &ProcessLearningsResponse{
		Version:   learning.StoreVersion,
		Learnings: items,
	})
}

// deleteLearningHandler handles DELETE /api/process-learnings/:id.
func (s *Server) deleteLearningHandler(c *echo.Context) error {
	if s.learnings == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "learnings store not available")
	}

	ok, err := s.learnings.Delete(c.Param("id"))
	if err != nil {
		return mapControlError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "learning not found")
	}
	return c.JSON(http.StatusOK, &DeleteResponse{Deleted: true})
}
