package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/albertnahas/teamclaude/pkg/memory"
)

// listMemoriesHandler handles GET /api/memories.
// Supports ?role= to filter by role and ?q= for a free-text search over
// keys and values.
func (s *Server) listMemoriesHandler(c *echo.Context) error {
	if s.memories == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory store not available")
	}

	items, err := s.memories.List(c.QueryParam("role"), c.QueryParam("q"))
	if err != nil {
		return mapControlError(err)
	}
	if items == nil {
		items = []memory.Memory{}
	}
	return c.JSON(http.StatusOK, items)
}

// createMemoryHandler handles POST /api/memories.
// Upserts on (role, key), same as the MEMORY protocol tag.
func (s *Server) createMemoryHandler(c *echo.Context) error {
	if s.memories == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory store not available")
	}

	var req CreateMemoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Role == "" || req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "role and key fields are required")
	}

	m, err := s.memories.Save(req.Role, req.Key, req.Value, s.store.Snapshot().SprintID)
	if err != nil {
		return mapControlError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// deleteMemoryHandler handles DELETE /api/memories/:id.
func (s *Server) deleteMemoryHandler(c *echo.Context) error {
	if s.memories == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory store not available")
	}

	ok, err := s.memories.Delete(c.Param("id"))
	if err != nil {
		return mapControlError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "memory not found")
	}
	return c.JSON(http.StatusOK, &DeleteResponse{Deleted: true})
}
