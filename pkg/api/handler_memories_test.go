package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertnahas/teamclaude/pkg/memory"
)

func TestMemoriesUnavailableWithoutStore(t *testing.T) {
	s := &Server{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
	rec := httptest.NewRecorder()

	err := s.listMemoriesHandler(e.NewContext(req, rec))

	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestCreateMemoryValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing role", body: `{"key":"deploy-key","value":"vault"}`},
		{name: "missing key", body: `{"role":"engineer","value":"vault"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/memories", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "role and key fields are required")
		})
	}
}

func TestMemoryLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	// Create.
	rec := ts.do(t, http.MethodPost, "/api/memories", `{"role":"engineer","key":"deploy-key","value":"use the vault path"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var created memory.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "engineer", created.Role)
	assert.Equal(t, "deploy-key", created.Key)

	// Same (role, key) upserts instead of duplicating.
	rec = ts.do(t, http.MethodPost, "/api/memories", `{"role":"engineer","key":"deploy-key","value":"rotated"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// List all.
	rec = ts.do(t, http.MethodGet, "/api/memories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []memory.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "rotated", listed[0].Value)

	// Role filter that matches nothing returns an empty array, not null.
	rec = ts.do(t, http.MethodGet, "/api/memories?role=manager", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "null", strings.TrimSpace(rec.Body.String()))
	var empty []memory.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty)

	// Free-text query.
	rec = ts.do(t, http.MethodGet, "/api/memories?q=deploy", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	// Delete.
	rec = ts.do(t, http.MethodDelete, "/api/memories/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var del DeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &del))
	assert.True(t, del.Deleted)

	// Second delete finds nothing.
	rec = ts.do(t, http.MethodDelete, "/api/memories/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
