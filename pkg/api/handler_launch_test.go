package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/runner"
)

func TestLaunchUnavailableWithoutRunner(t *testing.T) {
	s := &Server{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/launch", nil)
	rec := httptest.NewRecorder()

	err := s.launchHandler(e.NewContext(req, rec))

	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestLaunchWithoutCommandIsConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.s.SetRunner(runner.New(ts.cfg.Launch, ts.project.Root(), ts.s.broadcaster))

	rec := ts.do(t, http.MethodPost, "/api/launch", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no launch command configured")
}

func TestLaunchSpawnsConfiguredCommand(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Launch.Command = "echo started"
	})
	r := runner.New(ts.cfg.Launch, ts.project.Root(), ts.s.broadcaster)
	ts.s.SetRunner(r)

	rec := ts.do(t, http.MethodPost, "/api/launch", `{"prompt":"ship the parser"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LaunchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp.PID, 0)
	r.Stop()
}

func TestRecordingsListStartsEmpty(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/recordings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RecordingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Recordings)
	assert.Empty(t, resp.Recordings)
}
