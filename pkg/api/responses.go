package api

import (
	"github.com/albertnahas/teamclaude/pkg/learning"
)

// PauseResponse is returned by POST /api/pause.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// CheckpointResponse is returned by POST /api/checkpoint.
type CheckpointResponse struct {
	Added bool `json:"added"`
}

// ReleaseResponse is returned by POST /api/checkpoint/release.
type ReleaseResponse struct {
	Released bool `json:"released"`
}

// DismissResponse is returned by the dismiss endpoints.
type DismissResponse struct {
	Dismissed bool `json:"dismissed"`
}

// ResumeResponse is returned by POST /api/resume.
type ResumeResponse struct {
	Resumed bool `json:"resumed"`
}

// LaunchResponse is returned by POST /api/launch.
type LaunchResponse struct {
	PID int `json:"pid"`
}

// DeleteResponse is returned by the DELETE endpoints.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ProcessLearningsResponse is returned by GET /api/process-learnings.
// Mirrors the on-disk learnings file shape.
type ProcessLearningsResponse struct {
	Version   int                 `json:"version"`
	Learnings []learning.Learning `json:"learnings"`
}

// RecordingsResponse is returned by GET /api/recordings.
type RecordingsResponse struct {
	Recordings []string `json:"recordings"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck is a single component check inside HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
