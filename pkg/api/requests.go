package api

// CheckpointRequest is the HTTP request body for POST /api/checkpoint.
type CheckpointRequest struct {
	TaskID string `json:"taskId"`
}

// CreateMemoryRequest is the HTTP request body for POST /api/memories.
type CreateMemoryRequest struct {
	Role  string `json:"role"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LaunchRequest is the HTTP request body for POST /api/launch. The
// prompt is optional and is handed to the spawned host runtime.
type LaunchRequest struct {
	Prompt string `json:"prompt,omitempty"`
}
