// Package vimaxapi holds the wire types served by the status API.
package vimaxapi

type RunStatusResponse struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	ShotCount int    `json:"shot_count"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Done      int    `json:"done"`
	Failed    int    `json:"failed"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TaskStatus struct {
	TaskID      string   `json:"task_id"`
	ShotIdx     int      `json:"shot_idx"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Attempt     int      `json:"attempt"`
	Cached      bool     `json:"cached"`
	ArtifactKey string   `json:"artifact_key,omitempty"`
	Deps        []string `json:"deps,omitempty"`
	Error       string   `json:"error,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type RunTasksResponse struct {
	RunID string       `json:"run_id"`
	Total int          `json:"total"`
	Tasks []TaskStatus `json:"tasks"`
}

type RunEvent struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	TaskID    string `json:"task_id,omitempty"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

type RunEventsResponse struct {
	RunID  string     `json:"run_id"`
	Events []RunEvent `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
