// Package state tracks the progress of one pipeline run: per-task status
// records queried by the status API, and an append-only journal of what the
// scheduler did and why.
package state

import "time"

const (
	StatusPending = "Pending"
	StatusRunning = "Running"
	StatusDone    = "Done"
	StatusFailed  = "Failed"
)

// RunRecord describes one scheduler invocation over a shot list.
type RunRecord struct {
	ID         string    `json:"id"`
	ShotCount  int       `json:"shot_count"`
	Status     string    `json:"status"`
	WorkingDir string    `json:"working_dir,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TaskRecord is the persisted view of one artifact task.
type TaskRecord struct {
	RunID       string    `json:"run_id"`
	TaskID      string    `json:"task_id"`
	ShotIdx     int       `json:"shot_idx"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	Cached      bool      `json:"cached"`
	ArtifactKey string    `json:"artifact_key,omitempty"`
	Deps        []string  `json:"deps,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventRecord is one journal entry. Entries are ordered by insertion and
// never mutated.
type EventRecord struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Action    string    `json:"action"`
	TaskID    string    `json:"task_id,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal actions.
const (
	ActionRunStarted   = "run_started"
	ActionRunFinished  = "run_finished"
	ActionTaskCached   = "task_cached"
	ActionTaskStarted  = "task_started"
	ActionTaskDone     = "task_done"
	ActionTaskFailed   = "task_failed"
	ActionTaskSkipped  = "task_skipped"
	ActionRetryAttempt = "retry_attempt"
)

// EventQuery filters journal listings.
type EventQuery struct {
	RunID  string
	Action string
	TaskID string
	Limit  int
	Offset int
}
