package state

import "context"

type Store interface {
	CreateRunWithTasks(ctx context.Context, run RunRecord, tasks []TaskRecord) error
	GetRun(ctx context.Context, runID string) (RunRecord, bool, error)
	UpdateRun(ctx context.Context, run RunRecord) error
	ListTasksByRun(ctx context.Context, runID string) ([]TaskRecord, error)
	GetTask(ctx context.Context, runID, taskID string) (TaskRecord, bool, error)
	UpdateTask(ctx context.Context, task TaskRecord) error
	CountTasksByStatus(ctx context.Context, runID, status string) (int, error)
	AppendEvent(ctx context.Context, event EventRecord) error
	ListEvents(ctx context.Context, query EventQuery) ([]EventRecord, error)
}
