package state

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps run state in process memory. A run lives no longer than
// its scheduler, so this is the only backend the pipeline needs.
type MemoryStore struct {
	mu     sync.Mutex
	runs   map[string]RunRecord
	tasks  map[string]map[string]TaskRecord
	events []EventRecord
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]RunRecord),
		tasks:  make(map[string]map[string]TaskRecord),
		events: make([]EventRecord, 0, 128),
		nextID: 1,
	}
}

func (m *MemoryStore) CreateRunWithTasks(_ context.Context, run RunRecord, tasks []TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	m.runs[run.ID] = run
	m.tasks[run.ID] = make(map[string]TaskRecord, len(tasks))
	for _, task := range tasks {
		t := task
		t.RunID = run.ID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		m.tasks[run.ID][t.TaskID] = t
	}
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, runID string) (RunRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	return run, ok, nil
}

func (m *MemoryStore) UpdateRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.UpdatedAt = time.Now().UTC()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) ListTasksByRun(_ context.Context, runID string) ([]TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := m.tasks[runID]
	out := make([]TaskRecord, 0, len(byID))
	for _, task := range byID {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShotIdx != out[j].ShotIdx {
			return out[i].ShotIdx < out[j].ShotIdx
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func (m *MemoryStore) GetTask(_ context.Context, runID, taskID string) (TaskRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.tasks[runID]
	if !ok {
		return TaskRecord{}, false, nil
	}
	task, ok := byID[taskID]
	return task, ok, nil
}

func (m *MemoryStore) UpdateTask(_ context.Context, task TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.RunID]; !ok {
		m.tasks[task.RunID] = map[string]TaskRecord{}
	}
	task.UpdatedAt = time.Now().UTC()
	m.tasks[task.RunID][task.TaskID] = task
	return nil
}

func (m *MemoryStore) CountTasksByStatus(_ context.Context, runID, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.tasks[runID] {
		if status != "" && t.Status != status {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, event EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.ID = m.nextID
	m.nextID++
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) ListEvents(_ context.Context, query EventQuery) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := query.Limit
	offset := query.Offset
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	filtered := make([]EventRecord, 0, len(m.events))
	for _, e := range m.events {
		if query.RunID != "" && e.RunID != query.RunID {
			continue
		}
		if query.Action != "" && e.Action != query.Action {
			continue
		}
		if query.TaskID != "" && e.TaskID != query.TaskID {
			continue
		}
		filtered = append(filtered, e)
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	items := filtered[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	out := make([]EventRecord, 0, len(items))
	// Newest first for the operator-facing endpoint.
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out, nil
}
