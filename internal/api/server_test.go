package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smbiz1/ViMax/internal/observability"
	"github.com/smbiz1/ViMax/internal/state"
	"github.com/smbiz1/ViMax/pkg/vimaxapi"
)

func seededServer(t *testing.T) (*httptest.Server, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	err := store.CreateRunWithTasks(context.Background(), state.RunRecord{
		ID: "run-1", ShotCount: 2, Status: state.StatusRunning,
	}, []state.TaskRecord{
		{TaskID: "shot-0/first_frame", ShotIdx: 0, Kind: "first_frame", Status: state.StatusDone, Cached: true},
		{TaskID: "shot-0/shot_video", ShotIdx: 0, Kind: "shot_video", Status: state.StatusRunning, Deps: []string{"shot-0/first_frame"}},
		{TaskID: "shot-1/first_frame", ShotIdx: 1, Kind: "first_frame", Status: state.StatusPending},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	store.AppendEvent(context.Background(), state.EventRecord{RunID: "run-1", Action: state.ActionRunStarted})
	store.AppendEvent(context.Background(), state.EventRecord{RunID: "run-1", Action: state.ActionTaskCached, TaskID: "shot-0/first_frame"})

	metrics := observability.NewRegistry()
	metrics.IncCounter(observability.MetricCacheHits, map[string]string{"kind": "first_frame"}, 1)

	srv := httptest.NewServer(NewServer(store, metrics, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestRunStatusEndpoint(t *testing.T) {
	srv, _ := seededServer(t)

	var got vimaxapi.RunStatusResponse
	if code := getJSON(t, srv.URL+"/v1/runs/run-1/", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.RunID != "run-1" || got.Status != state.StatusRunning || got.ShotCount != 2 {
		t.Errorf("response = %+v", got)
	}
	if got.Done != 1 || got.Running != 1 || got.Pending != 1 {
		t.Errorf("counts = %+v", got)
	}
}

func TestRunStatusNotFound(t *testing.T) {
	srv, _ := seededServer(t)
	if code := getJSON(t, srv.URL+"/v1/runs/nope/", nil); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
}

func TestRunTasksEndpoint(t *testing.T) {
	srv, _ := seededServer(t)

	var got vimaxapi.RunTasksResponse
	if code := getJSON(t, srv.URL+"/v1/runs/run-1/tasks", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Total != 3 || len(got.Tasks) != 3 {
		t.Fatalf("response = %+v", got)
	}
	if got.Tasks[0].TaskID != "shot-0/first_frame" || !got.Tasks[0].Cached {
		t.Errorf("first task = %+v", got.Tasks[0])
	}
	if len(got.Tasks[1].Deps) != 1 {
		t.Errorf("video deps = %v", got.Tasks[1].Deps)
	}
}

func TestRunEventsEndpoint(t *testing.T) {
	srv, _ := seededServer(t)

	var got vimaxapi.RunEventsResponse
	if code := getJSON(t, srv.URL+"/v1/runs/run-1/events", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(got.Events) != 2 {
		t.Fatalf("events = %+v", got.Events)
	}
	if got.Events[0].Action != state.ActionTaskCached {
		t.Errorf("newest first expected, got %q", got.Events[0].Action)
	}

	if code := getJSON(t, srv.URL+"/v1/runs/run-1/events?action="+state.ActionRunStarted, &got); code != http.StatusOK {
		t.Fatalf("filtered status = %d", code)
	}
	if len(got.Events) != 1 || got.Events[0].Action != state.ActionRunStarted {
		t.Errorf("filtered events = %+v", got.Events)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	srv, _ := seededServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `vimax_cache_hits_total{kind="first_frame"} 1`) {
		t.Errorf("prometheus body = %q", body)
	}

	var snap observability.Snapshot
	if code := getJSON(t, srv.URL+"/v1/metrics", &snap); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(snap.Counters) != 1 || snap.Counters[0].Name != observability.MetricCacheHits {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := seededServer(t)
	if code := getJSON(t, srv.URL+"/healthz", nil); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
}
