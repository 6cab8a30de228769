package scheduler

import (
	"context"
	"testing"

	"github.com/smbiz1/ViMax/internal/storyboard"
)

func fourShotBoard() []storyboard.Shot {
	return []storyboard.Shot{
		{Idx: 0, CamIdx: 1, VisualDesc: "wide shot of the harbor", FirstFrameDesc: "harbor at dawn", MotionDesc: "gulls drift", VariationType: storyboard.VariationSmall},
		{Idx: 1, CamIdx: 2, VisualDesc: "close-up on the captain", FirstFrameDesc: "captain squints", MotionDesc: "she turns", VariationType: storyboard.VariationSmall},
		{Idx: 2, CamIdx: 1, VisualDesc: "wide shot again", FirstFrameDesc: "boats leave", MotionDesc: "sails unfurl", LastFrameDesc: "fleet at sea", VariationType: storyboard.VariationLarge},
		{Idx: 3, CamIdx: 2, VisualDesc: "close-up again", FirstFrameDesc: "captain smiles", MotionDesc: "she nods", VariationType: storyboard.VariationSmall},
	}
}

func taskByID(t *testing.T, tasks []Task, id TaskID) Task {
	t.Helper()
	for _, task := range tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s not in graph", id)
	return Task{}
}

func TestBuildTasksGatesFramesOnCameraStructure(t *testing.T) {
	shots := fourShotBoard()
	cameras, err := storyboard.BuildForest(context.Background(), shots, storyboard.RecencyMatcher{})
	if err != nil {
		t.Fatalf("BuildForest: %v", err)
	}
	tasks, err := BuildTasks(shots, cameras)
	if err != nil {
		t.Fatalf("BuildTasks: %v", err)
	}

	// 4 first frames, 1 last frame (shot 2 is large), 4 videos.
	if len(tasks) != 9 {
		t.Fatalf("built %d tasks", len(tasks))
	}

	ff := func(shot int) TaskID { return TaskID{ShotIdx: shot, Kind: KindFirstFrame} }

	if deps := taskByID(t, tasks, ff(0)).Deps; len(deps) != 0 {
		t.Errorf("root anchor frame has deps: %v", deps)
	}
	// Camera 2 is introduced at shot 1, derived from camera 1's shot 0.
	if deps := taskByID(t, tasks, ff(1)).Deps; len(deps) != 1 || deps[0] != ff(0) {
		t.Errorf("child anchor deps = %v", deps)
	}
	// Shot 2 reuses camera 1 and waits only on that camera's anchor frame.
	if deps := taskByID(t, tasks, ff(2)).Deps; len(deps) != 1 || deps[0] != ff(0) {
		t.Errorf("reused camera deps = %v", deps)
	}
	if deps := taskByID(t, tasks, ff(3)).Deps; len(deps) != 1 || deps[0] != ff(1) {
		t.Errorf("second close-up deps = %v", deps)
	}

	lf2 := TaskID{ShotIdx: 2, Kind: KindLastFrame}
	if deps := taskByID(t, tasks, lf2).Deps; len(deps) != 1 || deps[0] != ff(2) {
		t.Errorf("last frame deps = %v", deps)
	}

	// A small shot's video waits on its first frame only; the large shot's
	// video waits on both frames.
	v0 := taskByID(t, tasks, TaskID{ShotIdx: 0, Kind: KindShotVideo})
	if len(v0.Deps) != 1 || v0.Deps[0] != ff(0) {
		t.Errorf("small video deps = %v", v0.Deps)
	}
	v2 := taskByID(t, tasks, TaskID{ShotIdx: 2, Kind: KindShotVideo})
	if len(v2.Deps) != 2 || v2.Deps[0] != ff(2) || v2.Deps[1] != lf2 {
		t.Errorf("large video deps = %v", v2.Deps)
	}
}

func TestBuildTasksRejectsUnassignedShot(t *testing.T) {
	shots := fourShotBoard()
	cameras := []storyboard.Camera{
		{Idx: 1, ActiveShotIdxs: []int{0, 2}},
	}
	if _, err := BuildTasks(shots, cameras); err == nil {
		t.Fatal("want error for shots missing from the forest")
	}
}

func TestBuildTasksRejectsForwardParentEdge(t *testing.T) {
	shots := fourShotBoard()
	parentCam := 2
	parentShot := 1
	cameras := []storyboard.Camera{
		// Camera 1 claims derivation from camera 2, which is introduced later.
		{Idx: 1, ActiveShotIdxs: []int{0, 2}, ParentCamIdx: &parentCam, ParentShotIdx: &parentShot},
		{Idx: 2, ActiveShotIdxs: []int{1, 3}},
	}
	if _, err := BuildTasks(shots, cameras); err == nil {
		t.Fatal("want error for forward parent edge")
	}
}
