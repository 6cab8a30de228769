package scheduler

import (
	"fmt"

	"github.com/smbiz1/ViMax/internal/storyboard"
)

// BuildTasks expands a storyboard and its camera forest into the run graph.
//
// Frame gating follows the camera structure: the first frame of a camera's
// anchor shot waits on the parent shot's first frame (nothing, for a root
// camera), every later shot on the same camera waits on that anchor frame,
// and a shot's video waits on its own frames only.
func BuildTasks(shots []storyboard.Shot, cameras []storyboard.Camera) ([]Task, error) {
	if err := storyboard.ValidateForest(shots, cameras); err != nil {
		return nil, err
	}

	camByIdx := make(map[int]storyboard.Camera, len(cameras))
	camOfShot := make(map[int]int, len(shots))
	for _, cam := range cameras {
		camByIdx[cam.Idx] = cam
		for _, shotIdx := range cam.ActiveShotIdxs {
			camOfShot[shotIdx] = cam.Idx
		}
	}

	tasks := make([]Task, 0, 2*len(shots))
	for _, shot := range shots {
		camIdx := camOfShot[shot.Idx]
		cam := camByIdx[camIdx]

		ff := Task{ID: TaskID{ShotIdx: shot.Idx, Kind: KindFirstFrame}, CamIdx: camIdx}
		if shot.Idx == cam.AnchorShotIdx() {
			if !cam.IsRoot() {
				ff.Deps = []TaskID{{ShotIdx: *cam.ParentShotIdx, Kind: KindFirstFrame}}
			}
		} else {
			ff.Deps = []TaskID{{ShotIdx: cam.AnchorShotIdx(), Kind: KindFirstFrame}}
		}
		tasks = append(tasks, ff)

		video := Task{
			ID:     TaskID{ShotIdx: shot.Idx, Kind: KindShotVideo},
			CamIdx: camIdx,
			Deps:   []TaskID{ff.ID},
		}
		if requiresLastFrame(shot) {
			lf := Task{
				ID:     TaskID{ShotIdx: shot.Idx, Kind: KindLastFrame},
				CamIdx: camIdx,
				Deps:   []TaskID{ff.ID},
			}
			tasks = append(tasks, lf)
			video.Deps = append(video.Deps, lf.ID)
		}
		tasks = append(tasks, video)
	}

	if err := verifyAcyclic(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// verifyAcyclic guards against a matcher wiring a camera to a descendant.
// The run would otherwise deadlock with every goroutine waiting.
func verifyAcyclic(tasks []Task) error {
	deps := make(map[TaskID][]TaskID, len(tasks))
	for _, t := range tasks {
		deps[t.ID] = t.Deps
	}
	for _, t := range tasks {
		for _, d := range t.Deps {
			if _, ok := deps[d]; !ok {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, d)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[TaskID]int, len(deps))
	var visit func(id TaskID) error
	visit = func(id TaskID) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("dependency cycle through task %s", id)
		case black:
			return nil
		}
		color[id] = gray
		for _, d := range deps[id] {
			if err := visit(d); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, t := range tasks {
		if err := visit(t.ID); err != nil {
			return err
		}
	}
	return nil
}
