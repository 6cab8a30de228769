// Package scheduler turns a storyboard into a dependency graph of artifact
// tasks and runs the graph with maximal parallelism: each task waits only on
// the specific artifacts it consumes, never on a pipeline phase.
package scheduler

import (
	"fmt"

	"github.com/smbiz1/ViMax/internal/cache"
	"github.com/smbiz1/ViMax/internal/storyboard"
)

// Artifact kinds. Each (shot, kind) pair is one task.
const (
	KindFirstFrame = "first_frame"
	KindLastFrame  = "last_frame"
	KindShotVideo  = "shot_video"
)

// TaskID names one artifact task within a run.
type TaskID struct {
	ShotIdx int
	Kind    string
}

func (id TaskID) String() string {
	return fmt.Sprintf("shot-%d/%s", id.ShotIdx, id.Kind)
}

// Task is one node of the run graph.
type Task struct {
	ID     TaskID
	CamIdx int
	// Deps are the tasks whose artifacts this task consumes. The task starts
	// the moment all of them have succeeded, regardless of anything else in
	// flight.
	Deps []TaskID
}

// ArtifactKey maps a task to its location in the artifact cache.
func (t Task) ArtifactKey() string {
	switch t.ID.Kind {
	case KindFirstFrame:
		return cache.FirstFrameKey(t.ID.ShotIdx)
	case KindLastFrame:
		return cache.LastFrameKey(t.ID.ShotIdx)
	default:
		return cache.ShotVideoKey(t.ID.ShotIdx)
	}
}

// requiresLastFrame reports whether the shot's video must be conditioned on
// a generated closing frame as well as the opening one.
func requiresLastFrame(shot storyboard.Shot) bool {
	return shot.VariationType.RequiresLastFrame()
}
