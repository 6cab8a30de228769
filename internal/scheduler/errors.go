package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// DependencyError marks a task that never ran because an upstream artifact
// failed. It wraps the upstream cause so failure reports point at the root.
type DependencyError struct {
	Dep    TaskID
	Reason string
	Err    error
}

func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dependency %s failed: %v", e.Dep, e.Err)
	}
	return fmt.Sprintf("dependency %s unavailable: %s", e.Dep, e.Reason)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// RunError aggregates every root failure of a run. Tasks skipped because of
// an upstream failure are counted but not listed; the roots are what an
// operator acts on.
type RunError struct {
	RunID    string
	Failures map[TaskID]error
	Skipped  int
}

func (e *RunError) Error() string {
	ids := make([]TaskID, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].ShotIdx != ids[j].ShotIdx {
			return ids[i].ShotIdx < ids[j].ShotIdx
		}
		return ids[i].Kind < ids[j].Kind
	})
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d task(s) failed", e.RunID, len(e.Failures))
	if e.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped downstream", e.Skipped)
	}
	for _, id := range ids {
		fmt.Fprintf(&b, "; %s: %v", id, e.Failures[id])
	}
	return b.String()
}
