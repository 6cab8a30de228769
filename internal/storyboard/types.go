package storyboard

import "fmt"

// VariationType classifies how much a shot's composition changes between its
// first and last frame. Small shots get by with a single first frame; medium
// and large shots need a generated last frame as well.
type VariationType string

const (
	VariationSmall  VariationType = "small"
	VariationMedium VariationType = "medium"
	VariationLarge  VariationType = "large"
)

func (v VariationType) Valid() bool {
	switch v {
	case VariationSmall, VariationMedium, VariationLarge:
		return true
	default:
		return false
	}
}

// RequiresLastFrame reports whether shots of this variation need a dedicated
// last-frame artifact before their video can be generated.
func (v VariationType) RequiresLastFrame() bool {
	return v == VariationMedium || v == VariationLarge
}

// Shot is one narrative beat produced by upstream script decomposition.
// Shots are immutable inputs to the scheduler; Idx is unique and
// order-significant within a scene.
type Shot struct {
	Idx            int           `json:"idx"`
	CamIdx         int           `json:"cam_idx"`
	VisualDesc     string        `json:"visual_desc"`
	FirstFrameDesc string        `json:"ff_desc,omitempty"`
	LastFrameDesc  string        `json:"lf_desc,omitempty"`
	MotionDesc     string        `json:"motion_desc,omitempty"`
	AudioDesc      string        `json:"audio_desc,omitempty"`
	VariationType  VariationType `json:"variation_type"`
}

func (s Shot) Validate() error {
	if s.Idx < 0 {
		return fmt.Errorf("shot %d: negative idx", s.Idx)
	}
	if s.CamIdx < 0 {
		return fmt.Errorf("shot %d: negative cam_idx", s.Idx)
	}
	if !s.VariationType.Valid() {
		return fmt.Errorf("shot %d: unknown variation_type %q", s.Idx, s.VariationType)
	}
	return nil
}

// Camera groups consecutive shots filmed from one presumed vantage point.
// A non-root camera is visually derived from a parent camera (for example a
// close-up cut out of a wide shot); the link is recorded so the scheduler can
// gate the child's first frame on the parent's artifact.
type Camera struct {
	Idx            int    `json:"idx"`
	ActiveShotIdxs []int  `json:"active_shot_idxs"`
	ParentCamIdx   *int   `json:"parent_cam_idx,omitempty"`
	ParentShotIdx  *int   `json:"parent_shot_idx,omitempty"`
	// ParentFullyCoversChild is false when the upstream matcher could not
	// establish full visual coverage; the child's first frame must then be
	// regenerated rather than derived from the parent composition.
	ParentFullyCoversChild bool   `json:"is_parent_fully_covers_child,omitempty"`
	MissingInfo            string `json:"missing_info,omitempty"`
}

func (c Camera) IsRoot() bool { return c.ParentCamIdx == nil }

// AnchorShotIdx returns the first shot this camera films. The anchor's first
// frame is the composition reference for every other frame of the camera.
func (c Camera) AnchorShotIdx() int {
	if len(c.ActiveShotIdxs) == 0 {
		return -1
	}
	return c.ActiveShotIdxs[0]
}

func (c Camera) LastActiveShotIdx() int {
	if len(c.ActiveShotIdxs) == 0 {
		return -1
	}
	return c.ActiveShotIdxs[len(c.ActiveShotIdxs)-1]
}
