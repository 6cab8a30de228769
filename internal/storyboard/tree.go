package storyboard

import (
	"context"
	"fmt"
)

// ParentMatch is a matcher's verdict on how a newly introduced camera relates
// to an existing one.
type ParentMatch struct {
	ParentCamIdx  int
	ParentShotIdx int
	// FullyCovers is true when the parent composition visually contains the
	// whole child composition, so the child's first frame can be derived from
	// the parent instead of being generated from scratch.
	FullyCovers bool
	// MissingInfo names what the parent composition lacks when FullyCovers is
	// false (for example characters entering the frame in the close-up).
	MissingInfo string
}

// ParentMatcher decides which existing camera, if any, a new camera is derived
// from. Matching compositions is a semantic judgement, so implementations may
// call out to a vision or chat model; BuildForest only requires that the
// returned parent was introduced before the new camera.
type ParentMatcher interface {
	MatchParent(ctx context.Context, newShot Shot, open []Camera) (ParentMatch, bool, error)
}

// RecencyMatcher links every new camera to the most recently active existing
// camera. It is the tie-break policy of the semantic matcher distilled to its
// fallback: temporal locality favours continuity of the latest framing. It
// never claims full coverage, since it has no way to verify it.
type RecencyMatcher struct{}

func (RecencyMatcher) MatchParent(_ context.Context, newShot Shot, open []Camera) (ParentMatch, bool, error) {
	if len(open) == 0 {
		return ParentMatch{}, false, nil
	}
	// Most recently active camera: the one whose latest shot is closest to the
	// new shot in sequence order.
	best := open[0]
	for _, cam := range open[1:] {
		if cam.LastActiveShotIdx() > best.LastActiveShotIdx() {
			best = cam
		}
	}
	return ParentMatch{
		ParentCamIdx:  best.Idx,
		ParentShotIdx: best.LastActiveShotIdx(),
		FullyCovers:   false,
		MissingInfo:   fmt.Sprintf("coverage of shot %d by camera %d not established", newShot.Idx, best.Idx),
	}, true, nil
}

// BuildForest classifies each shot into an existing or new camera and links
// new cameras to their parents. Cameras come out in introduction order, so a
// parent always precedes its children. The result satisfies ValidateForest.
func BuildForest(ctx context.Context, shots []Shot, matcher ParentMatcher) ([]Camera, error) {
	if matcher == nil {
		matcher = RecencyMatcher{}
	}
	cameras := make([]Camera, 0, len(shots))
	byIdx := make(map[int]int, len(shots)) // cam idx -> position in cameras

	for _, shot := range shots {
		if err := shot.Validate(); err != nil {
			return nil, err
		}
		if pos, ok := byIdx[shot.CamIdx]; ok {
			// Reuse of an open camera: the shot keeps its original order.
			cameras[pos].ActiveShotIdxs = append(cameras[pos].ActiveShotIdxs, shot.Idx)
			continue
		}

		cam := Camera{Idx: shot.CamIdx, ActiveShotIdxs: []int{shot.Idx}}
		if len(cameras) > 0 {
			match, ok, err := matcher.MatchParent(ctx, shot, cameras)
			if err != nil {
				return nil, fmt.Errorf("match parent for camera %d: %w", shot.CamIdx, err)
			}
			if ok {
				if _, known := byIdx[match.ParentCamIdx]; !known {
					return nil, fmt.Errorf("camera %d: matcher picked unknown parent camera %d", shot.CamIdx, match.ParentCamIdx)
				}
				parentCam := match.ParentCamIdx
				parentShot := match.ParentShotIdx
				cam.ParentCamIdx = &parentCam
				cam.ParentShotIdx = &parentShot
				cam.ParentFullyCoversChild = match.FullyCovers
				if !match.FullyCovers {
					cam.MissingInfo = match.MissingInfo
				}
			}
		}
		byIdx[shot.CamIdx] = len(cameras)
		cameras = append(cameras, cam)
	}

	if err := ValidateForest(shots, cameras); err != nil {
		return nil, err
	}
	return cameras, nil
}

// ValidateForest verifies the structural invariants of a camera forest:
// every shot belongs to exactly one camera, shot order is preserved within a
// camera, and parent edges only reference cameras introduced earlier. It is
// run both on freshly built forests and on forests reloaded from cache, since
// a cached tree from an older run is not beyond suspicion.
func ValidateForest(shots []Shot, cameras []Camera) error {
	introduced := make(map[int]int, len(cameras)) // cam idx -> introduction order
	shotSeen := make(map[int]int, len(shots))     // shot idx -> owning cam
	for order, cam := range cameras {
		if len(cam.ActiveShotIdxs) == 0 {
			return fmt.Errorf("camera %d: no active shots", cam.Idx)
		}
		if _, dup := introduced[cam.Idx]; dup {
			return fmt.Errorf("camera %d: duplicate camera idx", cam.Idx)
		}
		introduced[cam.Idx] = order
		for i, shotIdx := range cam.ActiveShotIdxs {
			if owner, dup := shotSeen[shotIdx]; dup {
				return fmt.Errorf("shot %d: claimed by both camera %d and camera %d", shotIdx, owner, cam.Idx)
			}
			shotSeen[shotIdx] = cam.Idx
			if i > 0 && cam.ActiveShotIdxs[i-1] >= shotIdx {
				return fmt.Errorf("camera %d: active shots out of order at %d", cam.Idx, shotIdx)
			}
		}
	}
	for order, cam := range cameras {
		if cam.ParentCamIdx == nil {
			continue
		}
		parentOrder, ok := introduced[*cam.ParentCamIdx]
		if !ok {
			return fmt.Errorf("camera %d: parent camera %d does not exist", cam.Idx, *cam.ParentCamIdx)
		}
		if parentOrder >= order {
			return fmt.Errorf("camera %d: parent camera %d introduced later (forward edge)", cam.Idx, *cam.ParentCamIdx)
		}
		if cam.ParentShotIdx == nil {
			return fmt.Errorf("camera %d: parent camera set without parent shot", cam.Idx)
		}
		if owner, ok := shotSeen[*cam.ParentShotIdx]; !ok || owner != *cam.ParentCamIdx {
			return fmt.Errorf("camera %d: parent shot %d is not filmed by camera %d", cam.Idx, *cam.ParentShotIdx, *cam.ParentCamIdx)
		}
		// The gate artifact must be producible before the child needs it.
		if *cam.ParentShotIdx >= cam.AnchorShotIdx() {
			return fmt.Errorf("camera %d: parent shot %d does not precede anchor shot %d", cam.Idx, *cam.ParentShotIdx, cam.AnchorShotIdx())
		}
	}
	for _, shot := range shots {
		if _, ok := shotSeen[shot.Idx]; !ok {
			return fmt.Errorf("shot %d: not assigned to any camera", shot.Idx)
		}
	}
	return nil
}
