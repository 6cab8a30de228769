package cache

import "fmt"

// Cache keys mirror the on-disk working-directory layout: one directory per
// shot under shots/, transition clips keyed by the camera pair under
// transitions/, and run-level documents at the root. The layout is the
// contract that makes cache keys deterministic per task identity.

func FirstFrameKey(shotIdx int) string {
	return fmt.Sprintf("shots/%d/first_frame.png", shotIdx)
}

func LastFrameKey(shotIdx int) string {
	return fmt.Sprintf("shots/%d/last_frame.png", shotIdx)
}

func ShotVideoKey(shotIdx int) string {
	return fmt.Sprintf("shots/%d/video.mp4", shotIdx)
}

// TransitionKey addresses the video that carries the camera move from a
// parent camera's composition into a child camera's.
func TransitionKey(parentCamIdx, childCamIdx int) string {
	return fmt.Sprintf("transitions/cam_%d_to_%d.mp4", parentCamIdx, childCamIdx)
}

// CameraStillKey addresses the still pulled out of a transition video, used
// as the child camera's derived composition.
func CameraStillKey(shotIdx, camIdx int) string {
	return fmt.Sprintf("shots/%d/new_camera_%d.png", shotIdx, camIdx)
}

func CameraTreeKey() string { return "camera_tree.json" }

func ManifestKey() string { return "manifest.json" }
