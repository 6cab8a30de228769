// Package generate defines the remote-generation capabilities the scheduler
// depends on. Implementations talk to image/video model APIs; the scheduler
// only sees these interfaces and always invokes them through a retry policy
// and a rate limiter.
package generate

import "context"

// Blob is an opaque generated artifact payload.
type Blob struct {
	Data []byte
	MIME string
}

// Reference is a named input image handed to a generator for conditioning,
// for example a character portrait or the anchor frame of a camera.
type Reference struct {
	Name string
	Note string
	Data []byte
}

type ImageRequest struct {
	Prompt     string
	References []Reference
	Size       string
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (Blob, error)
}

type VideoRequest struct {
	Prompt string
	// Frames conditions the clip: one frame pins the start, two pin start
	// and end.
	Frames []Reference
}

type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req VideoRequest) (Blob, error)
}

// FrameExtractor pulls a still out of a generated video, used to derive a
// child camera's composition from a transition clip.
type FrameExtractor interface {
	ExtractLastFrame(ctx context.Context, video Blob) (Blob, error)
}
