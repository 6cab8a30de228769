package generate

import (
	"context"
	"crypto/sha256"
	"fmt"
)

func init() {
	Default.RegisterImage("stub", func(cfg Config) (ImageGenerator, error) {
		return &StubImageGenerator{}, nil
	})
	Default.RegisterVideo("stub", func(cfg Config) (VideoGenerator, error) {
		return &StubVideoGenerator{}, nil
	})
	Default.RegisterExtractor("stub", func(cfg Config) (FrameExtractor, error) {
		return &StubFrameExtractor{}, nil
	})
}

// StubImageGenerator produces a deterministic payload derived from the prompt
// and reference set. It exists for offline runs and tests.
type StubImageGenerator struct{}

func (StubImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	h := sha256.New()
	fmt.Fprintf(h, "image|%s|%s", req.Prompt, req.Size)
	for _, ref := range req.References {
		fmt.Fprintf(h, "|%s:", ref.Name)
		h.Write(ref.Data)
	}
	return Blob{Data: h.Sum(nil), MIME: "image/png"}, nil
}

// StubVideoGenerator produces a deterministic payload derived from the prompt
// and conditioning frames.
type StubVideoGenerator struct{}

func (StubVideoGenerator) GenerateVideo(ctx context.Context, req VideoRequest) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	h := sha256.New()
	fmt.Fprintf(h, "video|%s", req.Prompt)
	for _, f := range req.Frames {
		fmt.Fprintf(h, "|%s:", f.Name)
		h.Write(f.Data)
	}
	return Blob{Data: h.Sum(nil), MIME: "video/mp4"}, nil
}

// StubFrameExtractor hashes the video payload in place of decoding it.
type StubFrameExtractor struct{}

func (StubFrameExtractor) ExtractLastFrame(ctx context.Context, video Blob) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	if len(video.Data) == 0 {
		return Blob{}, &ValidationError{Msg: "empty video payload"}
	}
	sum := sha256.Sum256(append([]byte("last_frame|"), video.Data...))
	return Blob{Data: sum[:], MIME: "image/png"}, nil
}
