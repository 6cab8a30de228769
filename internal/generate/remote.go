package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func init() {
	Default.RegisterImage("remote", func(cfg Config) (ImageGenerator, error) {
		c, err := newRemoteClient(cfg)
		if err != nil {
			return nil, err
		}
		return &RemoteImageGenerator{client: c, model: cfg.Get("model", "image-gen-1")}, nil
	})
	Default.RegisterVideo("remote", func(cfg Config) (VideoGenerator, error) {
		c, err := newRemoteClient(cfg)
		if err != nil {
			return nil, err
		}
		return &RemoteVideoGenerator{client: c, model: cfg.Get("model", "video-gen-1")}, nil
	})
}

type remoteClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newRemoteClient(cfg Config) (*remoteClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Get("base_url", "")), "/")
	if base == "" {
		return nil, fmt.Errorf("remote provider requires base_url")
	}
	timeout := 120 * time.Second
	if raw := cfg.Get("timeout_seconds", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return &remoteClient{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.Get("api_key", "")),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// RemoteImageGenerator calls an HTTP image-generation endpoint. Reference
// images travel base64-inline; the response carries the frame the same way.
type RemoteImageGenerator struct {
	client *remoteClient
	model  string
}

type wireReference struct {
	Name string `json:"name,omitempty"`
	Note string `json:"note,omitempty"`
	Data string `json:"data"`
}

func (g *RemoteImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (Blob, error) {
	body := map[string]any{
		"model":      g.model,
		"prompt":     req.Prompt,
		"size":       req.Size,
		"references": encodeReferences(req.References),
	}
	var out struct {
		ImageB64 string `json:"image_b64"`
		MIME     string `json:"mime_type"`
	}
	if err := g.client.postJSON(ctx, "/v1/images:generate", body, &out); err != nil {
		return Blob{}, err
	}
	data, err := base64.StdEncoding.DecodeString(out.ImageB64)
	if err != nil || len(data) == 0 {
		return Blob{}, &ValidationError{Msg: "image payload empty or not base64"}
	}
	mime := out.MIME
	if mime == "" {
		mime = "image/png"
	}
	return Blob{Data: data, MIME: mime}, nil
}

// RemoteVideoGenerator calls an HTTP video-generation endpoint conditioned on
// one or two pinned frames.
type RemoteVideoGenerator struct {
	client *remoteClient
	model  string
}

func (g *RemoteVideoGenerator) GenerateVideo(ctx context.Context, req VideoRequest) (Blob, error) {
	body := map[string]any{
		"model":  g.model,
		"prompt": req.Prompt,
		"frames": encodeReferences(req.Frames),
	}
	var out struct {
		VideoB64 string `json:"video_b64"`
		MIME     string `json:"mime_type"`
	}
	if err := g.client.postJSON(ctx, "/v1/videos:generate", body, &out); err != nil {
		return Blob{}, err
	}
	data, err := base64.StdEncoding.DecodeString(out.VideoB64)
	if err != nil || len(data) == 0 {
		return Blob{}, &ValidationError{Msg: "video payload empty or not base64"}
	}
	mime := out.MIME
	if mime == "" {
		mime = "video/mp4"
	}
	return Blob{Data: data, MIME: mime}, nil
}

func encodeReferences(refs []Reference) []wireReference {
	out := make([]wireReference, 0, len(refs))
	for _, r := range refs {
		out = append(out, wireReference{
			Name: r.Name,
			Note: r.Note,
			Data: base64.StdEncoding.EncodeToString(r.Data),
		})
	}
	return out
}

func (c *remoteClient) postJSON(ctx context.Context, path string, reqBody any, out any) error {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Connection resets and client timeouts are transient.
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))}
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("generator request failed: %s %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ValidationError{Msg: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
