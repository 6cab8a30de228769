package generate

import (
	"context"
	"encoding/base64"
	"errors"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestImageGen(t *testing.T, handler http.HandlerFunc) *RemoteImageGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gen, err := Default.NewImage("remote", Config{"base_url": srv.URL, "api_key": "test-key"})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	return gen.(*RemoteImageGenerator)
}

func TestRemoteImageGeneratorDecodesPayload(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	gen := newTestImageGen(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var body struct {
			Prompt     string          `json:"prompt"`
			References []wireReference `json:"references"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Prompt != "a quiet harbor at dawn" {
			t.Errorf("prompt = %q", body.Prompt)
		}
		if len(body.References) != 1 || body.References[0].Name != "anchor" {
			t.Errorf("references = %+v", body.References)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"image_b64": base64.StdEncoding.EncodeToString(payload),
			"mime_type": "image/png",
		})
	})

	blob, err := gen.GenerateImage(context.Background(), ImageRequest{
		Prompt:     "a quiet harbor at dawn",
		References: []Reference{{Name: "anchor", Data: []byte("frame-bytes")}},
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(blob.Data) != string(payload) {
		t.Errorf("payload mismatch: %v", blob.Data)
	}
	if blob.MIME != "image/png" {
		t.Errorf("mime = %q", blob.MIME)
	}
}

func TestRemoteImageGeneratorClassifiesRateLimit(t *testing.T) {
	gen := newTestImageGen(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := gen.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !IsTransient(err) {
		t.Fatalf("want transient error, got %v", err)
	}
	var te *TransientError
	if !errors.As(err, &te) || te.Status != http.StatusTooManyRequests {
		t.Errorf("transient status = %v", err)
	}
}

func TestRemoteImageGeneratorClassifiesServerError(t *testing.T) {
	gen := newTestImageGen(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream sad", http.StatusBadGateway)
	})
	_, err := gen.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !IsTransient(err) {
		t.Fatalf("want transient error, got %v", err)
	}
}

func TestRemoteImageGeneratorRejectsEmptyPayload(t *testing.T) {
	gen := newTestImageGen(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"image_b64": ""})
	})
	_, err := gen.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestRemoteClientRequiresBaseURL(t *testing.T) {
	if _, err := Default.NewImage("remote", Config{}); err == nil {
		t.Fatal("want error for missing base_url")
	}
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	if _, err := Default.NewVideo("no-such-provider", nil); err == nil {
		t.Fatal("want error for unknown provider")
	}
}

func TestStubGeneratorsAreDeterministic(t *testing.T) {
	ctx := context.Background()
	img := StubImageGenerator{}
	a, err := img.GenerateImage(ctx, ImageRequest{Prompt: "p", Size: "1024x1024"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	b, _ := img.GenerateImage(ctx, ImageRequest{Prompt: "p", Size: "1024x1024"})
	if string(a.Data) != string(b.Data) {
		t.Error("same request produced different payloads")
	}
	c, _ := img.GenerateImage(ctx, ImageRequest{Prompt: "q", Size: "1024x1024"})
	if string(a.Data) == string(c.Data) {
		t.Error("different prompts produced identical payloads")
	}

	ext := StubFrameExtractor{}
	if _, err := ext.ExtractLastFrame(ctx, Blob{}); !IsValidation(err) {
		t.Errorf("want validation error for empty video, got %v", err)
	}
	frame, err := ext.ExtractLastFrame(ctx, a)
	if err != nil {
		t.Fatalf("ExtractLastFrame: %v", err)
	}
	if len(frame.Data) == 0 || frame.MIME != "image/png" {
		t.Errorf("frame = %+v", frame)
	}
}
