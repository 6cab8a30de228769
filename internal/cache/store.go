package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound reports a cache miss. It is a control-flow signal, not a
// failure: callers fall through to generating the artifact.
var ErrNotFound = errors.New("cache: artifact not found")

// Store persists task artifacts under deterministic, path-shaped keys.
// Keys carry no timestamps or random components, so re-running an identical
// pipeline against the same working directory resolves to the same entries.
// Writes are idempotent per key; entries are never edited in place — a stale
// entry is removed and rewritten. IO errors from any method are fatal to the
// run and must not be retried.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// ReadJSON loads a structured intermediate result.
func ReadJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// WriteJSON persists a structured intermediate result, indented so a human
// can inspect partial progress on disk.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.Write(ctx, key, b)
}
