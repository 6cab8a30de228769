package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirStore keeps artifacts as plain files under a working directory, one
// relative path per key. This is the default backend: the directory doubles
// as the human-inspectable working dir of the run.
type DirStore struct {
	root string
}

func NewDirStore(root string) (*DirStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("cache: working directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create working directory: %w", err)
	}
	return &DirStore{root: root}, nil
}

// Root returns the working directory the store is anchored at.
func (d *DirStore) Root() string { return d.root }

// Path maps a key to its absolute on-disk location.
func (d *DirStore) Path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *DirStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(d.Path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("cache: stat %s: %w", key, err)
}

func (d *DirStore) Read(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(d.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("cache: read %s: %w", key, err)
	}
	return b, nil
}

func (d *DirStore) Write(_ context.Context, key string, data []byte) error {
	path := d.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir for %s: %w", key, err)
	}
	// Write through a temp file so a crashed run never leaves a truncated
	// artifact that a resumed run would mistake for a completed one.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cache: finalize %s: %w", key, err)
	}
	return nil
}

func (d *DirStore) Remove(_ context.Context, key string) error {
	if err := os.Remove(d.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove %s: %w", key, err)
	}
	return nil
}
