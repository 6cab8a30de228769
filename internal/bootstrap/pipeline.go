// Package bootstrap assembles a runnable pipeline from configuration:
// cache backend, generator providers, rate limiters, retry policy.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/smbiz1/ViMax/internal/cache"
	"github.com/smbiz1/ViMax/internal/config"
	"github.com/smbiz1/ViMax/internal/generate"
	"github.com/smbiz1/ViMax/internal/limiter"
	"github.com/smbiz1/ViMax/internal/observability"
	"github.com/smbiz1/ViMax/internal/retry"
	"github.com/smbiz1/ViMax/internal/scheduler"
	"github.com/smbiz1/ViMax/internal/state"
)

// Pipeline is the assembled set of components one run needs, exposed so the
// status server can share the store and registry with the orchestrator.
type Pipeline struct {
	Orchestrator *scheduler.Orchestrator
	Store        state.Store
	Cache        cache.Store
	Metrics      *observability.Registry
	Logger       *slog.Logger
}

// New builds a pipeline for the given run directory. The cache lives under
// <working_dir>/<runDir> for the dir backend, or under the configured bucket
// prefix joined with runDir for the s3 backend.
func New(ctx context.Context, cfg config.Config, runDir string, log *slog.Logger) (*Pipeline, error) {
	artifactCache, err := newCache(ctx, cfg.Cache, cfg.WorkingDir, runDir)
	if err != nil {
		return nil, err
	}

	image, err := generate.Default.NewImage(cfg.Image.Name, generate.Config(cfg.Image.Options))
	if err != nil {
		return nil, fmt.Errorf("image provider: %w", err)
	}
	video, err := generate.Default.NewVideo(cfg.Video.Name, generate.Config(cfg.Video.Options))
	if err != nil {
		return nil, fmt.Errorf("video provider: %w", err)
	}
	frames, err := generate.Default.NewExtractor(cfg.Extractor.Name, generate.Config(cfg.Extractor.Options))
	if err != nil {
		return nil, fmt.Errorf("frame extractor: %w", err)
	}

	store := state.NewMemoryStore()
	metrics := observability.Default

	orch, err := scheduler.New(scheduler.Generators{
		Image:  image,
		Video:  video,
		Frames: frames,
	}, scheduler.Options{
		Cache: artifactCache,
		Store: store,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     retry.ExponentialBackoff(time.Duration(cfg.Retry.BackoffSeconds) * time.Second),
		},
		ImageLimiter: newLimiter(cfg.Image),
		VideoLimiter: newLimiter(cfg.Video),
		Logger:       log,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Orchestrator: orch,
		Store:        store,
		Cache:        artifactCache,
		Metrics:      metrics,
		Logger:       log,
	}, nil
}

func newCache(ctx context.Context, cfg config.Cache, workingDir, runDir string) (cache.Store, error) {
	switch cfg.Backend {
	case "dir":
		root := cfg.Dir
		if root == "" {
			root = workingDir
		}
		return cache.NewDirStore(filepath.Join(root, runDir))
	case "s3":
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = runDir
		} else {
			prefix = prefix + "/" + runDir
		}
		return cache.NewObjectStore(ctx, cache.ObjectConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Prefix:    prefix,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

func newLimiter(p config.Provider) *limiter.RateLimiter {
	if p.PerMinute <= 0 && p.PerDay <= 0 {
		return nil
	}
	return limiter.New(p.PerMinute, p.PerDay)
}
