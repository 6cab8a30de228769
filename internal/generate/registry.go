package generate

import (
	"fmt"
	"sort"
	"sync"
)

// Config carries the already-resolved init arguments for one provider, as
// loaded from the pipeline config file.
type Config map[string]string

func (c Config) Get(key, fallback string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return fallback
}

type (
	ImageFactory     func(cfg Config) (ImageGenerator, error)
	VideoFactory     func(cfg Config) (VideoGenerator, error)
	ExtractorFactory func(cfg Config) (FrameExtractor, error)
)

// Registry maps capability provider names to constructors. Providers are
// registered at init time and resolved once at bootstrap; the scheduler never
// touches concrete provider types.
type Registry struct {
	mu         sync.Mutex
	images     map[string]ImageFactory
	videos     map[string]VideoFactory
	extractors map[string]ExtractorFactory
}

func NewRegistry() *Registry {
	return &Registry{
		images:     make(map[string]ImageFactory),
		videos:     make(map[string]VideoFactory),
		extractors: make(map[string]ExtractorFactory),
	}
}

// Default is the process-wide registry the built-in providers register into.
var Default = NewRegistry()

func (r *Registry) RegisterImage(name string, f ImageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[name] = f
}

func (r *Registry) RegisterVideo(name string, f VideoFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[name] = f
}

func (r *Registry) RegisterExtractor(name string, f ExtractorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[name] = f
}

func (r *Registry) NewImage(name string, cfg Config) (ImageGenerator, error) {
	r.mu.Lock()
	f, ok := r.images[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown image provider %q (have %v)", name, keys(r.images))
	}
	return f(cfg)
}

func (r *Registry) NewVideo(name string, cfg Config) (VideoGenerator, error) {
	r.mu.Lock()
	f, ok := r.videos[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown video provider %q (have %v)", name, keys(r.videos))
	}
	return f(cfg)
}

func (r *Registry) NewExtractor(name string, cfg Config) (FrameExtractor, error) {
	r.mu.Lock()
	f, ok := r.extractors[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown frame extractor %q (have %v)", name, keys(r.extractors))
	}
	return f(cfg)
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
