// Package config loads the pipeline configuration: a YAML file layered with
// VIMAX_* environment overrides. A .env file in the working directory is
// honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	WorkingDir string `yaml:"working_dir"`
	Log        Log    `yaml:"log"`
	Cache      Cache  `yaml:"cache"`
	Retry      Retry  `yaml:"retry"`

	Image     Provider `yaml:"image"`
	Video     Provider `yaml:"video"`
	Extractor Provider `yaml:"extractor"`

	Status  Status  `yaml:"status"`
	Tracing Tracing `yaml:"tracing"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Cache struct {
	// Backend is "dir" for a local working directory or "s3" for an
	// S3-compatible object store.
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`

	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Retry struct {
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

// Provider selects a registered generator implementation and its quotas.
type Provider struct {
	Name      string            `yaml:"name"`
	Options   map[string]string `yaml:"options"`
	PerMinute int               `yaml:"requests_per_minute"`
	PerDay    int               `yaml:"requests_per_day"`
}

type Status struct {
	Addr string `yaml:"addr"`
}

// Tracing configures the OpenTelemetry exporter. Exporter "none" (the
// default) leaves tracing off.
type Tracing struct {
	Exporter     string            `yaml:"exporter"`
	Endpoint     string            `yaml:"endpoint"`
	Headers      map[string]string `yaml:"headers"`
	UseTLS       bool              `yaml:"use_tls"`
	Sampler      string            `yaml:"sampler"`
	SamplerRatio float64           `yaml:"sampler_ratio"`
	Environment  string            `yaml:"environment"`
}

// LoadDotenv reads .env from the current directory when present. Absence is
// not an error; system environment and defaults apply.
func LoadDotenv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	_ = godotenv.Load(paths...)
}

// Load reads the YAML file at path (if path is non-empty), then applies
// environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.WorkingDir = getenv("VIMAX_WORKING_DIR", c.WorkingDir)
	c.Log.Level = getenv("VIMAX_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenv("VIMAX_LOG_FORMAT", c.Log.Format)
	c.Cache.Backend = getenv("VIMAX_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Dir = getenv("VIMAX_CACHE_DIR", c.Cache.Dir)
	c.Cache.Endpoint = getenv("VIMAX_S3_ENDPOINT", c.Cache.Endpoint)
	c.Cache.AccessKey = getenv("VIMAX_S3_ACCESS_KEY", c.Cache.AccessKey)
	c.Cache.SecretKey = getenv("VIMAX_S3_SECRET_KEY", c.Cache.SecretKey)
	c.Cache.Bucket = getenv("VIMAX_S3_BUCKET", c.Cache.Bucket)
	c.Cache.Prefix = getenv("VIMAX_S3_PREFIX", c.Cache.Prefix)
	c.Cache.UseSSL = getenvBool("VIMAX_S3_USE_SSL", c.Cache.UseSSL)
	c.Retry.MaxAttempts = getenvInt("VIMAX_RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.BackoffSeconds = getenvInt("VIMAX_RETRY_BACKOFF_SECONDS", c.Retry.BackoffSeconds)
	c.Image.Name = getenv("VIMAX_IMAGE_PROVIDER", c.Image.Name)
	c.Video.Name = getenv("VIMAX_VIDEO_PROVIDER", c.Video.Name)
	c.Extractor.Name = getenv("VIMAX_EXTRACTOR_PROVIDER", c.Extractor.Name)
	c.Status.Addr = getenv("VIMAX_STATUS_ADDR", c.Status.Addr)
	c.Tracing.Exporter = strings.ToLower(getenv("VIMAX_OTEL_EXPORTER", c.Tracing.Exporter))
	c.Tracing.Endpoint = getenv("VIMAX_OTEL_ENDPOINT", c.Tracing.Endpoint)
	if raw := strings.TrimSpace(os.Getenv("VIMAX_OTEL_HEADERS")); raw != "" {
		c.Tracing.Headers = parseHeaders(raw)
	}
	c.Tracing.UseTLS = getenvBool("VIMAX_OTEL_USE_TLS", c.Tracing.UseTLS)
	c.Tracing.Sampler = strings.ToLower(getenv("VIMAX_OTEL_SAMPLER", c.Tracing.Sampler))
	c.Tracing.SamplerRatio = getenvFloat("VIMAX_OTEL_SAMPLER_RATIO", c.Tracing.SamplerRatio)
	c.Tracing.Environment = getenv("VIMAX_ENVIRONMENT", c.Tracing.Environment)
}

func (c *Config) applyDefaults() {
	if c.WorkingDir == "" {
		c.WorkingDir = ".vimax"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "dir"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BackoffSeconds == 0 {
		c.Retry.BackoffSeconds = 5
	}
	if c.Image.Name == "" {
		c.Image.Name = "stub"
	}
	if c.Video.Name == "" {
		c.Video.Name = "stub"
	}
	if c.Extractor.Name == "" {
		c.Extractor.Name = "stub"
	}
	if c.Image.PerMinute == 0 {
		c.Image.PerMinute = 10
	}
	if c.Video.PerMinute == 0 {
		c.Video.PerMinute = 5
	}
	if c.Status.Addr == "" {
		c.Status.Addr = ":8780"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.Sampler == "" {
		c.Tracing.Sampler = "always_on"
	}
	if c.Tracing.SamplerRatio == 0 {
		c.Tracing.SamplerRatio = 1.0
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "dir":
	case "s3":
		if c.Cache.Endpoint == "" {
			return fmt.Errorf("cache backend s3 requires an endpoint")
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func getenvFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// parseHeaders splits "k1=v1,k2=v2" into a map, the OTLP headers convention.
func parseHeaders(raw string) map[string]string {
	out := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
