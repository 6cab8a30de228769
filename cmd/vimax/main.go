// Command vimax runs the shot-generation pipeline over a storyboard file and
// serves a read-only status API while the run is in flight.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/smbiz1/ViMax/internal/api"
	"github.com/smbiz1/ViMax/internal/bootstrap"
	"github.com/smbiz1/ViMax/internal/config"
	"github.com/smbiz1/ViMax/internal/logging"
	"github.com/smbiz1/ViMax/internal/observability"
	"github.com/smbiz1/ViMax/internal/storyboard"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vimax:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config (optional)")
		shotsPath  = flag.String("shots", "", "path to the storyboard shot list (JSON)")
		runID      = flag.String("run", "", "run identifier; reuse to resume a run (default: new)")
		noServe    = flag.Bool("no-serve", false, "disable the status API")
	)
	flag.Parse()

	config.LoadDotenv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	if *shotsPath == "" {
		return errors.New("missing required -shots flag")
	}
	shots, err := loadShots(*shotsPath)
	if err != nil {
		return err
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()[:8]
	}

	shutdownTrace, err := observability.InitTracing(observability.TracingConfig{
		Service:      "vimax",
		Environment:  cfg.Tracing.Environment,
		Exporter:     cfg.Tracing.Exporter,
		Endpoint:     cfg.Tracing.Endpoint,
		Headers:      cfg.Tracing.Headers,
		UseTLS:       cfg.Tracing.UseTLS,
		Sampler:      cfg.Tracing.Sampler,
		SamplerRatio: cfg.Tracing.SamplerRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTrace(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe, err := bootstrap.New(ctx, cfg, id, log)
	if err != nil {
		return err
	}

	var statusSrv *http.Server
	if !*noServe {
		statusSrv = &http.Server{
			Addr:    cfg.Status.Addr,
			Handler: api.NewServer(pipe.Store, pipe.Metrics, log).Handler(),
		}
		go func() {
			log.Info("status api listening", "addr", cfg.Status.Addr)
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status api stopped", "error", err)
			}
		}()
	}

	res, runErr := pipe.Orchestrator.Run(ctx, id, shots)

	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = statusSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if runErr != nil {
		return runErr
	}

	log.Info("pipeline complete", "run_id", res.RunID,
		"generated", res.Generated, "cached", res.Cached)
	for _, key := range res.Videos {
		fmt.Println(key)
	}
	return nil
}

func loadShots(path string) ([]storyboard.Shot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shots: %w", err)
	}
	var shots []storyboard.Shot
	if err := json.Unmarshal(b, &shots); err != nil {
		return nil, fmt.Errorf("parse shots: %w", err)
	}
	if len(shots) == 0 {
		return nil, errors.New("shot list is empty")
	}
	return shots, nil
}
