package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smbiz1/ViMax/internal/cache"
	"github.com/smbiz1/ViMax/internal/generate"
	"github.com/smbiz1/ViMax/internal/limiter"
	"github.com/smbiz1/ViMax/internal/observability"
	"github.com/smbiz1/ViMax/internal/retry"
	"github.com/smbiz1/ViMax/internal/state"
	"github.com/smbiz1/ViMax/internal/storyboard"
)

// Generators bundles the remote capabilities a run needs.
type Generators struct {
	Image  generate.ImageGenerator
	Video  generate.VideoGenerator
	Frames generate.FrameExtractor
}

type Options struct {
	Cache        cache.Store
	Store        state.Store
	Matcher      storyboard.ParentMatcher
	Retry        retry.Policy
	ImageLimiter *limiter.RateLimiter
	VideoLimiter *limiter.RateLimiter
	Logger       *slog.Logger
	Metrics      *observability.Registry
}

// Orchestrator owns one configuration of the pipeline and can execute any
// number of runs with it.
type Orchestrator struct {
	gens    Generators
	cache   cache.Store
	store   state.Store
	matcher storyboard.ParentMatcher
	retry   retry.Policy
	imgLim  *limiter.RateLimiter
	vidLim  *limiter.RateLimiter
	log     *slog.Logger
	metrics *observability.Registry
}

func New(gens Generators, opts Options) (*Orchestrator, error) {
	if gens.Image == nil || gens.Video == nil {
		return nil, errors.New("scheduler: image and video generators are required")
	}
	if opts.Cache == nil {
		return nil, errors.New("scheduler: artifact cache is required")
	}
	store := opts.Store
	if store == nil {
		store = state.NewMemoryStore()
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = storyboard.RecencyMatcher{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.Default
	}
	return &Orchestrator{
		gens:    gens,
		cache:   opts.Cache,
		store:   store,
		matcher: matcher,
		retry:   opts.Retry,
		imgLim:  opts.ImageLimiter,
		vidLim:  opts.VideoLimiter,
		log:     log,
		metrics: metrics,
	}, nil
}

// Result summarizes a finished run.
type Result struct {
	RunID     string   `json:"run_id"`
	Videos    []string `json:"videos"`
	Generated int      `json:"generated"`
	Cached    int      `json:"cached"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
}

type runManifest struct {
	RunID     string    `json:"run_id"`
	ShotCount int       `json:"shot_count"`
	Videos    []string  `json:"videos"`
	CreatedAt time.Time `json:"created_at"`
}

// Run executes every artifact task for the shot list. It returns once all
// tasks have resolved; a non-nil error means at least one task failed, with
// the per-shot detail in the wrapped RunError.
func (o *Orchestrator) Run(ctx context.Context, runID string, shots []storyboard.Shot) (*Result, error) {
	if runID == "" {
		runID = uuid.NewString()[:8]
	}
	for _, s := range shots {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("shot %d: %w", s.Idx, err)
		}
	}

	ctx, span := observability.StartSpan(ctx, "scheduler.run",
		attribute.String("run.id", runID),
		attribute.Int("run.shots", len(shots)))
	defer span.End()

	cameras, err := o.loadOrBuildForest(ctx, shots)
	if err != nil {
		return nil, err
	}
	tasks, err := BuildTasks(shots, cameras)
	if err != nil {
		return nil, err
	}

	run := &runState{
		id:       runID,
		board:    NewBoard(),
		shots:    shotIndex(shots),
		cameras:  cameraIndex(cameras),
		failures: make(map[TaskID]error),
	}
	records := make([]state.TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		run.board.Register(t.ID)
		records = append(records, state.TaskRecord{
			TaskID:      t.ID.String(),
			ShotIdx:     t.ID.ShotIdx,
			Kind:        t.ID.Kind,
			Status:      state.StatusPending,
			ArtifactKey: t.ArtifactKey(),
			Deps:        depStrings(t.Deps),
		})
	}
	if err := o.store.CreateRunWithTasks(ctx, state.RunRecord{
		ID:        runID,
		ShotCount: len(shots),
		Status:    state.StatusRunning,
	}, records); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	o.journal(ctx, runID, state.ActionRunStarted, "", fmt.Sprintf("%d tasks over %d shots", len(tasks), len(shots)))
	o.log.Info("run started", "run_id", runID, "shots", len(shots), "tasks", len(tasks))

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			o.runTask(ctx, run, t)
		}(task)
	}
	wg.Wait()

	res := &Result{RunID: runID}
	for _, s := range shots {
		res.Videos = append(res.Videos, cache.ShotVideoKey(s.Idx))
	}
	run.mu.Lock()
	res.Generated = run.generated
	res.Cached = run.cached
	res.Failed = len(run.failures)
	res.Skipped = run.skipped
	failures := run.failures
	run.mu.Unlock()

	status := state.StatusDone
	if len(failures) > 0 {
		status = state.StatusFailed
	}
	o.updateRunStatus(ctx, runID, len(shots), status)
	o.journal(ctx, runID, state.ActionRunFinished, "",
		fmt.Sprintf("generated=%d cached=%d failed=%d skipped=%d", res.Generated, res.Cached, res.Failed, res.Skipped))
	o.log.Info("run finished", "run_id", runID, "status", status,
		"generated", res.Generated, "cached", res.Cached, "failed", res.Failed, "skipped", res.Skipped)

	if len(failures) > 0 {
		return res, &RunError{RunID: runID, Failures: failures, Skipped: res.Skipped}
	}
	if err := cache.WriteJSON(ctx, o.cache, cache.ManifestKey(), runManifest{
		RunID:     runID,
		ShotCount: len(shots),
		Videos:    res.Videos,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}
	return res, nil
}

// loadOrBuildForest reuses a cached camera forest when one exists and still
// matches the shot list, otherwise runs the matcher and caches the result.
func (o *Orchestrator) loadOrBuildForest(ctx context.Context, shots []storyboard.Shot) ([]storyboard.Camera, error) {
	var cameras []storyboard.Camera
	err := cache.ReadJSON(ctx, o.cache, cache.CameraTreeKey(), &cameras)
	if err == nil {
		if verr := storyboard.ValidateForest(shots, cameras); verr == nil {
			o.log.Debug("camera forest loaded from cache", "cameras", len(cameras))
			return cameras, nil
		}
		o.log.Warn("cached camera forest does not match shot list, rebuilding")
	} else if !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("read camera forest: %w", err)
	}

	cameras, err = storyboard.BuildForest(ctx, shots, o.matcher)
	if err != nil {
		return nil, fmt.Errorf("build camera forest: %w", err)
	}
	if err := cache.WriteJSON(ctx, o.cache, cache.CameraTreeKey(), cameras); err != nil {
		return nil, fmt.Errorf("cache camera forest: %w", err)
	}
	return cameras, nil
}

type runState struct {
	id      string
	board   *Board
	shots   map[int]storyboard.Shot
	cameras map[int]storyboard.Camera

	mu        sync.Mutex
	generated int
	cached    int
	skipped   int
	failures  map[TaskID]error
}

func (o *Orchestrator) runTask(ctx context.Context, run *runState, t Task) {
	key := t.ArtifactKey()
	o.metrics.AddGauge(observability.MetricTasksInFlight, nil, 1)
	defer o.metrics.AddGauge(observability.MetricTasksInFlight, nil, -1)

	// The cache check comes before dependency waiting: a shot that already
	// has its artifact on disk unblocks its dependents immediately, even
	// when its own inputs are still being generated for other consumers.
	ok, err := o.cache.Exists(ctx, key)
	if err != nil {
		o.finishFailed(ctx, run, t, fmt.Errorf("probe cache for %s: %w", key, err), false)
		return
	}
	if ok {
		o.metrics.IncCounter(observability.MetricCacheHits, map[string]string{"kind": t.ID.Kind}, 1)
		o.updateTask(ctx, run.id, t, state.StatusDone, 0, true, "")
		o.journal(ctx, run.id, state.ActionTaskCached, t.ID.String(), key)
		o.log.Debug("artifact cached, skipping generation", "task", t.ID.String(), "key", key)
		run.mu.Lock()
		run.cached++
		run.mu.Unlock()
		run.board.Done(t.ID)
		return
	}

	for _, dep := range t.Deps {
		out, err := run.board.Wait(ctx, dep)
		if err != nil {
			o.finishFailed(ctx, run, t, err, false)
			return
		}
		if out.Failed {
			o.finishFailed(ctx, run, t, &DependencyError{Dep: dep, Err: out.Err}, true)
			return
		}
	}

	o.updateTask(ctx, run.id, t, state.StatusRunning, 0, false, "")
	o.journal(ctx, run.id, state.ActionTaskStarted, t.ID.String(), "")

	attempts := 0
	policy := o.retry
	policy.Reporter = retry.ReporterFunc(func(ctx context.Context, op string, attempt int, err error) {
		attempts = attempt
		o.metrics.IncCounter(observability.MetricRetryAttempts, map[string]string{"kind": t.ID.Kind}, 1)
		o.journal(ctx, run.id, state.ActionRetryAttempt, t.ID.String(), fmt.Sprintf("attempt %d: %v", attempt, err))
		o.log.Warn("task attempt failed", "task", t.ID.String(), "attempt", attempt, "error", err)
		if o.retry.Reporter != nil {
			o.retry.Reporter.ReportFailure(ctx, op, attempt, err)
		}
	})

	ctx, span := observability.StartSpan(ctx, "scheduler.task",
		attribute.String("task.id", t.ID.String()),
		attribute.String("task.kind", t.ID.Kind))
	defer span.End()

	var blob generate.Blob
	err = policy.Do(ctx, t.ID.String(), func(ctx context.Context) error {
		var genErr error
		blob, genErr = o.produce(ctx, run, t)
		return genErr
	})
	if err != nil {
		o.finishFailed(ctx, run, t, err, false)
		return
	}
	if err := o.cache.Write(ctx, key, blob.Data); err != nil {
		o.finishFailed(ctx, run, t, fmt.Errorf("store artifact %s: %w", key, err), false)
		return
	}

	o.metrics.IncCounter(observability.MetricTasksTotal, map[string]string{"kind": t.ID.Kind, "status": state.StatusDone}, 1)
	o.updateTask(ctx, run.id, t, state.StatusDone, attempts+1, false, "")
	o.journal(ctx, run.id, state.ActionTaskDone, t.ID.String(), key)
	o.log.Info("task done", "task", t.ID.String(), "key", key)
	run.mu.Lock()
	run.generated++
	run.mu.Unlock()
	run.board.Done(t.ID)
}

// produce generates the artifact for one task. Dependencies are already
// resolved when this runs; their artifacts are read straight from the cache.
func (o *Orchestrator) produce(ctx context.Context, run *runState, t Task) (generate.Blob, error) {
	shot := run.shots[t.ID.ShotIdx]
	switch t.ID.Kind {
	case KindFirstFrame:
		return o.produceFirstFrame(ctx, run, t, shot)
	case KindLastFrame:
		return o.produceLastFrame(ctx, run, t, shot)
	case KindShotVideo:
		return o.produceShotVideo(ctx, run, t, shot)
	default:
		return generate.Blob{}, fmt.Errorf("unknown task kind %q", t.ID.Kind)
	}
}

func (o *Orchestrator) produceFirstFrame(ctx context.Context, run *runState, t Task, shot storyboard.Shot) (generate.Blob, error) {
	cam := run.cameras[t.CamIdx]
	var refs []generate.Reference

	switch {
	case shot.Idx == cam.AnchorShotIdx() && cam.IsRoot():
		// Nothing upstream; the prompt carries everything.
	case shot.Idx == cam.AnchorShotIdx():
		still, err := o.cameraStill(ctx, t, cam)
		if err != nil {
			return generate.Blob{}, err
		}
		if cam.ParentFullyCoversChild {
			// The parent composition fully contains the child view, so the
			// derived still is the first frame itself. No render call.
			return generate.Blob{Data: still, MIME: "image/png"}, nil
		}
		refs = append(refs, generate.Reference{Name: "camera_still", Note: "composition of the new camera", Data: still})
	default:
		anchor, err := o.readArtifact(ctx, cache.FirstFrameKey(cam.AnchorShotIdx()))
		if err != nil {
			return generate.Blob{}, err
		}
		refs = append(refs, generate.Reference{Name: "anchor_frame", Note: "keep camera position and framing identical", Data: anchor})
	}

	return o.generateImage(ctx, t, generate.ImageRequest{
		Prompt:     firstFramePrompt(shot),
		References: refs,
	})
}

// cameraStill derives the composition still for a child camera: a short
// transition clip is generated from the parent shot's first frame and the
// clip's final frame becomes the still. Both the clip and the still are
// cached as run artifacts in their own right, so a resumed run picks them up.
func (o *Orchestrator) cameraStill(ctx context.Context, t Task, cam storyboard.Camera) ([]byte, error) {
	stillKey := cache.CameraStillKey(cam.AnchorShotIdx(), cam.Idx)
	if data, err := o.cache.Read(ctx, stillKey); err == nil {
		return data, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		return nil, retry.Permanent(fmt.Errorf("read camera still: %w", err))
	}

	transKey := cache.TransitionKey(*cam.ParentCamIdx, cam.Idx)
	clipData, err := o.cache.Read(ctx, transKey)
	if errors.Is(err, cache.ErrNotFound) {
		parentFrame, rerr := o.readArtifact(ctx, cache.FirstFrameKey(*cam.ParentShotIdx))
		if rerr != nil {
			return nil, rerr
		}
		clip, genErr := o.generateVideo(ctx, t, generate.VideoRequest{
			Prompt: transitionPrompt(cam),
			Frames: []generate.Reference{{Name: "start_frame", Data: parentFrame}},
		})
		if genErr != nil {
			return nil, genErr
		}
		if err := o.cache.Write(ctx, transKey, clip.Data); err != nil {
			return nil, retry.Permanent(fmt.Errorf("store transition clip: %w", err))
		}
		clipData = clip.Data
	} else if err != nil {
		return nil, retry.Permanent(fmt.Errorf("read transition clip: %w", err))
	}

	if o.gens.Frames == nil {
		return nil, errors.New("camera transition requires a frame extractor")
	}
	still, err := o.gens.Frames.ExtractLastFrame(ctx, generate.Blob{Data: clipData, MIME: "video/mp4"})
	if err != nil {
		return nil, fmt.Errorf("extract camera still: %w", err)
	}
	if err := o.cache.Write(ctx, stillKey, still.Data); err != nil {
		return nil, retry.Permanent(fmt.Errorf("store camera still: %w", err))
	}
	return still.Data, nil
}

func (o *Orchestrator) produceLastFrame(ctx context.Context, run *runState, t Task, shot storyboard.Shot) (generate.Blob, error) {
	first, err := o.readArtifact(ctx, cache.FirstFrameKey(shot.Idx))
	if err != nil {
		return generate.Blob{}, err
	}
	return o.generateImage(ctx, t, generate.ImageRequest{
		Prompt: lastFramePrompt(shot),
		References: []generate.Reference{
			{Name: "first_frame", Note: "same camera, later moment", Data: first},
		},
	})
}

func (o *Orchestrator) produceShotVideo(ctx context.Context, run *runState, t Task, shot storyboard.Shot) (generate.Blob, error) {
	first, err := o.readArtifact(ctx, cache.FirstFrameKey(shot.Idx))
	if err != nil {
		return generate.Blob{}, err
	}
	frames := []generate.Reference{{Name: "first_frame", Data: first}}
	if requiresLastFrame(shot) {
		last, err := o.readArtifact(ctx, cache.LastFrameKey(shot.Idx))
		if err != nil {
			return generate.Blob{}, err
		}
		frames = append(frames, generate.Reference{Name: "last_frame", Data: last})
	}
	return o.generateVideo(ctx, t, generate.VideoRequest{
		Prompt: videoPrompt(shot),
		Frames: frames,
	})
}

// readArtifact loads a resolved dependency's artifact. A failed read here is
// a disk or bucket fault, not a flaky remote call, so it is marked permanent
// and aborts the task on the first attempt.
func (o *Orchestrator) readArtifact(ctx context.Context, key string) ([]byte, error) {
	data, err := o.cache.Read(ctx, key)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("read %s: %w", key, err))
	}
	return data, nil
}

func (o *Orchestrator) generateImage(ctx context.Context, t Task, req generate.ImageRequest) (generate.Blob, error) {
	if err := o.acquire(ctx, o.imgLim, t, "image"); err != nil {
		return generate.Blob{}, err
	}
	o.metrics.IncCounter(observability.MetricGeneratorCalls, map[string]string{"capability": "image"}, 1)
	return o.gens.Image.GenerateImage(ctx, req)
}

func (o *Orchestrator) generateVideo(ctx context.Context, t Task, req generate.VideoRequest) (generate.Blob, error) {
	if err := o.acquire(ctx, o.vidLim, t, "video"); err != nil {
		return generate.Blob{}, err
	}
	o.metrics.IncCounter(observability.MetricGeneratorCalls, map[string]string{"capability": "video"}, 1)
	return o.gens.Video.GenerateVideo(ctx, req)
}

func (o *Orchestrator) acquire(ctx context.Context, lim *limiter.RateLimiter, t Task, capability string) error {
	if lim == nil {
		return nil
	}
	start := time.Now()
	if err := lim.Acquire(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 50*time.Millisecond {
		o.metrics.IncCounter(observability.MetricLimiterWaits, map[string]string{"capability": capability}, 1)
		o.log.Debug("rate limit wait", "task", t.ID.String(), "capability", capability, "waited", waited)
	}
	return nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, run *runState, t Task, err error, skipped bool) {
	status := state.StatusFailed
	o.metrics.IncCounter(observability.MetricTasksTotal, map[string]string{"kind": t.ID.Kind, "status": status}, 1)
	o.updateTask(ctx, run.id, t, status, 0, false, err.Error())
	action := state.ActionTaskFailed
	if skipped {
		action = state.ActionTaskSkipped
	}
	o.journal(ctx, run.id, action, t.ID.String(), err.Error())
	o.log.Error("task failed", "task", t.ID.String(), "skipped", skipped, "error", err)
	run.mu.Lock()
	if skipped {
		run.skipped++
	} else {
		run.failures[t.ID] = err
	}
	run.mu.Unlock()
	run.board.Fail(t.ID, err)
}

func (o *Orchestrator) updateTask(ctx context.Context, runID string, t Task, status string, attempt int, cached bool, errMsg string) {
	rec, ok, err := o.store.GetTask(ctx, runID, t.ID.String())
	if err != nil || !ok {
		rec = state.TaskRecord{
			RunID:       runID,
			TaskID:      t.ID.String(),
			ShotIdx:     t.ID.ShotIdx,
			Kind:        t.ID.Kind,
			ArtifactKey: t.ArtifactKey(),
			Deps:        depStrings(t.Deps),
		}
	}
	rec.Status = status
	rec.Cached = cached
	rec.Error = errMsg
	if attempt > rec.Attempt {
		rec.Attempt = attempt
	}
	if uerr := o.store.UpdateTask(ctx, rec); uerr != nil {
		o.log.Warn("task record update failed", "task", t.ID.String(), "error", uerr)
	}
}

func (o *Orchestrator) updateRunStatus(ctx context.Context, runID string, shotCount int, status string) {
	rec, ok, err := o.store.GetRun(ctx, runID)
	if err != nil || !ok {
		rec = state.RunRecord{ID: runID, ShotCount: shotCount}
	}
	rec.Status = status
	if uerr := o.store.UpdateRun(ctx, rec); uerr != nil {
		o.log.Warn("run record update failed", "run_id", runID, "error", uerr)
	}
}

func (o *Orchestrator) journal(ctx context.Context, runID, action, taskID, details string) {
	err := o.store.AppendEvent(ctx, state.EventRecord{
		RunID:   runID,
		Action:  action,
		TaskID:  taskID,
		Details: details,
	})
	if err != nil {
		o.log.Warn("journal append failed", "action", action, "error", err)
	}
}

func shotIndex(shots []storyboard.Shot) map[int]storyboard.Shot {
	out := make(map[int]storyboard.Shot, len(shots))
	for _, s := range shots {
		out[s.Idx] = s
	}
	return out
}

func cameraIndex(cameras []storyboard.Camera) map[int]storyboard.Camera {
	out := make(map[int]storyboard.Camera, len(cameras))
	for _, c := range cameras {
		out[c.Idx] = c
	}
	return out
}

func depStrings(deps []TaskID) []string {
	if len(deps) == 0 {
		return nil
	}
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.String())
	}
	return out
}

func firstFramePrompt(shot storyboard.Shot) string {
	parts := []string{shot.FirstFrameDesc}
	if shot.VisualDesc != "" {
		parts = append(parts, "Scene: "+shot.VisualDesc)
	}
	return strings.Join(parts, "\n")
}

func lastFramePrompt(shot storyboard.Shot) string {
	parts := []string{shot.LastFrameDesc}
	if shot.VisualDesc != "" {
		parts = append(parts, "Scene: "+shot.VisualDesc)
	}
	return strings.Join(parts, "\n")
}

func videoPrompt(shot storyboard.Shot) string {
	parts := []string{shot.MotionDesc}
	if shot.AudioDesc != "" {
		parts = append(parts, "Audio: "+shot.AudioDesc)
	}
	return strings.Join(parts, "\n")
}

func transitionPrompt(cam storyboard.Camera) string {
	var b strings.Builder
	b.WriteString("The camera cuts to a new position revealing a different view of the same scene.")
	if cam.MissingInfo != "" {
		b.WriteString("\nNewly visible: " + cam.MissingInfo)
	}
	return b.String()
}
