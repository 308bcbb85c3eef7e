package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"podcastflow/internal/config"
	"podcastflow/internal/generation"
	"podcastflow/internal/llm"
	"podcastflow/internal/logging"
	"podcastflow/internal/notifications"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
	"podcastflow/internal/services"
	"podcastflow/internal/transcription"
	"podcastflow/internal/trigger"
)

const (
	defaultPersistAttempts = 3
	defaultRetryDelay      = time.Second
)

// Orchestrator runs the processing pipeline for one project at a time per id.
type Orchestrator struct {
	store       Store
	transcriber transcription.Transcriber
	generators  []generation.Generator
	publisher   realtime.Publisher
	captions    CaptionWriter
	notifier    notifications.Service
	logger      *slog.Logger
	tracer      trace.Tracer
	heartbeat   *HeartbeatMonitor
	expirer     ChannelExpirer
	retention   time.Duration

	stepTimeout          time.Duration
	transcriptionTimeout time.Duration
	generationAttempts   int
	persistAttempts      int
	retryDelay           time.Duration
	sleep                func(context.Context, time.Duration) error
	now                  func() time.Time

	mu          sync.Mutex
	active      map[string]struct{}
	lastErr     error
	lastProject string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets the realtime publisher. The default drops events.
func WithPublisher(p realtime.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithCaptions enables SRT caption upload after transcription.
func WithCaptions(w CaptionWriter) Option {
	return func(o *Orchestrator) { o.captions = w }
}

// ChannelExpirer drops a project's realtime buffer some time after its run
// ends. *realtime.Hub implements it.
type ChannelExpirer interface {
	Expire(channel string, after time.Duration)
}

// WithChannelExpiry releases the realtime channel of a project retention
// after it completes or fails.
func WithChannelExpiry(e ChannelExpirer, retention time.Duration) Option {
	return func(o *Orchestrator) {
		o.expirer = e
		o.retention = retention
	}
}

// WithNotifier sets the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithSleeper replaces the wait between retries (used in tests).
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithClock replaces the wall clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the pipeline. Timeouts, retry budgets and heartbeat
// timing come from cfg.
func NewOrchestrator(cfg *config.Config, store Store, transcriber transcription.Transcriber, generators []generation.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:                store,
		transcriber:          transcriber,
		generators:           generators,
		publisher:            realtime.NopPublisher{},
		notifier:             notifications.NewService(config.Notifications{}),
		logger:               logging.NewNop(),
		tracer:               defaultTracer(),
		stepTimeout:          time.Duration(cfg.Workflow.StepTimeoutSeconds) * time.Second,
		transcriptionTimeout: time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
		generationAttempts:   cfg.Workflow.GenerationAttempts,
		persistAttempts:      defaultPersistAttempts,
		retryDelay:           defaultRetryDelay,
		sleep:                sleepContext,
		now:                  time.Now,
		active:               make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.generationAttempts <= 0 {
		o.generationAttempts = 1
	}
	o.logger = logging.NewComponentLogger(o.logger, "workflow")
	o.heartbeat = NewHeartbeatMonitor(
		store,
		o.logger,
		time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
		time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
	)
	return o
}

// HandleUpload starts the run for an upload event. Events for projects that
// are already processing or finished are acknowledged without work, so
// redelivery is harmless. Pipeline failures are recorded on the project and
// do not surface as errors; an error means the outcome could not be recorded.
func (o *Orchestrator) HandleUpload(ctx context.Context, event trigger.UploadEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	ctx = services.WithProjectID(ctx, event.ProjectID)
	logger := logging.WithContext(ctx, o.logger)

	if !o.begin(event.ProjectID) {
		logger.Debug("run already active; duplicate event ignored")
		return nil
	}
	defer o.finish(event.ProjectID)

	p, err := o.loadOrCreate(ctx, event)
	if err != nil {
		return err
	}
	if p.Status != project.StatusUploaded {
		logger.Debug("project already claimed; event ignored", logging.String("status", string(p.Status)))
		return nil
	}
	if err := o.store.UpdateProjectStatus(ctx, p.ID, project.StatusProcessing); err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Debug("lost claim race; event ignored")
			return nil
		}
		return fmt.Errorf("workflow: claim project: %w", err)
	}
	p.Status = project.StatusProcessing
	return o.run(ctx, p, false)
}

// Resume continues a processing run from its persisted checkpoints. Jobs
// already completed are not repeated.
func (o *Orchestrator) Resume(ctx context.Context, projectID string) error {
	ctx = services.WithProjectID(ctx, projectID)
	if !o.begin(projectID) {
		return nil
	}
	defer o.finish(projectID)

	p, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("workflow: load project: %w", err)
	}
	if p == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "resume", "project "+projectID+" not found", nil)
	}
	if p.Status != project.StatusProcessing {
		logging.WithContext(ctx, o.logger).Debug("project not processing; nothing to resume", logging.String("status", string(p.Status)))
		return nil
	}
	return o.run(ctx, p, true)
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, event trigger.UploadEvent) (*project.Project, error) {
	p, err := o.store.GetProject(ctx, event.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("workflow: load project: %w", err)
	}
	if p != nil {
		return p, nil
	}
	p, err = o.store.CreateProject(ctx, event.NewProject())
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, services.ErrConflict) {
		return nil, fmt.Errorf("workflow: create project: %w", err)
	}
	p, err = o.store.GetProject(ctx, event.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("workflow: load project: %w", err)
	}
	if p == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "load project", "project "+event.ProjectID+" vanished", nil)
	}
	return p, nil
}

func (o *Orchestrator) run(ctx context.Context, p *project.Project, resumed bool) (err error) {
	started := o.now()
	ctx, span := o.startSpan(ctx, "workflow.run",
		attribute.String("project.id", p.ID),
		attribute.Bool("workflow.resumed", resumed),
	)
	defer func() { endSpan(span, err) }()
	logger := logging.WithContext(ctx, o.logger)
	o.setLastProject(p.ID)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go o.heartbeat.StartLoop(hbCtx, &hbWG, p.ID)
	defer func() {
		stopHeartbeat()
		hbWG.Wait()
	}()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("file_name", p.FileName),
		logging.Bool("resumed", resumed),
	)

	usage := &llm.Usage{}
	ctx = llm.WithUsage(ctx, usage)

	transcript, err := o.transcribe(ctx, p)
	if err != nil {
		return o.fail(ctx, p, err)
	}
	bundle, err := o.generate(ctx, p, transcript)
	if err != nil {
		return o.fail(ctx, p, err)
	}
	return o.complete(ctx, p, transcript, bundle, usage, started)
}

func (o *Orchestrator) complete(ctx context.Context, p *project.Project, transcript *project.Transcript, bundle project.Bundle, usage *llm.Usage, started time.Time) error {
	ctx = services.WithStep(ctx, "join")
	logger := logging.WithContext(ctx, o.logger)

	if err := o.persist(ctx, "save generated content", func(c context.Context) error {
		return o.store.SaveGeneratedContent(c, p.ID, bundle)
	}); err != nil {
		return o.fail(ctx, p, newStepFailure(realtime.StepGeneration, err, o.now()))
	}
	if err := o.persist(ctx, "mark completed", func(c context.Context) error {
		return o.store.UpdateProjectStatus(c, p.ID, project.StatusCompleted)
	}); err != nil {
		return o.fail(ctx, p, newStepFailure(realtime.StepGeneration, err, o.now()))
	}

	elapsed := o.now().Sub(started)
	// The speech provider reports no token usage; one word counts as one.
	metrics := project.Metrics{
		TotalProcessingTimeMS: elapsed.Milliseconds(),
		TranscriptionTokens:   int64(transcript.WordCount()),
		GenerationTokens:      usage.Tokens(),
	}
	if err := o.store.SaveMetrics(ctx, p.ID, metrics); err != nil {
		logging.WarnWithContext(logger, "metrics not saved", "metrics_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "project has no processing metrics"),
		)
	}

	o.publishProcessing(ctx, p.ID, realtime.StepGeneration, realtime.EventComplete, project.PhaseCompleted, "All content generated", 100)
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("elapsed", elapsed),
		logging.Int64("transcription_tokens", metrics.TranscriptionTokens),
		logging.Int64("generation_tokens", metrics.GenerationTokens),
	)
	o.setLastError(nil)
	o.notifyCompleted(ctx, p.ID, elapsed)
	o.expireChannel(p.ID)
	return nil
}

// fail records the first failure of a run. An interrupted run (shutdown) is
// left in processing so the manager can resume it.
func (o *Orchestrator) fail(ctx context.Context, p *project.Project, err error) error {
	logger := logging.WithContext(ctx, o.logger)
	if ctx.Err() != nil {
		logger.Info("run interrupted; project stays processing for resume", logging.Error(err))
		return ctx.Err()
	}

	step := "pipeline"
	cause := err
	at := o.now()
	var sf *stepFailure
	if errors.As(err, &sf) {
		step = sf.step
		cause = sf.err
		if !sf.at.IsZero() {
			at = sf.at
		}
	}

	failure := project.Failure{
		Message:   failureMessage(step, cause),
		Step:      step,
		Timestamp: at.UTC(),
	}
	if code := services.StatusCode(cause); code > 0 {
		failure.Details = &project.FailureDetails{StatusCode: code}
	}
	o.setLastError(cause)

	logging.ErrorWithContext(logger, "run failed", "run_failed",
		logging.Step(step),
		logging.String("error_kind", services.Kind(cause)),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
		logging.Error(cause),
	)

	recordErr := o.persist(ctx, "fail project", func(c context.Context) error {
		return o.store.FailProject(c, p.ID, failure)
	})
	if recordErr != nil {
		if errors.Is(recordErr, services.ErrConflict) {
			logger.Debug("project failure already recorded")
			return nil
		}
		logging.ErrorWithContext(logger, "could not record run failure", "run_fail_record_failed",
			logging.Error(recordErr),
			logging.String(logging.FieldErrorHint, "check database access; the run will be reclaimed after the heartbeat timeout"),
		)
		return fmt.Errorf("workflow: record failure: %w", recordErr)
	}
	o.notifyFailed(ctx, p.ID)
	o.expireChannel(p.ID)
	return nil
}

func (o *Orchestrator) expireChannel(projectID string) {
	if o.expirer != nil {
		o.expirer.Expire(realtime.ChannelFor(projectID), o.retention)
	}
}

// persist runs a store write under the step timeout, retrying persistence
// errors. Any other error is returned at once.
func (o *Orchestrator) persist(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= o.persistAttempts; attempt++ {
		callCtx, cancel := o.stepContext(ctx)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !errors.Is(err, services.ErrPersistence) || ctx.Err() != nil {
			return err
		}
		if attempt < o.persistAttempts {
			logging.WithContext(ctx, o.logger).Debug("store write failed; retrying",
				logging.String("operation", op),
				logging.Attempt(attempt),
				logging.Error(err),
			)
			if sleepErr := o.sleep(ctx, o.retryDelay*time.Duration(attempt)); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return fmt.Errorf("workflow: %s: %w", op, err)
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.stepTimeout)
}

func (o *Orchestrator) begin(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.active[id]; ok {
		return false
	}
	o.active[id] = struct{}{}
	return true
}

func (o *Orchestrator) finish(id string) {
	o.mu.Lock()
	delete(o.active, id)
	o.mu.Unlock()
}

// IsActive reports whether a run for id is in progress in this process.
func (o *Orchestrator) IsActive(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[id]
	return ok
}

// ActiveRuns lists project ids with a run in progress.
func (o *Orchestrator) ActiveRuns() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) setLastError(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}

func (o *Orchestrator) setLastProject(id string) {
	o.mu.Lock()
	o.lastProject = id
	o.mu.Unlock()
}

func (o *Orchestrator) lastRun() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastProject, o.lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
