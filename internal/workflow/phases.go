package workflow

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"podcastflow/internal/generation"
	"podcastflow/internal/logging"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
	"podcastflow/internal/services"
	"podcastflow/internal/transcription"
)

// stepFailure ties a run-ending error to the step recorded in error.step.
type stepFailure struct {
	step string
	err  error
	at   time.Time
}

func newStepFailure(step string, err error, at time.Time) *stepFailure {
	return &stepFailure{step: step, err: err, at: at}
}

func (f *stepFailure) Error() string {
	return f.step + ": " + f.err.Error()
}

func (f *stepFailure) Unwrap() error {
	return f.err
}

func (o *Orchestrator) transcribe(ctx context.Context, p *project.Project) (_ *project.Transcript, err error) {
	job := project.JobTranscription
	ctx = services.WithStep(services.WithJob(ctx, string(job)), realtime.StepTranscription)
	logger := logging.WithContext(ctx, o.logger)

	switch p.JobStatus.Get(job) {
	case project.JobCompleted:
		if p.Transcript == nil {
			return nil, newStepFailure(string(job), services.Wrap(services.ErrPersistence, "transcription", "resume", "transcript missing for completed job", nil), o.now())
		}
		logger.Info("transcript already saved; skipping transcription")
		if p.Captions == nil {
			o.writeCaptions(ctx, p.ID, p.Transcript)
		}
		return p.Transcript, nil
	case project.JobFailed:
		return nil, newStepFailure(string(job), services.Wrap(services.ErrFatal, "transcription", "resume", "transcription failed in an earlier run", nil), time.Time{})
	}

	ctx, span := o.startSpan(ctx, "workflow.transcription", attribute.String("project.id", p.ID))
	defer func() { endSpan(span, err) }()

	o.publishProcessing(ctx, p.ID, realtime.StepTranscription, realtime.EventStart, project.PhaseRunning, "Transcribing audio", 0)
	if err := o.persist(ctx, "mark transcription running", func(c context.Context) error {
		return o.store.UpdateJobStatus(c, p.ID, job, project.JobRunning)
	}); err != nil {
		return nil, newStepFailure(string(job), err, o.now())
	}

	started := o.now()
	callCtx, cancel := context.WithCancel(ctx)
	if o.transcriptionTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.transcriptionTimeout)
	}
	transcript, err := o.transcriber.Transcribe(callCtx, p.InputURL)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err == nil && transcript == nil {
		err = services.Wrap(services.ErrFatal, "transcription", "transcribe", "provider returned no transcript", nil)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if timedOut && !errors.Is(err, services.ErrTransient) && !errors.Is(err, services.ErrFatal) {
			err = services.Wrap(services.ErrTransient, "transcription", "transcribe", fmt.Sprintf("timed out after %s", o.transcriptionTimeout), err)
		}
		at := o.now()
		o.markJobFailed(ctx, p.ID, job)
		o.publishProcessing(ctx, p.ID, realtime.StepTranscription, realtime.EventFailed, project.PhaseFailed, services.Message(err), 0)
		return nil, newStepFailure(string(job), err, at)
	}

	if err := o.persist(ctx, "save transcript", func(c context.Context) error {
		return o.store.SaveTranscript(c, p.ID, transcript)
	}); err != nil {
		at := o.now()
		if ctx.Err() == nil {
			o.markJobFailed(ctx, p.ID, job)
		}
		return nil, newStepFailure(string(job), err, at)
	}

	logger.Info("transcription completed",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("segments", len(transcript.Segments)),
		logging.Int("chapters", len(transcript.Chapters)),
		logging.Duration("elapsed", o.now().Sub(started)),
	)
	o.publishProcessing(ctx, p.ID, realtime.StepTranscription, realtime.EventComplete, project.PhaseCompleted, "Transcription complete", 100)
	o.publishResult(ctx, p.ID, string(job), transcript)
	o.writeCaptions(ctx, p.ID, transcript)
	return transcript, nil
}

// writeCaptions renders and stores SRT captions. Failures are logged and
// never fail the run.
func (o *Orchestrator) writeCaptions(ctx context.Context, projectID string, transcript *project.Transcript) {
	if o.captions == nil {
		return
	}
	logger := logging.WithContext(ctx, o.logger)
	srt := transcription.RenderSRT(transcript)
	if strings.TrimSpace(srt) == "" {
		return
	}
	obj, err := o.captions.PutCaptions(ctx, projectID, srt)
	if err != nil {
		logging.WarnWithContext(logger, "caption upload failed", "captions_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check blob storage settings"),
			logging.String(logging.FieldImpact, "project has no SRT captions"),
		)
		return
	}
	if err := o.store.SaveCaptions(ctx, projectID, project.Captions{SRTURL: obj.URL, RawText: srt}); err != nil {
		logging.WarnWithContext(logger, "caption reference not saved", "captions_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "project has no SRT captions"),
		)
		return
	}
	o.publishResult(ctx, projectID, "captions", project.Captions{SRTURL: obj.URL})
}

type taskOutcome struct {
	job      project.Job
	artifact any
	err      error
	at       time.Time
}

// generate runs every generation task concurrently and waits for all of
// them. Completed jobs from an earlier attempt are read back instead of
// rerun. A failing task never cancels its siblings.
func (o *Orchestrator) generate(ctx context.Context, p *project.Project, transcript *project.Transcript) (project.Bundle, error) {
	ctx = services.WithStep(ctx, realtime.StepGeneration)
	bundle := p.Bundle()

	o.publishProcessing(ctx, p.ID, realtime.StepGeneration, realtime.EventStart, project.PhaseRunning, "Generating content", 0)

	outcomes := make([]taskOutcome, len(o.generators))
	var wg sync.WaitGroup
	for i, gen := range o.generators {
		job := gen.Job()
		switch p.JobStatus.Get(job) {
		case project.JobCompleted:
			if artifact := bundle.Artifact(job); artifact != nil {
				outcomes[i] = taskOutcome{job: job, artifact: artifact}
				continue
			}
			outcomes[i] = taskOutcome{job: job, at: o.now(), err: services.Wrap(services.ErrPersistence, "generation", string(job), "result missing for completed job", nil)}
			continue
		case project.JobFailed:
			outcomes[i] = taskOutcome{job: job, err: services.Wrap(services.ErrFatal, "generation", string(job), "failed in an earlier run", nil)}
			continue
		case project.JobSkipped:
			outcomes[i] = taskOutcome{job: job, artifact: bundle.Artifact(job)}
			continue
		}
		wg.Add(1)
		go func(i int, gen generation.Generator) {
			defer wg.Done()
			artifact, at, err := o.runTask(ctx, p.ID, gen, transcript)
			outcomes[i] = taskOutcome{job: gen.Job(), artifact: artifact, err: err, at: at}
		}(i, gen)
	}
	wg.Wait()

	var failures []taskOutcome
	for _, out := range outcomes {
		if out.err != nil {
			failures = append(failures, out)
			continue
		}
		if out.artifact != nil {
			bundle.Set(out.job, out.artifact)
		}
	}
	if len(failures) == 0 {
		return bundle, nil
	}
	if ctx.Err() != nil {
		return bundle, ctx.Err()
	}

	first := firstFailure(failures)
	o.publishProcessing(ctx, p.ID, realtime.StepGeneration, realtime.EventFailed, project.PhaseFailed,
		fmt.Sprintf("%d of %d generation tasks failed", len(failures), len(outcomes)), 0)
	return bundle, newStepFailure(string(first.job), first.err, first.at)
}

// firstFailure picks the failure that happened first. Simultaneous failures
// resolve in canonical job order.
func firstFailure(failures []taskOutcome) taskOutcome {
	sorted := slices.Clone(failures)
	slices.SortStableFunc(sorted, func(a, b taskOutcome) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(project.JobOrder(a.job), project.JobOrder(b.job))
	})
	return sorted[0]
}

func (o *Orchestrator) runTask(ctx context.Context, projectID string, gen generation.Generator, transcript *project.Transcript) (_ any, _ time.Time, err error) {
	job := gen.Job()
	ctx = services.WithJob(ctx, string(job))
	ctx, span := o.startSpan(ctx, "workflow.generation."+string(job), attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()
	logger := logging.WithContext(ctx, o.logger)

	if err := o.persist(ctx, "mark job running", func(c context.Context) error {
		return o.store.UpdateJobStatus(c, projectID, job, project.JobRunning)
	}); err != nil {
		return nil, o.now(), err
	}
	o.publishGeneration(ctx, projectID, job, realtime.EventStart, project.JobRunning, "Generating "+jobLabel(job))

	started := o.now()
	artifact, err := o.generateWithRetry(ctx, gen, transcript)
	if err == nil {
		err = o.persist(ctx, "save job result", func(c context.Context) error {
			return o.store.SaveJobResult(c, projectID, job, artifact)
		})
	}
	if err != nil {
		at := o.now()
		if ctx.Err() == nil {
			o.markJobFailed(ctx, projectID, job)
			o.publishGeneration(ctx, projectID, job, realtime.EventFailed, project.JobFailed, services.Message(err))
			logging.ErrorWithContext(logger, "generation task failed", "generation_failed",
				logging.String("error_kind", services.Kind(err)),
				logging.String(logging.FieldErrorHint, failureHint(err)),
				logging.Error(err),
			)
		}
		return nil, at, err
	}

	logger.Info("generation task completed",
		logging.String(logging.FieldEventType, "generation_complete"),
		logging.Duration("elapsed", o.now().Sub(started)),
	)
	o.publishGeneration(ctx, projectID, job, realtime.EventComplete, project.JobCompleted, jobLabel(job)+" ready")
	o.publishResult(ctx, projectID, string(job), artifact)
	return artifact, o.now(), nil
}

// generateWithRetry runs one task under the step timeout, retrying
// transient failures up to the generation attempt budget.
func (o *Orchestrator) generateWithRetry(ctx context.Context, gen generation.Generator, transcript *project.Transcript) (any, error) {
	job := string(gen.Job())
	logger := logging.WithContext(ctx, o.logger)

	var lastErr error
	attempts := 0
	for attempts < o.generationAttempts {
		attempts++
		callCtx, cancel := o.stepContext(ctx)
		artifact, err := gen.Generate(callCtx, transcript)
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil && artifact == nil {
			err = services.Wrap(services.ErrFatal, "generation", job, "task produced no result", nil)
		}
		if err == nil {
			return artifact, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if timedOut && !errors.Is(err, services.ErrTransient) && !errors.Is(err, services.ErrFatal) {
			err = services.Wrap(services.ErrTransient, "generation", job, fmt.Sprintf("attempt timed out after %s", o.stepTimeout), err)
		}
		lastErr = err
		if !services.Retryable(err) || attempts == o.generationAttempts {
			break
		}
		logger.Debug("generation attempt failed; retrying",
			logging.Attempt(attempts),
			logging.Error(err),
		)
		if sleepErr := o.sleep(ctx, o.retryDelay*time.Duration(attempts)); sleepErr != nil {
			return nil, sleepErr
		}
	}
	if services.Retryable(lastErr) {
		return nil, fmt.Errorf("%s failed after %d attempt(s): %w", job, attempts, lastErr)
	}
	return nil, lastErr
}

// markJobFailed is best-effort; the run fails either way.
func (o *Orchestrator) markJobFailed(ctx context.Context, projectID string, job project.Job) {
	err := o.persist(ctx, "mark job failed", func(c context.Context) error {
		return o.store.UpdateJobStatus(c, projectID, job, project.JobFailed)
	})
	if err != nil && !errors.Is(err, services.ErrConflict) {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "job failure not recorded", "job_status_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job status may still read running"),
		)
	}
}

func failureMessage(step string, err error) string {
	if msg := strings.TrimSpace(services.Message(err)); msg != "" {
		return msg
	}
	return step + " failed"
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "check provider credentials in the config file"
	case errors.Is(err, services.ErrFatal):
		return "provider rejected the request; check the input file"
	case errors.Is(err, services.ErrPersistence):
		return "check database access"
	case services.Retryable(err):
		return "provider kept failing; retry with a new upload later"
	default:
		return "check logs for details"
	}
}
