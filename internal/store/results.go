package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// SaveTranscript persists the transcript and completes the transcription job
// in one transaction. The job must be running.
func (s *Store) SaveTranscript(ctx context.Context, id string, transcript *project.Transcript) error {
	ctx = ensureContext(ctx)
	const op = "save transcript"
	if transcript == nil {
		return services.Wrap(services.ErrValidation, "store", op, "transcript is required", nil)
	}
	payload, err := marshalColumn(transcript)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return s.completeJob(ctx, tx, id, project.JobTranscription, "transcript_json", payload)
	})
	if err != nil {
		return persistenceErr(op, err)
	}
	return nil
}

// SaveJobResult persists one generation result and completes its job in one
// transaction. The artifact type must match the job.
func (s *Store) SaveJobResult(ctx context.Context, id string, job project.Job, artifact any) error {
	ctx = ensureContext(ctx)
	const op = "save job result"
	column, ok := resultColumns[job]
	if !ok {
		return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("%q is not a generation job", job), nil)
	}
	var probe project.Bundle
	if !probe.Set(job, artifact) || probe.Artifact(job) == nil {
		return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("unexpected result type %T for %s", artifact, job), nil)
	}
	payload, err := marshalColumn(artifact)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return s.completeJob(ctx, tx, id, job, column, payload)
	})
	if err != nil {
		return persistenceErr(op, err)
	}
	return nil
}

// SaveGeneratedContent writes all six generation results in a single
// statement. Every generation job must already be completed, so writing the
// same bundle twice is harmless.
func (s *Store) SaveGeneratedContent(ctx context.Context, id string, bundle project.Bundle) error {
	ctx = ensureContext(ctx)
	const op = "save generated content"
	if missing := bundle.Missing(); len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("bundle is missing %v", missing), nil)
	}

	args := make([]any, 0, 12)
	assignments := ""
	for _, job := range project.GenerationJobs() {
		payload, err := marshalColumn(bundle.Artifact(job))
		if err != nil {
			return err
		}
		assignments += resultColumns[job] + " = ?, "
		args = append(args, payload)
	}
	generation := project.GenerationJobs()
	args = append(args, s.timestamp(), id, string(project.StatusProcessing))
	args = append(args, statusArgs(generation)...)
	args = append(args, string(project.JobCompleted))

	res, err := s.execWithRetry(ctx, "UPDATE projects SET "+assignments+"updated_at = ? WHERE id = ? AND status = ?"+
		" AND NOT EXISTS (SELECT 1 FROM project_jobs WHERE project_jobs.project_id = projects.id AND project_jobs.job IN ("+
		makePlaceholders(len(generation))+") AND project_jobs.status != ?)",
		args...,
	)
	if err != nil {
		return persistenceErr(op, err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return services.Wrap(services.ErrNotFound, "store", op, "project "+id+" not found", nil)
	}
	if p.Status != project.StatusProcessing {
		return services.Wrap(services.ErrConflict, "store", op, fmt.Sprintf("project %s is %s", id, p.Status), nil)
	}
	return services.Wrap(services.ErrConflict, "store", op, "generation phase is "+string(p.JobStatus.GenerationPhase()), nil)
}

// SaveCaptions stores the rendered caption reference.
func (s *Store) SaveCaptions(ctx context.Context, id string, captions project.Captions) error {
	return s.saveExtra(ctx, id, "save captions", "captions_json", captions)
}

// SaveMetrics stores processing metrics.
func (s *Store) SaveMetrics(ctx context.Context, id string, metrics project.Metrics) error {
	return s.saveExtra(ctx, id, "save metrics", "metrics_json", metrics)
}

func (s *Store) saveExtra(ctx context.Context, id, op, column string, value any) error {
	ctx = ensureContext(ctx)
	payload, err := marshalColumn(value)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx, "UPDATE projects SET "+column+" = ?, updated_at = ? WHERE id = ?", payload, s.timestamp(), id)
	if err != nil {
		return persistenceErr(op, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", op, "project "+id+" not found", nil)
	}
	return nil
}

// completeJob writes payload into column and moves job from running to
// completed. Both happen or neither does.
func (s *Store) completeJob(ctx context.Context, tx *sql.Tx, id string, job project.Job, column, payload string) error {
	var projectStatus, jobStatus string
	err := tx.QueryRowContext(ctx, `SELECT p.status, j.status FROM projects p
        JOIN project_jobs j ON j.project_id = p.id WHERE p.id = ? AND j.job = ?`, id, string(job)).
		Scan(&projectStatus, &jobStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "store", "complete job", "project "+id+" not found", nil)
	}
	if err != nil {
		return err
	}
	if project.Status(projectStatus) != project.StatusProcessing {
		return services.Wrap(services.ErrConflict, "store", "complete job", fmt.Sprintf("project %s is %s", id, projectStatus), nil)
	}
	if project.JobStatus(jobStatus) != project.JobRunning {
		return services.Wrap(services.ErrConflict, "store", "complete job", fmt.Sprintf("%s is %s, not running", job, jobStatus), nil)
	}

	now := formatTime(s.now())
	if _, err := tx.ExecContext(ctx, "UPDATE projects SET "+column+" = ?, updated_at = ? WHERE id = ?", payload, now, id); err != nil {
		return err
	}
	return updateJobRow(ctx, tx, id, job, project.JobRunning, project.JobCompleted, now)
}
