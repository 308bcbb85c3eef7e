package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// UpdateProjectStatus moves a project to status when its current status is an
// allowed predecessor. Entering processing starts the heartbeat; entering
// completed requires every generation job to be done and stamps completedAt.
// Failures go through FailProject so the error slot is written alongside.
func (s *Store) UpdateProjectStatus(ctx context.Context, id string, status project.Status) error {
	ctx = ensureContext(ctx)
	const op = "update project status"

	predecessors := project.StatusPredecessors(status)
	if status == project.StatusFailed {
		return services.Wrap(services.ErrValidation, "store", op, "failed status requires an error; use FailProject", nil)
	}
	if len(predecessors) == 0 {
		return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("status %q cannot be entered", status), nil)
	}

	now := s.timestamp()
	args := []any{string(status), now}
	query := "UPDATE projects SET status = ?, updated_at = ?"
	switch status {
	case project.StatusProcessing:
		query += ", last_heartbeat = ?"
		args = append(args, now)
	case project.StatusCompleted:
		query += ", completed_at = COALESCE(completed_at, ?), last_heartbeat = NULL"
		args = append(args, now)
	}
	query += " WHERE id = ? AND status IN (" + makePlaceholders(len(predecessors)) + ")"
	args = append(args, id)
	args = append(args, statusArgs(predecessors)...)

	if status == project.StatusCompleted {
		generation := project.GenerationJobs()
		query += " AND transcript_json IS NOT NULL AND NOT EXISTS (SELECT 1 FROM project_jobs WHERE project_jobs.project_id = projects.id AND project_jobs.job IN (" +
			makePlaceholders(len(generation)) + ") AND project_jobs.status NOT IN (?, ?))"
		args = append(args, statusArgs(generation)...)
		args = append(args, string(project.JobCompleted), string(project.JobSkipped))
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return persistenceErr(op, err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	return s.explainProjectMiss(ctx, id, op, status)
}

// UpdateJobStatus moves one job forward. Writing the job's current status
// again is a no-op. The project must be processing. A generation job may not
// start before the transcript is persisted, and no job may complete without
// its result.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, job project.Job, status project.JobStatus) error {
	ctx = ensureContext(ctx)
	const op = "update job status"

	if project.JobOrder(job) < 0 {
		return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("unknown job %q", job), nil)
	}
	if len(project.JobStatusPredecessors(status)) == 0 {
		return services.Wrap(services.ErrValidation, "store", op, fmt.Sprintf("job status %q cannot be entered", status), nil)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			projectStatus string
			current       string
			hasTranscript bool
			hasResult     bool
		)
		resultColumn := "transcript_json"
		if column, ok := resultColumns[job]; ok {
			resultColumn = column
		}
		row := tx.QueryRowContext(ctx, `SELECT p.status, j.status, p.transcript_json IS NOT NULL, p.`+resultColumn+` IS NOT NULL
            FROM projects p JOIN project_jobs j ON j.project_id = p.id
            WHERE p.id = ? AND j.job = ?`, id, string(job))
		if err := row.Scan(&projectStatus, &current, &hasTranscript, &hasResult); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "store", op, "project "+id+" not found", nil)
			}
			return err
		}

		if project.JobStatus(current) == status {
			return nil
		}
		if project.Status(projectStatus) != project.StatusProcessing {
			return services.Wrap(services.ErrConflict, "store", op,
				fmt.Sprintf("project %s is %s", id, projectStatus), nil)
		}
		if !project.CanTransitionJob(project.JobStatus(current), status) {
			return services.Wrap(services.ErrConflict, "store", op,
				fmt.Sprintf("%s cannot move from %s to %s", job, current, status), nil)
		}
		if job != project.JobTranscription && status == project.JobRunning && !hasTranscript {
			return services.Wrap(services.ErrConflict, "store", op,
				fmt.Sprintf("%s cannot start before the transcript is saved", job), nil)
		}
		if status == project.JobCompleted && !hasResult {
			return services.Wrap(services.ErrConflict, "store", op,
				fmt.Sprintf("%s cannot complete without a result", job), nil)
		}
		return updateJobRow(ctx, tx, id, job, project.JobStatus(current), status, formatTime(s.now()))
	})
	if err != nil {
		return persistenceErr(op, err)
	}
	return nil
}

// FailProject records failure and moves the project to failed. It applies
// only to processing projects without an error, so the first failure wins.
func (s *Store) FailProject(ctx context.Context, id string, failure project.Failure) error {
	ctx = ensureContext(ctx)
	const op = "fail project"

	message := strings.TrimSpace(failure.Message)
	if message == "" {
		message = "unknown error"
	}
	ts := failure.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	var statusCode any
	if failure.Details != nil && failure.Details.StatusCode > 0 {
		statusCode = failure.Details.StatusCode
	}

	res, err := s.execWithRetry(ctx, `UPDATE projects
        SET status = ?, error_message = ?, error_step = ?, error_timestamp = ?, error_status_code = ?,
            updated_at = ?, last_heartbeat = NULL
        WHERE id = ? AND status = ? AND error_message IS NULL`,
		string(project.StatusFailed),
		message,
		strings.TrimSpace(failure.Step),
		formatTime(ts),
		statusCode,
		s.timestamp(),
		id,
		string(project.StatusProcessing),
	)
	if err != nil {
		return persistenceErr(op, err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	return s.explainProjectMiss(ctx, id, op, project.StatusFailed)
}

func updateJobRow(ctx context.Context, tx *sql.Tx, id string, job project.Job, from, to project.JobStatus, now string) error {
	query := "UPDATE project_jobs SET status = ?, updated_at = ?"
	args := []any{string(to), now}
	switch {
	case to == project.JobRunning:
		query += ", started_at = ?"
		args = append(args, now)
	case to.IsTerminal():
		query += ", finished_at = ?"
		args = append(args, now)
	}
	query += " WHERE project_id = ? AND job = ? AND status = ?"
	args = append(args, id, string(job), string(from))

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return services.Wrap(services.ErrConflict, "store", "update job status",
			fmt.Sprintf("%s is no longer %s", job, from), nil)
	}
	_, err = tx.ExecContext(ctx, "UPDATE projects SET updated_at = ? WHERE id = ?", now, id)
	return err
}

// explainProjectMiss turns a compare-and-set that touched no rows into
// ErrNotFound or ErrConflict.
func (s *Store) explainProjectMiss(ctx context.Context, id, op string, target project.Status) error {
	var current string
	err := s.db.QueryRowContext(ctx, "SELECT status FROM projects WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "store", op, "project "+id+" not found", nil)
	}
	if err != nil {
		return persistenceErr(op, err)
	}
	return services.Wrap(services.ErrConflict, "store", op,
		fmt.Sprintf("project %s cannot move from %s to %s", id, current, target), nil)
}
