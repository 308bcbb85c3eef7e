package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// Touch refreshes the heartbeat of a processing project. It returns
// ErrConflict once the project has left processing.
func (s *Store) Touch(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		"UPDATE projects SET last_heartbeat = ? WHERE id = ? AND status = ?",
		s.timestamp(), id, string(project.StatusProcessing),
	)
	if err != nil {
		return persistenceErr("touch", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.explainProjectMiss(ctx, id, "touch", project.StatusProcessing)
	}
	return nil
}

// ClaimStale returns processing projects whose heartbeat is older than cutoff
// and refreshes their heartbeat so concurrent callers do not claim the same run.
func (s *Store) ClaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	ctx = ensureContext(ctx)
	cutoffStr := formatTime(cutoff)

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM projects
        WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)
        ORDER BY created_at ASC`,
		string(project.StatusProcessing), cutoffStr,
	)
	if err != nil {
		return nil, persistenceErr("claim stale", err)
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, persistenceErr("claim stale", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, persistenceErr("claim stale", err)
	}
	rows.Close()

	claimed := make([]string, 0, len(candidates))
	for _, id := range candidates {
		res, err := s.execWithRetry(ctx, `UPDATE projects SET last_heartbeat = ?
            WHERE id = ? AND status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			s.timestamp(), id, string(project.StatusProcessing), cutoffStr,
		)
		if err != nil {
			return claimed, persistenceErr("claim stale", err)
		}
		if affected, _ := res.RowsAffected(); affected == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

// Stats counts projects by status.
func (s *Store) Stats(ctx context.Context) (map[project.Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM projects GROUP BY status")
	if err != nil {
		return nil, persistenceErr("stats", err)
	}
	defer rows.Close()

	stats := make(map[project.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, persistenceErr("stats", err)
		}
		stats[project.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("stats", err)
	}
	return stats, nil
}

// ProjectOwner returns the user id owning project id.
func (s *Store) ProjectOwner(ctx context.Context, id string) (string, error) {
	ctx = ensureContext(ctx)
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM projects WHERE id = ?", id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", services.Wrap(services.ErrNotFound, "store", "project owner", "project "+id+" not found", nil)
		}
		return "", persistenceErr("project owner", err)
	}
	return owner, nil
}
