package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListOptions filters and pages ListProjectsByUser.
type ListOptions struct {
	Limit  int
	Cursor string
	Status project.Status
}

// Page is one page of projects, newest first.
type Page struct {
	Projects   []*project.Project `json:"projects"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateProject inserts a project in status uploaded with every job pending.
func (s *Store) CreateProject(ctx context.Context, input project.NewProject) (*project.Project, error) {
	ctx = ensureContext(ctx)
	input.UserID = strings.TrimSpace(input.UserID)
	input.InputURL = strings.TrimSpace(input.InputURL)
	input.FileName = strings.TrimSpace(input.FileName)
	switch {
	case input.UserID == "":
		return nil, services.Wrap(services.ErrValidation, "store", "create project", "user id is required", nil)
	case input.InputURL == "":
		return nil, services.Wrap(services.ErrValidation, "store", "create project", "file url is required", nil)
	case input.FileName == "":
		return nil, services.Wrap(services.ErrValidation, "store", "create project", "file name is required", nil)
	case input.FileSize < 0:
		return nil, services.Wrap(services.ErrValidation, "store", "create project", "file size must not be negative", nil)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := s.timestamp()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM projects WHERE id = ?", id).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return services.Wrap(services.ErrConflict, "store", "create project", "project "+id+" already exists", nil)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO projects (
            id, user_id, input_url, file_name, file_size, file_duration, file_format, mime_type,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			input.UserID,
			input.InputURL,
			input.FileName,
			input.FileSize,
			nullableFloat(input.FileDuration),
			project.FileFormat(input.FileName),
			project.NormalizeMIMEType(input.MIMEType),
			string(project.StatusUploaded),
			now,
			now,
		); err != nil {
			return err
		}
		for _, job := range project.AllJobs() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO project_jobs (project_id, job, status, updated_at) VALUES (?, ?, ?, ?)",
				id, string(job), string(project.JobPending), now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistenceErr("create project", err)
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a project by id. It returns nil, nil when absent.
func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("get project", err)
	}
	if err := loadJobStatuses(ctx, s.db, []*project.Project{p}); err != nil {
		return nil, persistenceErr("get project", err)
	}
	return p, nil
}

// ListProjectsByUser returns the user's projects newest first.
func (s *Store) ListProjectsByUser(ctx context.Context, userID string, opts ListOptions) (Page, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Page{}, services.Wrap(services.ErrValidation, "store", "list projects", "user id is required", nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := "SELECT " + projectColumns + " FROM projects WHERE user_id = ?"
	args := []any{userID}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if strings.TrimSpace(opts.Cursor) != "" {
		createdAt, id, err := decodeCursor(opts.Cursor)
		if err != nil {
			return Page{}, err
		}
		query += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		args = append(args, createdAt, createdAt, id)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit+1)

	projects, err := s.queryProjects(ctx, query, args...)
	if err != nil {
		return Page{}, persistenceErr("list projects", err)
	}

	page := Page{Projects: projects}
	if len(projects) > limit {
		page.Projects = projects[:limit]
		last := page.Projects[limit-1]
		page.NextCursor = encodeCursor(formatTime(last.CreatedAt), last.ID)
	}
	if page.Projects == nil {
		page.Projects = []*project.Project{}
	}
	return page, nil
}

// ListByStatus returns up to limit projects in status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status project.Status, limit int) ([]*project.Project, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = defaultPageSize
	}
	projects, err := s.queryProjects(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?",
		string(status), limit,
	)
	if err != nil {
		return nil, persistenceErr("list by status", err)
	}
	return projects, nil
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]*project.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadJobStatuses(ctx, s.db, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func loadJobStatuses(ctx context.Context, q queryer, projects []*project.Project) error {
	if len(projects) == 0 {
		return nil
	}
	byID := make(map[string]*project.Project, len(projects))
	args := make([]any, 0, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
		args = append(args, p.ID)
	}
	rows, err := q.QueryContext(ctx,
		"SELECT project_id, job, status FROM project_jobs WHERE project_id IN ("+makePlaceholders(len(args))+")",
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, job, status string
		if err := rows.Scan(&id, &job, &status); err != nil {
			return err
		}
		if p, ok := byID[id]; ok {
			p.JobStatus[project.Job(job)] = project.JobStatus(status)
		}
	}
	return rows.Err()
}
