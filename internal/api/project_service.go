package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"podcastflow/internal/blob"
	"podcastflow/internal/estimate"
	"podcastflow/internal/logging"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
	"podcastflow/internal/services"
	"podcastflow/internal/store"
	"podcastflow/internal/trigger"
)

// ProjectStore abstracts the persistence calls the API needs.
type ProjectStore interface {
	CreateProject(ctx context.Context, input project.NewProject) (*project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjectsByUser(ctx context.Context, userID string, opts store.ListOptions) (store.Page, error)
}

// Uploader stores user media.
type Uploader interface {
	Upload(ctx context.Context, userID, fileName, contentType string, size int64, body io.Reader) (blob.Object, error)
}

// TokenIssuer signs realtime subscription tokens.
type TokenIssuer interface {
	Issue(userID, projectID string) (realtime.Token, error)
}

// ProjectService exposes the project operations of the HTTP API.
type ProjectService struct {
	store   ProjectStore
	uploads Uploader
	emitter trigger.Emitter
	tokens  TokenIssuer
	logger  *slog.Logger
}

// NewProjectService constructs a service. uploads, emitter and tokens may
// be nil; the matching operations then report a configuration error or, for
// the emitter, rely on the workflow poller.
func NewProjectService(st ProjectStore, uploads Uploader, emitter trigger.Emitter, tokens TokenIssuer, logger *slog.Logger) *ProjectService {
	if st == nil {
		return nil
	}
	return &ProjectService{
		store:   st,
		uploads: uploads,
		emitter: emitter,
		tokens:  tokens,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
}

// Upload stores a media file for userID.
func (s *ProjectService) Upload(ctx context.Context, userID, fileName, contentType string, size int64, body io.Reader) (UploadResponse, error) {
	if err := requireUser(userID, "upload"); err != nil {
		return UploadResponse{}, err
	}
	if s.uploads == nil {
		return UploadResponse{}, services.Wrap(services.ErrConfiguration, "api", "upload", "blob storage not configured", nil)
	}
	obj, err := s.uploads.Upload(ctx, userID, fileName, contentType, size, body)
	if err != nil {
		return UploadResponse{}, err
	}
	return UploadResponse{URL: obj.URL, Pathname: obj.Key, Size: obj.Size, ContentType: obj.ContentType}, nil
}

// Create records a new project in status uploaded and emits its upload
// event. An emit failure is logged only: the workflow poller still finds
// the project.
func (s *ProjectService) Create(ctx context.Context, userID string, req CreateProjectRequest) (CreateProjectResponse, error) {
	if err := requireUser(userID, "create project"); err != nil {
		return CreateProjectResponse{}, err
	}
	req.FileURL = strings.TrimSpace(req.FileURL)
	req.FileName = strings.TrimSpace(req.FileName)
	if err := services.ValidateStruct("api", req); err != nil {
		return CreateProjectResponse{}, err
	}
	if err := checkDeclaredMedia(req.FileSize, req.MIMEType); err != nil {
		return CreateProjectResponse{}, err
	}

	p, err := s.store.CreateProject(ctx, project.NewProject{
		UserID:       userID,
		InputURL:     req.FileURL,
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		FileDuration: req.FileDuration,
		MIMEType:     req.MIMEType,
	})
	if err != nil {
		return CreateProjectResponse{}, fmt.Errorf("api: create project: %w", err)
	}

	ctx = services.WithProjectID(ctx, p.ID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("project created",
		logging.String(logging.FieldEventType, "project_created"),
		logging.String("file_name", p.FileName),
		logging.Int64("file_size", p.FileSize),
	)
	if s.emitter != nil {
		if err := s.emitter.Emit(ctx, trigger.EventFromProject(p)); err != nil {
			logging.WarnWithContext(logger, "upload event not emitted", "trigger_emit_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "project starts on the next poll instead"),
			)
		}
	}

	return CreateProjectResponse{
		ProjectID: p.ID,
		Estimate:  FromEstimate(estimate.ForUpload(req.FileDuration, req.FileSize)),
	}, nil
}

// List returns one page of the caller's projects, newest first.
func (s *ProjectService) List(ctx context.Context, userID string, limit int, cursor, status string) (ProjectListResponse, error) {
	if err := requireUser(userID, "list projects"); err != nil {
		return ProjectListResponse{}, err
	}
	opts := store.ListOptions{Limit: limit, Cursor: cursor}
	if status = strings.TrimSpace(status); status != "" {
		parsed, ok := project.ParseStatus(status)
		if !ok {
			return ProjectListResponse{}, services.Wrap(services.ErrValidation, "api", "list projects",
				fmt.Sprintf("unknown status %q", status), nil)
		}
		opts.Status = parsed
	}
	page, err := s.store.ListProjectsByUser(ctx, userID, opts)
	if err != nil {
		return ProjectListResponse{}, err
	}
	return ProjectListResponse{Projects: FromProjects(page.Projects), NextCursor: page.NextCursor}, nil
}

// Describe returns a project owned by userID.
func (s *ProjectService) Describe(ctx context.Context, userID, projectID string) (ProjectView, error) {
	p, err := s.owned(ctx, userID, projectID, "get project")
	if err != nil {
		return ProjectView{}, err
	}
	return FromProject(p), nil
}

// RealtimeToken issues a subscription token for a project owned by userID.
func (s *ProjectService) RealtimeToken(ctx context.Context, userID, projectID string) (RealtimeTokenResponse, error) {
	if s.tokens == nil {
		return RealtimeTokenResponse{}, services.Wrap(services.ErrConfiguration, "api", "realtime token", "token issuer not configured", nil)
	}
	if _, err := s.owned(ctx, userID, projectID, "realtime token"); err != nil {
		return RealtimeTokenResponse{}, err
	}
	tok, err := s.tokens.Issue(userID, projectID)
	if err != nil {
		return RealtimeTokenResponse{}, err
	}
	return FromToken(tok), nil
}

// owned applies the 401, 400, 404, 403 checks in that order.
func (s *ProjectService) owned(ctx context.Context, userID, projectID, op string) (*project.Project, error) {
	if err := requireUser(userID, op); err != nil {
		return nil, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, services.Wrap(services.ErrValidation, "api", op, "projectId is required", nil)
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("api: %s: %w", op, err)
	}
	if p == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", op, "project not found", nil)
	}
	if p.UserID != userID {
		return nil, services.Wrap(services.ErrForbidden, "api", op, "project belongs to another user", nil)
	}
	return p, nil
}

func requireUser(userID, op string) error {
	if strings.TrimSpace(userID) == "" {
		return services.Wrap(services.ErrUnauthorized, "api", op, "authentication required", nil)
	}
	return nil
}

// checkDeclaredMedia applies the upload rules to the size and type a client
// declares for an already stored file. A zero size or empty type means
// unknown and passes.
func checkDeclaredMedia(size int64, mimeType string) error {
	if size > project.MaxFileSize {
		return services.Wrap(services.ErrValidation, "api", "create project",
			fmt.Sprintf("fileSize %d exceeds limit of %d bytes", size, project.MaxFileSize), nil)
	}
	if strings.TrimSpace(mimeType) != "" && !project.IsAllowedMIMEType(mimeType) {
		return services.Wrap(services.ErrValidation, "api", "create project",
			fmt.Sprintf("unsupported mimeType %q", project.NormalizeMIMEType(mimeType)), nil)
	}
	return nil
}

// IsClientError reports whether err should be shown to the caller verbatim.
func IsClientError(err error) bool {
	return errors.Is(err, services.ErrValidation) ||
		errors.Is(err, services.ErrUnauthorized) ||
		errors.Is(err, services.ErrForbidden) ||
		errors.Is(err, services.ErrNotFound) ||
		errors.Is(err, services.ErrConflict)
}
