package workflow

import (
	"context"
	"time"

	"podcastflow/internal/blob"
	"podcastflow/internal/project"
)

// Store is the persistence surface the workflow needs. *store.Store
// implements it.
type Store interface {
	CreateProject(ctx context.Context, input project.NewProject) (*project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status project.Status) error
	UpdateJobStatus(ctx context.Context, id string, job project.Job, status project.JobStatus) error
	SaveTranscript(ctx context.Context, id string, transcript *project.Transcript) error
	SaveJobResult(ctx context.Context, id string, job project.Job, artifact any) error
	SaveGeneratedContent(ctx context.Context, id string, bundle project.Bundle) error
	SaveCaptions(ctx context.Context, id string, captions project.Captions) error
	SaveMetrics(ctx context.Context, id string, metrics project.Metrics) error
	FailProject(ctx context.Context, id string, failure project.Failure) error
	Touch(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status project.Status, limit int) ([]*project.Project, error)
	ClaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
	Stats(ctx context.Context) (map[project.Status]int, error)
}

// CaptionWriter stores rendered SRT captions. *blob.Store implements it.
type CaptionWriter interface {
	PutCaptions(ctx context.Context, projectID, srt string) (blob.Object, error)
}
