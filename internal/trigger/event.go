package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// UploadEvent announces a completed upload.
type UploadEvent struct {
	ProjectID    string   `json:"projectId" validate:"required"`
	FileURL      string   `json:"fileUrl" validate:"required"`
	UserID       string   `json:"userId" validate:"required"`
	FileName     string   `json:"fileName" validate:"required"`
	FileSize     int64    `json:"fileSize" validate:"gte=0"`
	MIMEType     string   `json:"mimeType"`
	FileDuration *float64 `json:"fileDuration,omitempty"`
}

// Validate reports missing identity or input fields as ErrValidation.
func (e UploadEvent) Validate() error {
	return services.ValidateStruct("trigger", e)
}

// NewProject converts the event into the store's creation input.
func (e UploadEvent) NewProject() project.NewProject {
	return project.NewProject{
		ID:           e.ProjectID,
		UserID:       e.UserID,
		InputURL:     e.FileURL,
		FileName:     e.FileName,
		FileSize:     e.FileSize,
		FileDuration: e.FileDuration,
		MIMEType:     e.MIMEType,
	}
}

// EventFromProject rebuilds the trigger event for a persisted project.
func EventFromProject(p *project.Project) UploadEvent {
	if p == nil {
		return UploadEvent{}
	}
	return UploadEvent{
		ProjectID:    p.ID,
		FileURL:      p.InputURL,
		UserID:       p.UserID,
		FileName:     p.FileName,
		FileSize:     p.FileSize,
		MIMEType:     p.MIMEType,
		FileDuration: p.FileDuration,
	}
}

// DecodeEvent parses and validates a JSON-encoded event.
func DecodeEvent(data []byte) (UploadEvent, error) {
	var event UploadEvent
	if len(strings.TrimSpace(string(data))) == 0 {
		return event, services.Wrap(services.ErrValidation, "trigger", "decode", "empty event payload", nil)
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return event, services.Wrap(services.ErrValidation, "trigger", "decode", "malformed event payload", err)
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

// Handler consumes upload events. HandleUpload must be idempotent.
type Handler interface {
	HandleUpload(ctx context.Context, event UploadEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event UploadEvent) error

// HandleUpload calls f.
func (f HandlerFunc) HandleUpload(ctx context.Context, event UploadEvent) error {
	return f(ctx, event)
}

// Emitter announces upload events after the project record exists.
type Emitter interface {
	Emit(ctx context.Context, event UploadEvent) error
}

// MultiEmitter forwards events to every emitter and joins their errors.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(ctx context.Context, event UploadEvent) error {
	var errs []error
	for _, emitter := range m {
		if emitter == nil {
			continue
		}
		if err := emitter.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
