package api

import (
	"time"

	"podcastflow/internal/project"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ProjectView is the project document returned to its owner.
type ProjectView struct {
	*project.Project
	Progress ProjectProgress `json:"progress"`
}

// ProjectProgress summarizes job status per phase.
type ProjectProgress struct {
	Transcription project.PhaseStatus `json:"transcription"`
	Generation    project.PhaseStatus `json:"generation"`
}

// ProjectListResponse is one page of the caller's projects.
type ProjectListResponse struct {
	Projects   []ProjectView `json:"projects"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	FileURL      string   `json:"fileUrl" validate:"required,url"`
	FileName     string   `json:"fileName" validate:"required"`
	FileSize     int64    `json:"fileSize" validate:"gte=0"`
	MIMEType     string   `json:"mimeType"`
	FileDuration *float64 `json:"fileDuration,omitempty" validate:"omitempty,gte=0"`
}

// CreateProjectResponse acknowledges a new project.
type CreateProjectResponse struct {
	ProjectID string       `json:"projectId"`
	Estimate  EstimateView `json:"estimate"`
}

// EstimateView is a processing-time estimate in seconds with a readable range.
type EstimateView struct {
	BestCase     int64  `json:"bestCase"`
	Conservative int64  `json:"conservative"`
	Average      int64  `json:"average"`
	Formatted    string `json:"formatted"`
}

// UploadResponse describes a stored upload.
type UploadResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// RealtimeTokenResponse carries a subscription token.
type RealtimeTokenResponse struct {
	Token     string   `json:"token"`
	Channel   string   `json:"channel"`
	Topics    []string `json:"topics"`
	ExpiresAt string   `json:"expiresAt"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running       bool           `json:"running"`
	StartedAt     string         `json:"startedAt,omitempty"`
	ActiveRuns    []string       `json:"activeRuns"`
	LastProjectID string         `json:"lastProjectId,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	ProjectStats  map[string]int `json:"projectStats"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Uptime       string         `json:"uptime,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
	Transports   []string       `json:"transports"`
}

// NotificationTestResponse reports the outcome of a test notification.
type NotificationTestResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
