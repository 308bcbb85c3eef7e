package api

import (
	"podcastflow/internal/estimate"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
	"podcastflow/internal/workflow"
)

// FromProject converts a project record to its API representation.
func FromProject(p *project.Project) ProjectView {
	if p == nil {
		return ProjectView{}
	}
	return ProjectView{
		Project: p,
		Progress: ProjectProgress{
			Transcription: p.JobStatus.TranscriptionPhase(),
			Generation:    p.JobStatus.GenerationPhase(),
		},
	}
}

// FromProjects converts a slice of project records. The result is never nil.
func FromProjects(projects []*project.Project) []ProjectView {
	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		if p == nil {
			continue
		}
		out = append(out, FromProject(p))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.ProjectStats))
	for status, count := range summary.ProjectStats {
		stats[string(status)] = count
	}
	active := summary.ActiveRuns
	if active == nil {
		active = []string{}
	}
	dto := WorkflowStatus{
		Running:       summary.Running,
		ActiveRuns:    active,
		LastProjectID: summary.LastProjectID,
		LastError:     summary.LastError,
		ProjectStats:  stats,
	}
	if summary.StartedAt != nil {
		dto.StartedAt = formatTime(*summary.StartedAt)
	}
	return dto
}

// FromEstimate converts an estimate and adds its readable range.
func FromEstimate(e estimate.Estimate) EstimateView {
	return EstimateView{
		BestCase:     e.BestCase,
		Conservative: e.Conservative,
		Average:      e.Average,
		Formatted:    estimate.FormatTimeRange(e.BestCase, e.Conservative),
	}
}

// FromToken converts an issued subscription token.
func FromToken(tok realtime.Token) RealtimeTokenResponse {
	return RealtimeTokenResponse{
		Token:     tok.Token,
		Channel:   tok.Channel,
		Topics:    tok.Topics,
		ExpiresAt: formatTime(tok.ExpiresAt),
	}
}
