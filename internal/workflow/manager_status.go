package workflow

import (
	"context"
	"slices"
	"time"

	"podcastflow/internal/logging"
	"podcastflow/internal/project"
)

// StatusSummary is lightweight workflow diagnostics for the status route and
// CLI.
type StatusSummary struct {
	Running       bool                   `json:"running"`
	StartedAt     *time.Time             `json:"startedAt,omitempty"`
	ActiveRuns    []string               `json:"activeRuns"`
	LastProjectID string                 `json:"lastProjectId,omitempty"`
	LastError     string                 `json:"lastError,omitempty"`
	ProjectStats  map[project.Status]int `json:"projectStats"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	started := m.startedAt
	lastErr := m.lastErr
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read project stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, ProjectStats: stats, ActiveRuns: []string{}}
	if running {
		summary.StartedAt = &started
	}
	if m.orchestrator != nil {
		summary.ActiveRuns = m.orchestrator.ActiveRuns()
		slices.Sort(summary.ActiveRuns)
		lastProject, runErr := m.orchestrator.lastRun()
		summary.LastProjectID = lastProject
		if runErr != nil {
			summary.LastError = runErr.Error()
		}
	}
	if lastErr != nil && summary.LastError == "" {
		summary.LastError = lastErr.Error()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
