package api

import (
	"encoding/json"
	"testing"
	"time"

	"podcastflow/internal/project"
	"podcastflow/internal/workflow"
)

func TestFromStatusSummary(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	dto := FromStatusSummary(workflow.StatusSummary{
		Running:       true,
		StartedAt:     &started,
		LastProjectID: "p-1",
		ProjectStats:  map[project.Status]int{project.StatusCompleted: 4, project.StatusFailed: 1},
	})
	if dto.StartedAt != "2024-03-01T08:30:00.000Z" {
		t.Fatalf("unexpected startedAt %q", dto.StartedAt)
	}
	if dto.ProjectStats["completed"] != 4 || dto.ProjectStats["failed"] != 1 {
		t.Fatalf("unexpected stats %+v", dto.ProjectStats)
	}
	if dto.ActiveRuns == nil {
		t.Fatal("active runs must encode as an empty list")
	}
}

func TestFromProjectFlattensDocument(t *testing.T) {
	statuses := project.NewJobStatuses()
	statuses[project.JobTranscription] = project.JobCompleted
	statuses[project.JobSummary] = project.JobRunning
	view := FromProject(&project.Project{ID: "p-1", UserID: "u", Status: project.StatusProcessing, JobStatus: statuses})

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["id"] != "p-1" || decoded["status"] != "processing" {
		t.Fatalf("expected project fields at top level, got %s", raw)
	}
	progress, ok := decoded["progress"].(map[string]any)
	if !ok {
		t.Fatalf("missing progress in %s", raw)
	}
	if progress["transcription"] != "completed" || progress["generation"] != "running" {
		t.Fatalf("unexpected progress %v", progress)
	}
}
