package project_test

import (
	"testing"

	"podcastflow/internal/project"
)

func TestDeriveAggregateStatus(t *testing.T) {
	cases := []struct {
		name string
		in   []project.JobStatus
		want project.PhaseStatus
	}{
		{"empty", nil, project.PhasePending},
		{"all pending", []project.JobStatus{project.JobPending, project.JobPending}, project.PhasePending},
		{"one running", []project.JobStatus{project.JobPending, project.JobRunning}, project.PhaseRunning},
		{"partially complete", []project.JobStatus{project.JobCompleted, project.JobPending}, project.PhaseRunning},
		{"all complete", []project.JobStatus{project.JobCompleted, project.JobCompleted}, project.PhaseCompleted},
		{"complete and skipped", []project.JobStatus{project.JobCompleted, project.JobSkipped}, project.PhaseCompleted},
		{"any failed", []project.JobStatus{project.JobCompleted, project.JobFailed, project.JobRunning}, project.PhaseFailed},
		{"unknown treated as pending", []project.JobStatus{""}, project.PhasePending},
	}
	for _, tc := range cases {
		if got := project.DeriveAggregateStatus(tc.in...); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestTransitionsOnlyMoveForward(t *testing.T) {
	allowed := [][2]project.Status{
		{project.StatusUploaded, project.StatusProcessing},
		{project.StatusProcessing, project.StatusCompleted},
		{project.StatusProcessing, project.StatusFailed},
	}
	for _, pair := range allowed {
		if !project.CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]project.Status{
		{project.StatusUploaded, project.StatusCompleted},
		{project.StatusCompleted, project.StatusProcessing},
		{project.StatusFailed, project.StatusProcessing},
		{project.StatusProcessing, project.StatusUploaded},
		{project.StatusCompleted, project.StatusFailed},
	}
	for _, pair := range denied {
		if project.CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}

	if !project.CanTransitionJob(project.JobPending, project.JobRunning) ||
		!project.CanTransitionJob(project.JobRunning, project.JobCompleted) ||
		!project.CanTransitionJob(project.JobRunning, project.JobFailed) ||
		!project.CanTransitionJob(project.JobPending, project.JobSkipped) {
		t.Fatal("expected forward job transitions to be allowed")
	}
	if project.CanTransitionJob(project.JobPending, project.JobCompleted) {
		t.Fatal("job must pass through running")
	}
	if project.CanTransitionJob(project.JobCompleted, project.JobRunning) {
		t.Fatal("job must not move backward")
	}
}

func TestJobStatusesPhases(t *testing.T) {
	statuses := project.NewJobStatuses()
	if len(statuses) != 7 {
		t.Fatalf("expected 7 jobs, got %d", len(statuses))
	}
	if statuses.TranscriptionPhase() != project.PhasePending || statuses.GenerationPhase() != project.PhasePending {
		t.Fatal("expected pending phases for new project")
	}
	statuses[project.JobTranscription] = project.JobCompleted
	statuses[project.JobSummary] = project.JobRunning
	if statuses.TranscriptionPhase() != project.PhaseCompleted {
		t.Fatal("expected transcription completed")
	}
	if statuses.GenerationPhase() != project.PhaseRunning {
		t.Fatal("expected generation running")
	}
}

func TestJobOrderAndParse(t *testing.T) {
	jobs := project.GenerationJobs()
	if len(jobs) != 6 || jobs[0] != project.JobKeyMoments || jobs[5] != project.JobYouTubeTimestamps {
		t.Fatalf("unexpected generation order %v", jobs)
	}
	if project.JobOrder(project.JobTranscription) != 0 || project.JobOrder("bogus") != -1 {
		t.Fatal("unexpected job order")
	}
	if job, ok := project.ParseJob("YOUTUBETIMESTAMPS"); !ok || job != project.JobYouTubeTimestamps {
		t.Fatalf("unexpected parse result %q %v", job, ok)
	}
}
