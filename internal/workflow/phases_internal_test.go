package workflow

import (
	"errors"
	"testing"
	"time"

	"podcastflow/internal/project"
)

func TestFirstFailureOrdersByTimeThenJob(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	tests := []struct {
		name     string
		failures []taskOutcome
		want     project.Job
	}{
		{
			name: "earliest wins",
			failures: []taskOutcome{
				{job: project.JobKeyMoments, err: boom, at: base.Add(2 * time.Second)},
				{job: project.JobHashtags, err: boom, at: base},
			},
			want: project.JobHashtags,
		},
		{
			name: "tie uses canonical order",
			failures: []taskOutcome{
				{job: project.JobYouTubeTimestamps, err: boom, at: base},
				{job: project.JobTitles, err: boom, at: base},
				{job: project.JobSummary, err: boom, at: base},
			},
			want: project.JobSummary,
		},
		{
			name: "earlier run failure has zero time",
			failures: []taskOutcome{
				{job: project.JobKeyMoments, err: boom, at: base},
				{job: project.JobSocial, err: boom},
			},
			want: project.JobSocial,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := firstFailure(tc.failures).job; got != tc.want {
				t.Fatalf("firstFailure = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFailureMessageFallsBackToStep(t *testing.T) {
	if got := failureMessage("summary", errors.New("")); got != "summary failed" {
		t.Fatalf("failureMessage = %q", got)
	}
}
