package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
	"podcastflow/internal/store"
	"podcastflow/internal/testsupport"
)

func startProcessing(t *testing.T, st *store.Store, id string) {
	t.Helper()
	if err := st.UpdateProjectStatus(context.Background(), id, project.StatusProcessing); err != nil {
		t.Fatalf("UpdateProjectStatus(processing) failed: %v", err)
	}
}

func saveTranscript(t *testing.T, st *store.Store, id string) {
	t.Helper()
	ctx := context.Background()
	if err := st.UpdateJobStatus(ctx, id, project.JobTranscription, project.JobRunning); err != nil {
		t.Fatalf("UpdateJobStatus(transcription running) failed: %v", err)
	}
	if err := st.SaveTranscript(ctx, id, testsupport.SampleTranscript()); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
}

func sampleBundle() project.Bundle {
	return project.Bundle{
		KeyMoments: []project.KeyMoment{{Time: "00:00:00", Timestamp: 0, Text: "Introduction", Description: "Opening"}},
		Summary:    &project.Summary{Full: "A show.", Bullets: []string{"a"}, Insights: []string{"b"}, TLDR: "Short."},
		SocialPosts: &project.SocialPosts{
			Twitter: "t", LinkedIn: "l", Instagram: "i", TikTok: "k", YouTube: "y", Facebook: "f",
		},
		Titles:            &project.Titles{YouTubeShort: []string{"a", "b", "c"}},
		Hashtags:          &project.Hashtags{YouTube: []string{"#a"}},
		YouTubeTimestamps: []project.YouTubeTimestamp{{Timestamp: "0:00", Description: "Introduction"}},
	}
}

func TestCreateProjectDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, project.NewProject{
		UserID:   "user-1",
		InputURL: "https://files.test/episode.MP3",
		FileName: "Episode.MP3",
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if p.Status != project.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", p.Status)
	}
	if p.FileFormat != "mp3" {
		t.Fatalf("expected file format mp3, got %q", p.FileFormat)
	}
	if p.MIMEType != project.DefaultMIMEType {
		t.Fatalf("expected default mime type, got %q", p.MIMEType)
	}
	for _, job := range project.AllJobs() {
		if got := p.JobStatus[job]; got != project.JobPending {
			t.Fatalf("expected %s pending, got %q", job, got)
		}
	}
	if p.CreatedAt.IsZero() || !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt, got %v and %v", p.CreatedAt, p.UpdatedAt)
	}
	if p.Error != nil || p.CompletedAt != nil {
		t.Fatalf("unexpected terminal fields on new project: %#v", p)
	}
}

func TestCreateProjectValidationAndConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	invalid := []project.NewProject{
		{InputURL: "https://x", FileName: "a.mp3"},
		{UserID: "u", FileName: "a.mp3"},
		{UserID: "u", InputURL: "https://x"},
	}
	for i, input := range invalid {
		if _, err := st.CreateProject(ctx, input); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	input := project.NewProject{ID: "fixed-id", UserID: "u", InputURL: "https://x", FileName: "a.mp3"}
	if _, err := st.CreateProject(ctx, input); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if _, err := st.CreateProject(ctx, input); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for duplicate id, got %v", err)
	}
}

func TestGetProjectMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	p, err := st.GetProject(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil project, got %#v", p)
	}
}

func TestUpdateProjectStatusForwardOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")

	if err := st.UpdateProjectStatus(ctx, p.ID, project.StatusCompleted); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict skipping processing, got %v", err)
	}
	startProcessing(t, st, p.ID)
	if err := st.UpdateProjectStatus(ctx, p.ID, project.StatusProcessing); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected second claim to conflict, got %v", err)
	}
	if err := st.UpdateProjectStatus(ctx, p.ID, project.StatusUploaded); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error moving back to uploaded, got %v", err)
	}
	if err := st.UpdateProjectStatus(ctx, p.ID, project.StatusFailed); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for failed without error slot, got %v", err)
	}
	if err := st.UpdateProjectStatus(ctx, "missing", project.StatusProcessing); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// Generation jobs are still pending.
	if err := st.UpdateProjectStatus(ctx, p.ID, project.StatusCompleted); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict completing with pending jobs, got %v", err)
	}

	fetched, err := st.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if fetched.Status != project.StatusProcessing || fetched.LastHeartbeat == nil {
		t.Fatalf("expected processing with heartbeat, got %s %v", fetched.Status, fetched.LastHeartbeat)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")

	if err := st.UpdateJobStatus(ctx, p.ID, project.JobTranscription, project.JobRunning); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict while project uploaded, got %v", err)
	}
	startProcessing(t, st, p.ID)

	if err := st.UpdateJobStatus(ctx, p.ID, project.JobSummary, project.JobRunning); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected generation job to wait for transcript, got %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobTranscription, project.JobCompleted); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected pending->completed to conflict, got %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobTranscription, project.JobRunning); err != nil {
		t.Fatalf("pending->running failed: %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobTranscription, project.JobRunning); err != nil {
		t.Fatalf("repeated running write should be a no-op, got %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobTranscription, project.JobCompleted); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected completion without transcript to conflict, got %v", err)
	}
	if err := st.SaveTranscript(ctx, p.ID, testsupport.SampleTranscript()); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobTranscription, project.JobRunning); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected completed->running to conflict, got %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobSummary, project.JobRunning); err != nil {
		t.Fatalf("generation job should start after transcript: %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobSummary, project.JobFailed); err != nil {
		t.Fatalf("running->failed failed: %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.Job("captions"), project.JobRunning); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unknown job to be rejected, got %v", err)
	}

	fetched, err := st.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if fetched.Transcript == nil || len(fetched.Transcript.Chapters) != 2 {
		t.Fatalf("expected transcript with 2 chapters, got %#v", fetched.Transcript)
	}
	if fetched.JobStatus[project.JobTranscription] != project.JobCompleted {
		t.Fatalf("expected transcription completed, got %s", fetched.JobStatus[project.JobTranscription])
	}
	if fetched.JobStatus[project.JobSummary] != project.JobFailed {
		t.Fatalf("expected summary failed, got %s", fetched.JobStatus[project.JobSummary])
	}
	if got := fetched.JobStatus.GenerationPhase(); got != project.PhaseFailed {
		t.Fatalf("expected failed generation phase, got %s", got)
	}
}

func TestSaveJobResultRequiresRunningJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")
	startProcessing(t, st, p.ID)
	saveTranscript(t, st, p.ID)

	summary := &project.Summary{Full: "x", TLDR: "y"}
	if err := st.SaveJobResult(ctx, p.ID, project.JobSummary, summary); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for pending job, got %v", err)
	}
	if err := st.SaveJobResult(ctx, p.ID, project.JobSummary, &project.Titles{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for mismatched type, got %v", err)
	}
	if err := st.UpdateJobStatus(ctx, p.ID, project.JobSummary, project.JobRunning); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	if err := st.SaveJobResult(ctx, p.ID, project.JobSummary, summary); err != nil {
		t.Fatalf("SaveJobResult failed: %v", err)
	}
	if err := st.SaveJobResult(ctx, p.ID, project.JobSummary, summary); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected second result write to conflict, got %v", err)
	}

	fetched, _ := st.GetProject(ctx, p.ID)
	if fetched.Summary == nil || fetched.Summary.TLDR != "y" {
		t.Fatalf("expected summary persisted, got %#v", fetched.Summary)
	}
	if fetched.JobStatus[project.JobSummary] != project.JobCompleted {
		t.Fatalf("expected summary completed, got %s", fetched.JobStatus[project.JobSummary])
	}
}

func TestEmptyKeyMomentsRoundTripAsEmptyList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")
	startProcessing(t, st, p.ID)
	saveTranscript(t, st, p.ID)

	if err := st.UpdateJobStatus(ctx, p.ID, project.JobKeyMoments, project.JobRunning); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	if err := st.SaveJobResult(ctx, p.ID, project.JobKeyMoments, []project.KeyMoment{}); err != nil {
		t.Fatalf("SaveJobResult failed: %v", err)
	}
	fetched, _ := st.GetProject(ctx, p.ID)
	if fetched.KeyMoments == nil || len(fetched.KeyMoments) != 0 {
		t.Fatalf("expected empty non-nil key moments, got %#v", fetched.KeyMoments)
	}
	if !fetched.HasResult(project.JobKeyMoments) {
		t.Fatal("expected key moments result to be present")
	}
}

func TestCompleteRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")
	startProcessing(t, st, p.ID)
	saveTranscript(t, st, p.ID)

	bundle := sampleBundle()
	if err := st.SaveGeneratedContent(ctx, p.ID, bundle); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected bundle write to wait for jobs, got %v", err)
	}
	for _, job := range project.GenerationJobs() {
		if err := st.UpdateJobStatus(ctx, p.ID, job, project.JobRunning); err != nil {
			t.Fatalf("UpdateJobStatus(%s) failed: %v", job, err)
		}
		if err := st.SaveJobResult(ctx, p.ID, job, bundle.Artifact(job)); err != nil {
			t.Fatalf("SaveJobResult(%s) failed: %v", job, err)
		}
	}
	if err := st.SaveGeneratedContent(ctx, p.ID, project.Bundle{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected incomplete bundle to be rejected, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := st.SaveGeneratedContent(ctx, p.ID, bundle); err != nil {
			t.Fatalf("SaveGeneratedContent attempt %d failed: %v", i+1, err)
		}
	}
	if err := st.UpdateProjectStatus(ctx, p.ID, project.StatusCompleted); err != nil {
		t.Fatalf("UpdateProjectStatus(completed) failed: %v", err)
	}
	if err := st.FailProject(ctx, p.ID, project.Failure{Message: "late", Step: "summary"}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected completed project to refuse failure, got %v", err)
	}

	fetched, _ := st.GetProject(ctx, p.ID)
	if fetched.Status != project.StatusCompleted || fetched.CompletedAt == nil {
		t.Fatalf("expected completed with completedAt, got %s %v", fetched.Status, fetched.CompletedAt)
	}
	if !fetched.Bundle().Complete() {
		t.Fatalf("expected complete bundle, missing %v", fetched.Bundle().Missing())
	}
	if fetched.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on completion")
	}
	if len(fetched.Titles.YouTubeShort) != 3 {
		t.Fatalf("unexpected titles: %#v", fetched.Titles)
	}
}

func TestFailProjectFirstFailureWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")

	if err := st.FailProject(ctx, p.ID, project.Failure{Message: "boom", Step: "transcription"}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected uploaded project to refuse failure, got %v", err)
	}
	startProcessing(t, st, p.ID)

	first := project.Failure{
		Message: "unsupported codec",
		Step:    "transcription",
		Details: &project.FailureDetails{StatusCode: 400},
	}
	if err := st.FailProject(ctx, p.ID, first); err != nil {
		t.Fatalf("FailProject failed: %v", err)
	}
	if err := st.FailProject(ctx, p.ID, project.Failure{Message: "second", Step: "summary"}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected second failure to conflict, got %v", err)
	}

	fetched, _ := st.GetProject(ctx, p.ID)
	if fetched.Status != project.StatusFailed {
		t.Fatalf("expected failed, got %s", fetched.Status)
	}
	if fetched.Error == nil || fetched.Error.Message != "unsupported codec" || fetched.Error.Step != "transcription" {
		t.Fatalf("unexpected error slot: %#v", fetched.Error)
	}
	if fetched.Error.Details == nil || fetched.Error.Details.StatusCode != 400 {
		t.Fatalf("expected status code detail, got %#v", fetched.Error.Details)
	}
	if fetched.Error.Timestamp.IsZero() {
		t.Fatal("expected failure timestamp")
	}
	if fetched.CompletedAt != nil {
		t.Fatal("failed project must not carry completedAt")
	}
}

func TestFailProjectDefaultsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")
	startProcessing(t, st, p.ID)

	if err := st.FailProject(ctx, p.ID, project.Failure{Step: "titles"}); err != nil {
		t.Fatalf("FailProject failed: %v", err)
	}
	fetched, _ := st.GetProject(ctx, p.ID)
	if fetched.Error == nil || fetched.Error.Message == "" {
		t.Fatalf("expected non-empty error message, got %#v", fetched.Error)
	}
}

func TestListProjectsByUserPaginates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		testsupport.NewProject(t, st, "user-1", fmt.Sprintf("episode-%d.mp3", i))
	}
	testsupport.NewProject(t, st, "user-2", "other.mp3")

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := st.ListProjectsByUser(ctx, "user-1", store.ListOptions{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("ListProjectsByUser failed: %v", err)
		}
		pages++
		for i, p := range page.Projects {
			if p.UserID != "user-1" {
				t.Fatalf("unexpected owner %q", p.UserID)
			}
			if seen[p.ID] {
				t.Fatalf("project %s returned twice", p.ID)
			}
			seen[p.ID] = true
			if i > 0 && page.Projects[i-1].CreatedAt.Before(p.CreatedAt) {
				t.Fatal("expected newest first")
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 5 || pages != 3 {
		t.Fatalf("expected 5 projects over 3 pages, got %d over %d", len(seen), pages)
	}

	if _, err := st.ListProjectsByUser(ctx, "user-1", store.ListOptions{Cursor: "%%%"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected malformed cursor to be rejected, got %v", err)
	}
	if _, err := st.ListProjectsByUser(ctx, "", store.ListOptions{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected missing user to be rejected, got %v", err)
	}
}

func TestListProjectsByUserFiltersStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewProject(t, st, "user-1", "a.mp3")
	testsupport.NewProject(t, st, "user-1", "b.mp3")
	startProcessing(t, st, a.ID)

	page, err := st.ListProjectsByUser(ctx, "user-1", store.ListOptions{Status: project.StatusProcessing})
	if err != nil {
		t.Fatalf("ListProjectsByUser failed: %v", err)
	}
	if len(page.Projects) != 1 || page.Projects[0].ID != a.ID {
		t.Fatalf("expected only processing project, got %#v", page.Projects)
	}
	if page.Projects[0].JobStatus[project.JobTranscription] != project.JobPending {
		t.Fatal("expected job statuses to be loaded for listed projects")
	}
}

func TestHeartbeatAndClaimStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")

	if err := st.Touch(ctx, p.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected touch on uploaded project to conflict, got %v", err)
	}
	startProcessing(t, st, p.ID)
	if err := st.Touch(ctx, p.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	fresh, err := st.ClaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ClaimStale failed: %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("expected no stale projects, got %v", fresh)
	}

	stale, err := st.ClaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ClaimStale failed: %v", err)
	}
	if len(stale) != 1 || stale[0] != p.ID {
		t.Fatalf("expected %s to be claimed, got %v", p.ID, stale)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[project.StatusProcessing] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestListByStatusOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewProject(t, st, "user-1", "a.mp3")
	time.Sleep(2 * time.Millisecond)
	testsupport.NewProject(t, st, "user-2", "b.mp3")

	projects, err := st.ListByStatus(ctx, project.StatusUploaded, 10)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(projects) != 2 || projects[0].ID != first.ID {
		t.Fatalf("expected oldest first, got %#v", projects)
	}
}

func TestCaptionsAndMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")

	if err := st.SaveCaptions(ctx, p.ID, project.Captions{SRTURL: "https://files.test/a.srt", RawText: "1\n"}); err != nil {
		t.Fatalf("SaveCaptions failed: %v", err)
	}
	if err := st.SaveMetrics(ctx, p.ID, project.Metrics{TotalProcessingTimeMS: 1500}); err != nil {
		t.Fatalf("SaveMetrics failed: %v", err)
	}
	if err := st.SaveMetrics(ctx, "missing", project.Metrics{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	fetched, _ := st.GetProject(ctx, p.ID)
	if fetched.Captions == nil || fetched.Captions.SRTURL == "" {
		t.Fatalf("expected captions, got %#v", fetched.Captions)
	}
	if fetched.Metrics == nil || fetched.Metrics.TotalProcessingTimeMS != 1500 {
		t.Fatalf("expected metrics, got %#v", fetched.Metrics)
	}

	owner, err := st.ProjectOwner(ctx, p.ID)
	if err != nil || owner != "user-1" {
		t.Fatalf("ProjectOwner = %q, %v", owner, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p := testsupport.NewProject(t, st, "user-1", "show.mp3")
	st.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	fetched, err := reopened.GetProject(context.Background(), p.ID)
	if err != nil || fetched == nil {
		t.Fatalf("expected project after reopen, got %v, %v", fetched, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	st.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
