package workflow_test

import (
	"context"
	"testing"
	"time"

	"podcastflow/internal/project"
	"podcastflow/internal/workflow"
)

func waitForStatus(t *testing.T, h *harness, id string, want project.Status) *project.Project {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		p, err := h.store.GetProject(context.Background(), id)
		if err != nil {
			t.Fatalf("GetProject: %v", err)
		}
		if p != nil && p.Status == want {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	p := h.reload(t, id)
	t.Fatalf("project %s stuck in %s, want %s", id, p.Status, want)
	return nil
}

func TestManagerProcessesUploadedProjects(t *testing.T) {
	h := newHarness(t)
	h.cfg.Workflow.PollInterval = 1
	mgr := workflow.NewManager(h.cfg, h.store, h.orch, nil)

	first, _ := h.uploaded(t)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	waitForStatus(t, h, first.ID, project.StatusCompleted)

	second, _ := h.uploaded(t)
	mgr.Wake()
	waitForStatus(t, h, second.ID, project.StatusCompleted)

	status := mgr.Status(context.Background())
	if !status.Running || status.StartedAt == nil {
		t.Fatalf("expected running status, got %+v", status)
	}
	if status.ProjectStats[project.StatusCompleted] != 2 {
		t.Fatalf("expected two completed projects, got %+v", status.ProjectStats)
	}
	if status.LastError != "" {
		t.Fatalf("unexpected last error %q", status.LastError)
	}
}

func TestManagerResumesStaleRuns(t *testing.T) {
	h := newHarness(t)
	h.cfg.Workflow.HeartbeatTimeout = 1
	ctx := context.Background()

	p, _ := h.uploaded(t)
	if err := h.store.UpdateProjectStatus(ctx, p.ID, project.StatusProcessing); err != nil {
		t.Fatalf("UpdateProjectStatus: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)

	mgr := workflow.NewManager(h.cfg, h.store, h.orch, nil)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	waitForStatus(t, h, p.ID, project.StatusCompleted)
	if h.transcripts.Load() != 1 {
		t.Fatalf("expected one transcription, got %d", h.transcripts.Load())
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	mgr := workflow.NewManager(h.cfg, h.store, h.orch, nil)
	mgr.Stop()
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mgr.Stop()
	mgr.Stop()
	if status := mgr.Status(context.Background()); status.Running {
		t.Fatalf("expected stopped manager, got %+v", status)
	}
}
