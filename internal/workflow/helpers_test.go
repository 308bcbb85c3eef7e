package workflow_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"podcastflow/internal/blob"
	"podcastflow/internal/config"
	"podcastflow/internal/generation"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
	"podcastflow/internal/store"
	"podcastflow/internal/testsupport"
	"podcastflow/internal/transcription"
	"podcastflow/internal/trigger"
	"podcastflow/internal/workflow"
)

type harness struct {
	cfg         *config.Config
	store       *store.Store
	completer   *testsupport.ScriptedCompleter
	hub         *realtime.Hub
	blobs       *blob.Store
	notifier    *recordingNotifier
	expirer     *recordingExpirer
	orch        *workflow.Orchestrator
	transcripts atomic.Int32

	mu         sync.Mutex
	transcript *project.Transcript
	transErr   error
	gate       chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.GenerationAttempts = 2
	cfg.Workflow.HeartbeatInterval = 1
	h := &harness{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		completer:  testsupport.NewScriptedCompleter(),
		hub:        realtime.NewHub(512),
		notifier:   &recordingNotifier{},
		expirer:    &recordingExpirer{},
		transcript: testsupport.SampleTranscript(),
	}
	local, err := blob.NewLocal(filepath.Join(testsupport.BaseDir(cfg), "blobs"), "http://files.test/files")
	if err != nil {
		t.Fatalf("blob.NewLocal: %v", err)
	}
	h.blobs = blob.New(local, project.MaxFileSize)

	transcriber := transcription.TranscriberFunc(func(ctx context.Context, audioURL string) (*project.Transcript, error) {
		h.transcripts.Add(1)
		h.mu.Lock()
		gate, transcript, err := h.gate, h.transcript, h.transErr
		h.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, err
		}
		return transcript, nil
	})

	h.orch = workflow.NewOrchestrator(cfg, h.store, transcriber,
		generation.Tasks(h.completer, nil),
		workflow.WithPublisher(h.hub),
		workflow.WithCaptions(h.blobs),
		workflow.WithNotifier(h.notifier),
		workflow.WithChannelExpiry(h.expirer, time.Minute),
		workflow.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	return h
}

func (h *harness) setTranscript(transcript *project.Transcript) {
	h.mu.Lock()
	h.transcript = transcript
	h.mu.Unlock()
}

func (h *harness) setTranscriptionError(err error) {
	h.mu.Lock()
	h.transErr = err
	h.mu.Unlock()
}

func (h *harness) blockTranscription() chan struct{} {
	gate := make(chan struct{})
	h.mu.Lock()
	h.gate = gate
	h.mu.Unlock()
	return gate
}

func (h *harness) uploaded(t *testing.T) (*project.Project, trigger.UploadEvent) {
	t.Helper()
	p := testsupport.NewProject(t, h.store, "user-1", "episode.mp3")
	return p, trigger.EventFromProject(p)
}

func (h *harness) reload(t *testing.T, id string) *project.Project {
	t.Helper()
	p, err := h.store.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p == nil {
		t.Fatalf("project %s not found", id)
	}
	return p
}

func (h *harness) topics(t *testing.T, projectID string) []string {
	t.Helper()
	msgs, _, err := h.hub.Fetch(context.Background(), realtime.ChannelFor(projectID), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	topics := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		topics = append(topics, msg.Topic)
	}
	return topics
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (n *recordingNotifier) NotifyProjectCompleted(_ context.Context, p *project.Project, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, p.ID)
	return nil
}

func (n *recordingNotifier) NotifyProjectFailed(_ context.Context, p *project.Project) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, p.ID)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.completed), len(n.failed)
}

type recordingExpirer struct {
	mu       sync.Mutex
	channels []string
	after    []time.Duration
}

func (e *recordingExpirer) Expire(channel string, after time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels = append(e.channels, channel)
	e.after = append(e.after, after)
}

func (e *recordingExpirer) expired() ([]string, []time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.channels...), append([]time.Duration(nil), e.after...)
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
