package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"
	"time"

	"podcastflow/internal/api"
	"podcastflow/internal/blob"
	"podcastflow/internal/config"
	"podcastflow/internal/daemon"
	"podcastflow/internal/generation"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
	"podcastflow/internal/testsupport"
	"podcastflow/internal/transcription"
	"podcastflow/internal/trigger"
	"podcastflow/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.Open(context.Background(), cfg.Storage)
	if err != nil {
		t.Fatalf("blob.Open: %v", err)
	}
	tokens, err := realtime.NewTokenIssuer(cfg.Realtime.TokenSecret, time.Hour, "podcastflow")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	hub := realtime.NewHub(256)
	transcriber := transcription.TranscriberFunc(func(context.Context, string) (*project.Transcript, error) {
		return testsupport.SampleTranscript(), nil
	})
	orch := workflow.NewOrchestrator(cfg, st, transcriber, generation.Tasks(testsupport.NewScriptedCompleter(), nil),
		workflow.WithPublisher(hub),
		workflow.WithCaptions(blobs),
	)
	mgr := workflow.NewManager(cfg, st, orch, nil)

	d, err := daemon.New(cfg, daemon.Components{
		Store:        st,
		Blobs:        blobs,
		Hub:          hub,
		Tokens:       tokens,
		Orchestrator: orch,
		Manager:      mgr,
		Emitter:      trigger.NewLocalEmitter(mgr),
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	secondCfg := *cfg
	secondCfg.Paths.APIBind = ""
	second := newDaemon(t, &secondCfg)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

type client struct {
	t    *testing.T
	base string
	user string
}

func (c client) do(method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("NewRequest: %v", err)
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (c client) getJSON(path string, want int, target any) {
	c.t.Helper()
	resp, data := c.do(http.MethodGet, path, nil, "")
	if resp.StatusCode != want {
		c.t.Fatalf("GET %s: status %d, want %d: %s", path, resp.StatusCode, want, data)
	}
	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestAPIEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	owner := client{t: t, base: "http://" + d.Addr(), user: "owner"}
	anonymous := client{t: t, base: owner.base}
	intruder := client{t: t, base: owner.base, user: "intruder"}

	// Upload a file.
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="episode.mp3"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := form.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write([]byte("ID3 fake audio"))
	_ = form.Close()
	resp, data := owner.do(http.MethodPost, "/api/upload", &buf, form.FormDataContentType())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status %d: %s", resp.StatusCode, data)
	}
	var uploaded api.UploadResponse
	if err := json.Unmarshal(data, &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if uploaded.ContentType != "audio/mpeg" || uploaded.Size != int64(len("ID3 fake audio")) {
		t.Fatalf("unexpected upload %+v", uploaded)
	}

	// The stored file is served back under /files.
	resp, data = anonymous.do(http.MethodGet, "/files/"+uploaded.Pathname, nil, "")
	if resp.StatusCode != http.StatusOK || string(data) != "ID3 fake audio" {
		t.Fatalf("unexpected file response %d %q", resp.StatusCode, data)
	}

	// Anonymous callers cannot create projects.
	body, _ := json.Marshal(api.CreateProjectRequest{FileURL: uploaded.URL, FileName: "episode.mp3"})
	if resp, _ := anonymous.do(http.MethodPost, "/api/projects", bytes.NewReader(body), "application/json"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp, _ := owner.do(http.MethodPost, "/api/projects", bytes.NewReader([]byte(`{"fileName":"x.mp3"}`)), "application/json"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without fileUrl, got %d", resp.StatusCode)
	}

	resp, data = owner.do(http.MethodPost, "/api/projects", bytes.NewReader(body), "application/json")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", resp.StatusCode, data)
	}
	var created api.CreateProjectResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	// Realtime token status codes.
	anonymous.getJSON("/api/realtime/token?projectId="+created.ProjectID, http.StatusUnauthorized, nil)
	owner.getJSON("/api/realtime/token", http.StatusBadRequest, nil)
	owner.getJSON("/api/realtime/token?projectId=missing", http.StatusNotFound, nil)
	intruder.getJSON("/api/realtime/token?projectId="+created.ProjectID, http.StatusForbidden, nil)
	var token api.RealtimeTokenResponse
	owner.getJSON("/api/realtime/token?projectId="+created.ProjectID, http.StatusOK, &token)

	// Wait for the pipeline to finish.
	var view api.ProjectView
	deadline := time.Now().Add(10 * time.Second)
	for {
		owner.getJSON("/api/projects/"+created.ProjectID, http.StatusOK, &view)
		if view.Project != nil && view.Status == project.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("project did not complete: %+v", view.Project)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if view.Progress.Generation != project.PhaseCompleted || view.Summary == nil {
		t.Fatalf("unexpected project view %+v", view)
	}
	intruder.getJSON("/api/projects/"+created.ProjectID, http.StatusForbidden, nil)

	// Replay the channel through the long-poll route.
	// The completion event is published right after the status flips, so
	// follow the stream until it shows up.
	done := realtime.ProcessingTopic(realtime.StepGeneration, realtime.EventComplete)
	var topics []string
	since := uint64(0)
	for len(topics) == 0 || topics[len(topics)-1] != done {
		if time.Now().After(deadline) {
			t.Fatalf("generation complete event never arrived: %v", topics)
		}
		var events realtime.EventsResponse
		anonymous.getJSON(fmt.Sprintf("/api/realtime/events?token=%s&since=%d&follow=1", token.Token, since), http.StatusOK, &events)
		for _, evt := range events.Events {
			topics = append(topics, evt.Topic)
		}
		since = events.Next
	}
	if topics[0] != realtime.ProcessingTopic(realtime.StepTranscription, realtime.EventStart) {
		t.Fatalf("expected transcription start first, got %v", topics)
	}
	anonymous.getJSON("/api/realtime/events?token=bogus", http.StatusUnauthorized, nil)

	var list api.ProjectListResponse
	owner.getJSON("/api/projects?status=completed", http.StatusOK, &list)
	if len(list.Projects) != 1 || list.Projects[0].ID != created.ProjectID {
		t.Fatalf("unexpected list %+v", list)
	}
	owner.getJSON("/api/projects?limit=abc", http.StatusBadRequest, nil)

	var status api.DaemonStatus
	anonymous.getJSON("/api/status", http.StatusOK, &status)
	if !status.Running || status.Workflow.ProjectStats["completed"] != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if fmt.Sprint(status.Transports) != "[poll local]" {
		t.Fatalf("unexpected transports %v", status.Transports)
	}
}
