package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("PODCASTFLOW_USER", "")
	t.Setenv("USER", "")

	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.Open(context.Background(), cfg.Storage)
	if err != nil {
		t.Fatalf("blob.Open: %v", err)
	}
	tokens, err := realtime.NewTokenIssuer(cfg.Realtime.TokenSecret, time.Hour, "podcastflow")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	hub := realtime.NewHub(512)
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
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	configPath := filepath.Join(homeDir, ".config", "podcastflow", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg, d.Addr())

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, apiBind string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = %q

[auth]
mode = %q
jwt_secret = %q

[realtime]
token_secret = %q

[transcription]
api_key = "test"

[llm]
api_key = "test"

[storage]
local_dir = %q
public_base_url = %q

[notifications]
ntfy_topic = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		apiBind,
		cfg.Auth.Mode,
		cfg.Auth.JWTSecret,
		cfg.Realtime.TokenSecret,
		cfg.Storage.LocalDir,
		cfg.Storage.PublicBaseURL,
		cfg.Notifications.NtfyTopic,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
