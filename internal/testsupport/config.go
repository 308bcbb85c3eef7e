package testsupport

import (
	"path/filepath"
	"testing"

	"podcastflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// TestSecret is the realtime and auth secret seeded into test configs.
const TestSecret = "test-secret-0123456789abcdef"

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.LocalDir = filepath.Join(base, "data", "blobs")
	cfgVal.Storage.PublicBaseURL = "http://files.test/files"
	cfgVal.Transcription.APIKey = "test"
	cfgVal.Transcription.PollIntervalSeconds = 1
	cfgVal.LLM.APIKey = "test"
	cfgVal.Auth.JWTSecret = TestSecret
	cfgVal.Realtime.TokenSecret = TestSecret
	cfgVal.Realtime.ChannelPrefix = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAuthMode switches request authentication on the test config.
func WithAuthMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.Mode = mode
	}
}

// WithTranscriptionURL points the transcription adapter at a fake server.
func WithTranscriptionURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.BaseURL = url
	}
}

// WithLLMURL points the chat completions client at a fake server.
func WithLLMURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithNtfyTopic enables notifications against the given endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
