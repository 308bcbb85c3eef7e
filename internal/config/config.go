package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Auth controls how API requests are attributed to a user.
type Auth struct {
	// Mode is "jwt" (HS256 bearer token, sub = user id) or "header" (trusted
	// reverse proxy sets HeaderName).
	Mode       string `toml:"mode"`
	JWTSecret  string `toml:"jwt_secret"`
	Issuer     string `toml:"issuer"`
	HeaderName string `toml:"header_name"`
}

// Realtime contains live-update channel settings.
type Realtime struct {
	TokenSecret      string `toml:"token_secret"`
	TokenTTLSeconds  int    `toml:"token_ttl_seconds"`
	BufferSize       int    `toml:"buffer_size"`
	RetentionSeconds int    `toml:"retention_seconds"`
	RedisEnabled     bool   `toml:"redis_enabled"`
	RedisAddr        string `toml:"redis_addr"`
	RedisPassword    string `toml:"redis_password"`
	RedisDB          int    `toml:"redis_db"`
	ChannelPrefix    string `toml:"channel_prefix"`
}

// Transcription contains speech-to-text provider settings.
type Transcription struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	SpeakerLabels         bool   `toml:"speaker_labels"`
	AutoChapters          bool   `toml:"auto_chapters"`
	PollIntervalSeconds   int    `toml:"poll_interval_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	RetryAttempts         int    `toml:"retry_attempts"`
}

// LLM contains generative-model connection settings.
type LLM struct {
	// Provider is "openrouter" (any OpenAI-compatible chat completions endpoint)
	// or "gemini".
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	GeminiAPIKey   string `toml:"gemini_api_key"`
	GeminiModel    string `toml:"gemini_model"`
}

// Storage contains blob storage settings for uploads and caption files.
type Storage struct {
	Backend          string `toml:"backend"`
	LocalDir         string `toml:"local_dir"`
	PublicBaseURL    string `toml:"public_base_url"`
	MaxFileSizeMB    int    `toml:"max_file_size_mb"`
	S3Bucket         string `toml:"s3_bucket"`
	S3Region         string `toml:"s3_region"`
	S3Endpoint       string `toml:"s3_endpoint"`
	S3AccessKey      string `toml:"s3_access_key"`
	S3SecretKey      string `toml:"s3_secret_key"`
	S3ForcePathStyle bool   `toml:"s3_force_path_style"`
}

// Trigger contains upload-event transport settings.
type Trigger struct {
	KafkaEnabled bool     `toml:"kafka_enabled"`
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
	KafkaGroupID string   `toml:"kafka_group_id"`
}

// Workflow contains orchestrator timing and retry settings.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	StepTimeoutSeconds int `toml:"step_timeout_seconds"`
	GenerationAttempts int `toml:"generation_attempts"`
	MaxConcurrentRuns  int `toml:"max_concurrent_runs"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Config encapsulates all configuration values for podcastflow.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories, API bind address
//   - Auth: request authentication mode and secrets
//   - Realtime: subscription tokens, hub buffer, optional Redis fan-out
//   - Transcription: speech-to-text provider
//   - LLM: generative-model provider
//   - Storage: blob backend for uploads and captions
//   - Trigger: optional Kafka upload-event transport
//   - Workflow: polling, heartbeat, timeouts and retry budgets
//   - Notifications: ntfy push notification settings
//   - Logging: log format and levels
type Config struct {
	Paths         Paths         `toml:"paths"`
	Auth          Auth          `toml:"auth"`
	Realtime      Realtime      `toml:"realtime"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Storage       Storage       `toml:"storage"`
	Trigger       Trigger       `toml:"trigger"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files beside the config and in the working directory.
// Variables already present in the environment are left untouched.
func loadDotEnv(configPath string) error {
	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}

	seen := make(map[string]struct{}, len(candidates))
	files := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			files = append(files, candidate)
		}
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podcastflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file that backs the project store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "podcastflow.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "podcastflow.lock")
}

// MaxFileSizeBytes returns the upload size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Storage.MaxFileSizeMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
