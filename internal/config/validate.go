package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTrigger(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAuth() error {
	switch c.Auth.Mode {
	case AuthModeHeader:
		return nil
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret must be set when auth.mode is \"jwt\" (or set PODCASTFLOW_AUTH_SECRET)")
		}
		return nil
	default:
		return fmt.Errorf("auth.mode: unsupported value %q (want %q or %q)", c.Auth.Mode, AuthModeHeader, AuthModeJWT)
	}
}

func (c *Config) validateRealtime() error {
	if len(c.Realtime.TokenSecret) < 16 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("realtime.token_secret must be at least 16 characters. Set PODCASTFLOW_REALTIME_SECRET or edit %s (create with 'podcastflow config init')", defaultPath)
	}
	if c.Realtime.RedisEnabled && strings.TrimSpace(c.Realtime.RedisAddr) == "" {
		return errors.New("realtime.redis_addr must be set when realtime.redis_enabled is true")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.APIKey == "" {
		return errors.New("transcription.api_key is required. Set ASSEMBLYAI_API_KEY or edit the config file")
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case LLMProviderOpenRouter:
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key must be set when llm.provider is \"openrouter\" (or set OPENROUTER_API_KEY)")
		}
	case LLMProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("llm.gemini_api_key must be set when llm.provider is \"gemini\" (or set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("llm.provider: unsupported value %q", c.LLM.Provider)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set when storage.backend is \"local\"")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket must be set when storage.backend is \"s3\"")
		}
		if c.Storage.S3Region == "" {
			return errors.New("storage.s3_region must be set when storage.backend is \"s3\"")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateTrigger() error {
	if c.Trigger.KafkaEnabled && len(c.Trigger.KafkaBrokers) == 0 {
		return errors.New("trigger.kafka_brokers must include at least one broker when trigger.kafka_enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
		"workflow.poll_interval":              c.Workflow.PollInterval,
		"workflow.step_timeout_seconds":       c.Workflow.StepTimeoutSeconds,
		"workflow.generation_attempts":        c.Workflow.GenerationAttempts,
		"workflow.max_concurrent_runs":        c.Workflow.MaxConcurrentRuns,
		"storage.max_file_size_mb":            c.Storage.MaxFileSizeMB,
		"transcription.timeout_seconds":       c.Transcription.TimeoutSeconds,
		"realtime.token_ttl_seconds":          c.Realtime.TokenTTLSeconds,
		"llm.timeout_seconds":                 c.LLM.TimeoutSeconds,
		"transcription.retry_attempts":        c.Transcription.RetryAttempts,
		"transcription.poll_interval_seconds": c.Transcription.PollIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
