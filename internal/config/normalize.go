package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAuth()
	c.normalizeRealtime()
	c.normalizeTranscription()
	c.normalizeLLM()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeTrigger()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeAuth() {
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	if c.Auth.Mode == "" {
		c.Auth.Mode = defaultAuthMode
	}
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = lookupEnv("PODCASTFLOW_AUTH_SECRET")
	}
	c.Auth.HeaderName = strings.TrimSpace(c.Auth.HeaderName)
	if c.Auth.HeaderName == "" {
		c.Auth.HeaderName = defaultAuthHeader
	}
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
}

func (c *Config) normalizeRealtime() {
	c.Realtime.TokenSecret = strings.TrimSpace(c.Realtime.TokenSecret)
	if c.Realtime.TokenSecret == "" {
		c.Realtime.TokenSecret = lookupEnv("PODCASTFLOW_REALTIME_SECRET")
	}
	if c.Realtime.TokenSecret == "" {
		c.Realtime.TokenSecret = c.Auth.JWTSecret
	}
	if c.Realtime.TokenTTLSeconds <= 0 {
		c.Realtime.TokenTTLSeconds = defaultRealtimeTokenTTL
	}
	if c.Realtime.BufferSize <= 0 {
		c.Realtime.BufferSize = defaultRealtimeBufferSize
	}
	if c.Realtime.RetentionSeconds <= 0 {
		c.Realtime.RetentionSeconds = defaultRealtimeRetention
	}
	c.Realtime.RedisAddr = strings.TrimSpace(c.Realtime.RedisAddr)
	if c.Realtime.RedisAddr == "" {
		c.Realtime.RedisAddr = defaultRedisAddr
	}
	if c.Realtime.RedisPassword == "" {
		c.Realtime.RedisPassword = lookupEnv("REDIS_PASSWORD")
	}
	c.Realtime.ChannelPrefix = strings.TrimSpace(c.Realtime.ChannelPrefix)
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = lookupEnv("ASSEMBLYAI_API_KEY")
	}
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	if c.Transcription.PollIntervalSeconds <= 0 {
		c.Transcription.PollIntervalSeconds = defaultTranscriptionPoll
	}
	if c.Transcription.RequestTimeoutSeconds <= 0 {
		c.Transcription.RequestTimeoutSeconds = defaultTranscriptionReqTimeout
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionTimeout
	}
	if c.Transcription.RetryAttempts <= 0 {
		c.Transcription.RetryAttempts = defaultTranscriptionRetries
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("OPENROUTER_API_KEY")
	}
	c.LLM.GeminiAPIKey = strings.TrimSpace(c.LLM.GeminiAPIKey)
	if c.LLM.GeminiAPIKey == "" {
		if value := lookupEnv("GEMINI_API_KEY"); value != "" {
			c.LLM.GeminiAPIKey = value
		} else {
			c.LLM.GeminiAPIKey = lookupEnv("GOOGLE_API_KEY")
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.GeminiModel = strings.TrimSpace(c.LLM.GeminiModel)
	if c.LLM.GeminiModel == "" {
		c.LLM.GeminiModel = defaultGeminiModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = filepath.Join(c.Paths.DataDir, "blobs")
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if c.Storage.PublicBaseURL == "" && c.Storage.Backend == StorageLocal {
		c.Storage.PublicBaseURL = "http://" + c.Paths.APIBind + "/files"
	}
	if c.Storage.MaxFileSizeMB <= 0 {
		c.Storage.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if c.Storage.S3AccessKey == "" {
		c.Storage.S3AccessKey = lookupEnv("AWS_ACCESS_KEY_ID")
	}
	if c.Storage.S3SecretKey == "" {
		c.Storage.S3SecretKey = lookupEnv("AWS_SECRET_ACCESS_KEY")
	}
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	c.Storage.S3Region = strings.TrimSpace(c.Storage.S3Region)
	c.Storage.S3Endpoint = strings.TrimSpace(c.Storage.S3Endpoint)
	return nil
}

func (c *Config) normalizeTrigger() {
	brokers := make([]string, 0, len(c.Trigger.KafkaBrokers))
	for _, broker := range c.Trigger.KafkaBrokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Trigger.KafkaBrokers = brokers
	c.Trigger.KafkaTopic = strings.TrimSpace(c.Trigger.KafkaTopic)
	if c.Trigger.KafkaTopic == "" {
		c.Trigger.KafkaTopic = defaultKafkaTopic
	}
	c.Trigger.KafkaGroupID = strings.TrimSpace(c.Trigger.KafkaGroupID)
	if c.Trigger.KafkaGroupID == "" {
		c.Trigger.KafkaGroupID = defaultKafkaGroupID
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
