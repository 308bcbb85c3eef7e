package config

const (
	defaultConfigPath              = "~/.config/podcastflow/config.toml"
	defaultDataDir                 = "~/.local/share/podcastflow"
	defaultLogDir                  = "~/.local/share/podcastflow/logs"
	defaultAPIBind                 = "127.0.0.1:7487"
	defaultAuthMode                = AuthModeHeader
	defaultAuthHeader              = "X-User-ID"
	defaultAuthIssuer              = "podcastflow"
	defaultRealtimeTokenTTL        = 3600
	defaultRealtimeBufferSize      = 512
	defaultRealtimeRetention       = 900
	defaultRedisAddr               = "127.0.0.1:6379"
	defaultRealtimeChannelPrefix   = "podcastflow:"
	defaultTranscriptionBaseURL    = "https://api.assemblyai.com"
	defaultTranscriptionPoll       = 3
	defaultTranscriptionReqTimeout = 30
	defaultTranscriptionTimeout    = 3600
	defaultTranscriptionRetries    = 3
	defaultLLMProvider             = LLMProviderOpenRouter
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                = "google/gemini-2.5-flash"
	defaultLLMReferer              = "https://github.com/podcastflow/podcastflow"
	defaultLLMTitle                = "podcastflow"
	defaultLLMTimeoutSeconds       = 90
	defaultLLMRetryAttempts        = 3
	defaultGeminiModel             = "gemini-2.5-flash"
	defaultStorageBackend          = StorageLocal
	defaultMaxFileSizeMB           = 100
	defaultKafkaTopic              = "podcastflow.uploads"
	defaultKafkaGroupID            = "podcastflow-orchestrator"
	defaultWorkflowPollInterval    = 5
	defaultHeartbeatInterval       = 15
	defaultHeartbeatTimeout        = 120
	defaultStepTimeoutSeconds      = 180
	defaultGenerationAttempts      = 3
	defaultMaxConcurrentRuns       = 2
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Auth modes.
const (
	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

// LLM providers.
const (
	LLMProviderOpenRouter = "openrouter"
	LLMProviderGemini     = "gemini"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Auth: Auth{
			Mode:       defaultAuthMode,
			Issuer:     defaultAuthIssuer,
			HeaderName: defaultAuthHeader,
		},
		Realtime: Realtime{
			TokenTTLSeconds:  defaultRealtimeTokenTTL,
			BufferSize:       defaultRealtimeBufferSize,
			RetentionSeconds: defaultRealtimeRetention,
			RedisAddr:        defaultRedisAddr,
			ChannelPrefix:    defaultRealtimeChannelPrefix,
		},
		Transcription: Transcription{
			BaseURL:               defaultTranscriptionBaseURL,
			SpeakerLabels:         true,
			AutoChapters:          true,
			PollIntervalSeconds:   defaultTranscriptionPoll,
			RequestTimeoutSeconds: defaultTranscriptionReqTimeout,
			TimeoutSeconds:        defaultTranscriptionTimeout,
			RetryAttempts:         defaultTranscriptionRetries,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
			GeminiModel:    defaultGeminiModel,
		},
		Storage: Storage{
			Backend:       defaultStorageBackend,
			MaxFileSizeMB: defaultMaxFileSizeMB,
		},
		Trigger: Trigger{
			KafkaTopic:   defaultKafkaTopic,
			KafkaGroupID: defaultKafkaGroupID,
		},
		Workflow: Workflow{
			PollInterval:       defaultWorkflowPollInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			StepTimeoutSeconds: defaultStepTimeoutSeconds,
			GenerationAttempts: defaultGenerationAttempts,
			MaxConcurrentRuns:  defaultMaxConcurrentRuns,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
