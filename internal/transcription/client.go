package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podcastflow/internal/config"
	"podcastflow/internal/logging"
	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

const (
	providerName     = "assemblyai"
	defaultBaseURL   = "https://api.assemblyai.com"
	defaultPoll      = 3 * time.Second
	defaultRequest   = 60 * time.Second
	defaultTimeout   = 30 * time.Minute
	defaultAttempts  = 3
	defaultBaseDelay = 2 * time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Transcriber converts a reachable media URL into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*project.Transcript, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audioURL string) (*project.Transcript, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, audioURL string) (*project.Transcript, error) {
	return f(ctx, audioURL)
}

// SourceOpener opens media the provider cannot fetch on its own. It reports
// false when url should be handed to the provider as-is.
type SourceOpener interface {
	OpenLocal(ctx context.Context, url string) (io.ReadCloser, bool, error)
}

// Config controls the provider client.
type Config struct {
	APIKey         string
	BaseURL        string
	SpeakerLabels  bool
	AutoChapters   bool
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Timeout        time.Duration
	RetryAttempts  int
}

// ConfigFromSettings maps the transcription config section onto Config.
func ConfigFromSettings(cfg config.Transcription) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		SpeakerLabels:  cfg.SpeakerLabels,
		AutoChapters:   cfg.AutoChapters,
		PollInterval:   time.Duration(cfg.PollIntervalSeconds) * time.Second,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		RetryAttempts:  cfg.RetryAttempts,
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper overrides retry and poll sleeping (tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleep = sleeper
		}
	}
}

// WithSourceOpener lets the client upload media that is only reachable
// locally before submitting it.
func WithSourceOpener(opener SourceOpener) Option {
	return func(c *Client) {
		c.opener = opener
	}
}

// WithRetryBackoff overrides the retry delays.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// Client talks to an AssemblyAI-compatible API.
type Client struct {
	cfg       Config
	http      *http.Client
	logger    *slog.Logger
	opener    SourceOpener
	sleep     func(context.Context, time.Duration) error
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewClient constructs a provider client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPoll
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequest
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultAttempts
	}
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.RequestTimeout},
		logger:    logging.NewNop(),
		sleep:     sleepContext,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe submits audioURL and blocks until the provider finishes, fails,
// or the configured timeout elapses.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (*project.Transcript, error) {
	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return nil, services.Wrap(services.ErrValidation, "transcription", "transcribe", "audio url is required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "transcribe", "api key required", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	source, err := c.resolveSource(ctx, audioURL)
	if err != nil {
		return nil, err
	}
	job, err := c.submit(ctx, source)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With(logging.String("transcript_id", job.ID))
	logger.Info("transcription submitted", logging.String(logging.FieldEventType, "transcription_submitted"))

	done, err := c.poll(ctx, logger, job.ID)
	if err != nil {
		return nil, err
	}
	var sentences sentencesResponse
	if err := c.doJSON(ctx, "sentences", http.MethodGet, "/v2/transcript/"+job.ID+"/sentences", nil, &sentences); err != nil {
		return nil, err
	}
	return buildTranscript(done, sentences.Sentences), nil
}

func (c *Client) resolveSource(ctx context.Context, audioURL string) (string, error) {
	if c.opener == nil {
		return audioURL, nil
	}
	reader, ok, err := c.opener.OpenLocal(ctx, audioURL)
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "transcription", "open source", audioURL, err)
	}
	if !ok {
		return audioURL, nil
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "transcription", "read source", audioURL, err)
	}
	var uploaded uploadResponse
	if err := c.doRaw(ctx, "upload", "/v2/upload", data, &uploaded); err != nil {
		return "", err
	}
	if uploaded.UploadURL == "" {
		return "", services.Wrap(services.ErrTransient, "transcription", "upload", "provider returned no upload_url", nil)
	}
	return uploaded.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (transcriptResponse, error) {
	payload := submitRequest{
		AudioURL:      audioURL,
		SpeakerLabels: c.cfg.SpeakerLabels,
		AutoChapters:  c.cfg.AutoChapters,
	}
	var resp transcriptResponse
	if err := c.doJSON(ctx, "submit", http.MethodPost, "/v2/transcript", payload, &resp); err != nil {
		return resp, err
	}
	if resp.ID == "" {
		return resp, services.Wrap(services.ErrTransient, "transcription", "submit", "provider returned no transcript id", nil)
	}
	return resp, nil
}

func (c *Client) poll(ctx context.Context, logger *slog.Logger, id string) (transcriptResponse, error) {
	sampler := logging.NewStatusSampler(time.Minute)
	for {
		var resp transcriptResponse
		if err := c.doJSON(ctx, "poll", http.MethodGet, "/v2/transcript/"+id, nil, &resp); err != nil {
			return resp, err
		}
		switch resp.Status {
		case statusCompleted:
			logger.Info("transcription completed",
				logging.String(logging.FieldEventType, "transcription_completed"),
				logging.Int("chapters", len(resp.Chapters)),
				logging.Int("utterances", len(resp.Utterances)),
			)
			return resp, nil
		case statusError:
			return resp, services.Wrap(services.ErrFatal, "transcription", "poll", "",
				&services.ProviderError{Provider: providerName, Message: strings.TrimSpace(resp.Error)})
		}
		if sampler.ShouldLog(resp.Status, time.Now()) {
			logger.Info("transcription in progress", logging.String("provider_status", resp.Status))
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return resp, timeoutError("poll", err)
		}
	}
}

// doJSON performs a JSON request with the retry budget.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, target any) error {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return fmt.Errorf("transcription %s: encode body: %w", op, err)
		}
	}
	return c.retry(ctx, op, func() error {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		return c.send(ctx, method, path, "application/json", reader, target)
	})
}

func (c *Client) doRaw(ctx context.Context, op, path string, data []byte, target any) error {
	return c.retry(ctx, op, func() error {
		return c.send(ctx, http.MethodPost, path, "application/octet-stream", bytes.NewReader(data), target)
	})
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &services.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(payload),
		}
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return timeoutError(op, ctx.Err())
		}
		if !transient(err) {
			return services.Wrap(services.ErrFatal, "transcription", op, "", err)
		}
		if attempt == c.cfg.RetryAttempts {
			break
		}
		c.logger.Debug("transcription request retry",
			logging.String("operation", op),
			logging.Attempt(attempt),
			logging.Error(err),
		)
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return timeoutError(op, err)
		}
	}
	return services.Wrap(services.ErrTransient, "transcription", op,
		fmt.Sprintf("failed after %d attempt(s)", c.cfg.RetryAttempts), lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt && delay < c.maxDelay; i++ {
		delay *= 2
	}
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

// transient reports whether a request failure is worth retrying: rate
// limits, server errors and network failures. Other 4xx responses mean the
// request or media was rejected.
func transient(err error) bool {
	var perr *services.ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode == http.StatusRequestTimeout ||
			perr.StatusCode == http.StatusTooManyRequests ||
			perr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func timeoutError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, "transcription", op, "timed out", err)
	}
	return fmt.Errorf("transcription %s: %w", op, err)
}

func providerMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return body.Error
	}
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
