package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"podcastflow/internal/config"
	"podcastflow/internal/services"
)

// Completer issues JSON-only completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// HealthCheck asks c for a trivial JSON document to prove the key and model
// are usable.
func HealthCheck(ctx context.Context, c Completer) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("llm health: unexpected response %s", summarizePayloadSnippet(content))
	}
	return nil
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// CompleteJSON implements Completer.
func (f CompleterFunc) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// Option customizes a backend.
type Option func(*retryPolicy)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *retryPolicy) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the attempt budget.
func WithRetryMaxAttempts(attempts int) Option {
	return func(p *retryPolicy) {
		p.maxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(p *retryPolicy) {
		p.baseDelay = baseDelay
		p.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(p *retryPolicy) {
		p.sleeper = sleeper
	}
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLM, opts ...Option) (Completer, error) {
	switch cfg.Provider {
	case config.LLMProviderOpenRouter, "":
		return NewClient(Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, append([]Option{WithRetryMaxAttempts(cfg.RetryAttempts)}, opts...)...), nil
	case config.LLMProviderGemini:
		client, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, append([]Option{WithRetryMaxAttempts(cfg.RetryAttempts)}, opts...)...)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}

// Usage accumulates token counts reported by the provider.
type Usage struct {
	tokens atomic.Int64
}

// Tokens returns the total recorded so far.
func (u *Usage) Tokens() int64 {
	if u == nil {
		return 0
	}
	return u.tokens.Load()
}

type usageKey struct{}

// WithUsage attaches u to ctx so completions made under ctx record their
// token counts into it.
func WithUsage(ctx context.Context, u *Usage) context.Context {
	return context.WithValue(ctx, usageKey{}, u)
}

func recordUsage(ctx context.Context, tokens int64) {
	if tokens <= 0 || ctx == nil {
		return
	}
	if u, ok := ctx.Value(usageKey{}).(*Usage); ok && u != nil {
		u.tokens.Add(tokens)
	}
}
