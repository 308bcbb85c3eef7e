package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"podcastflow/internal/services"
)

const providerGemini = "gemini"

// GeminiConfig captures the settings of the Gemini backend.
type GeminiConfig struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// GeminiClient issues JSON completions through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	policy retryPolicy
}

// NewGeminiClient constructs a Gemini-backed Completer.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, opts ...Option) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new gemini client", "api key required", nil)
	}
	policy := newRetryPolicy(cfg.TimeoutSeconds, opts)
	clientCfg := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: policy.httpClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new gemini client", "", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{client: client, model: model, policy: policy}, nil
}

// CompleteJSON implements Completer.
func (g *GeminiClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "gemini complete"
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", op, "system and user prompts are required", nil)
	}
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	return g.policy.do(ctx, providerGemini, op, func(ctx context.Context) (string, error) {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), genCfg)
		if err != nil {
			return "", translateGeminiError(err)
		}
		if result.UsageMetadata != nil {
			recordUsage(ctx, int64(result.UsageMetadata.TotalTokenCount))
		}
		if text := strings.TrimSpace(result.Text()); text != "" {
			return text, nil
		}
		finish := ""
		if len(result.Candidates) > 0 {
			finish = string(result.Candidates[0].FinishReason)
		}
		return "", &emptyContentError{Op: op, FinishReason: finish, Snippet: "<empty>"}
	})
}

// translateGeminiError maps API errors onto statusError so the shared retry
// policy classifies them like HTTP responses.
func translateGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &statusError{Provider: providerGemini, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &statusError{Provider: providerGemini, StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}
