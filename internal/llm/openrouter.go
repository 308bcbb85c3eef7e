package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"podcastflow/internal/services"
)

const (
	providerOpenRouter = "openrouter"
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	openRouterTemp     = 0.7
)

// Config describes an OpenAI-compatible chat completions endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client talks to an OpenAI-compatible chat completions endpoint, OpenRouter
// by default.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	headers  http.Header
	policy   retryPolicy
}

// NewClient constructs a chat completions client.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimSpace(cfg.BaseURL),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    strings.TrimSpace(cfg.Model),
		headers:  http.Header{},
		policy:   newRetryPolicy(cfg.TimeoutSeconds, opts),
	}
	if c.endpoint == "" {
		c.endpoint = defaultBaseURL
	}
	if referer := strings.TrimSpace(cfg.Referer); referer != "" {
		c.headers.Set("HTTP-Referer", referer)
	}
	if title := strings.TrimSpace(cfg.Title); title != "" {
		c.headers.Set("X-Title", title)
	}
	return c
}

// CompleteJSON sends one system and one user message in JSON mode and returns
// the raw content of the first usable choice.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "complete"
	req, err := c.newRequest(systemPrompt, userPrompt)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "llm", op, err.Error(), nil)
	}
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", op, "api key required", nil)
	}
	return c.policy.do(ctx, providerOpenRouter, op, func(ctx context.Context) (string, error) {
		reply, raw, err := c.post(ctx, req)
		if err != nil {
			return "", err
		}
		recordUsage(ctx, reply.Usage.TotalTokens)
		if text := reply.text(); text != "" {
			return text, nil
		}
		return "", &emptyContentError{
			Op:           op,
			FinishReason: reply.finishReason(),
			Refusal:      reply.refusal(),
			Snippet:      summarizePayloadSnippet(string(raw)),
		}
	})
}

func (c *Client) newRequest(systemPrompt, userPrompt string) (chatRequest, error) {
	system := strings.TrimSpace(systemPrompt)
	user := strings.TrimSpace(userPrompt)
	if system == "" || user == "" {
		return chatRequest{}, fmt.Errorf("system and user prompts are required")
	}
	return chatRequest{
		Model:          c.model,
		Messages:       []chatTurn{{Role: "system", Content: system}, {Role: "user", Content: user}},
		Temperature:    openRouterTemp,
		ResponseFormat: responseFormat{Type: "json_object"},
	}, nil
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatTurn     `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReply struct {
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatChoice accepts both the message and the streaming delta shapes; some
// providers send delta even with stream=false.
type chatChoice struct {
	Message      replyMessage `json:"message"`
	Delta        replyMessage `json:"delta"`
	Text         string       `json:"text"`
	FinishReason string       `json:"finish_reason"`
}

type replyMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func (m replyMessage) toolArguments() string {
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

func (r chatReply) text() string {
	for _, choice := range r.Choices {
		candidates := []string{
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
			choice.Message.toolArguments(),
			choice.Delta.toolArguments(),
		}
		for _, candidate := range candidates {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func (r chatReply) finishReason() string {
	for _, choice := range r.Choices {
		if reason := strings.TrimSpace(choice.FinishReason); reason != "" {
			return reason
		}
	}
	return ""
}

func (r chatReply) refusal() string {
	for _, choice := range r.Choices {
		for _, refusal := range []string{choice.Message.Refusal, choice.Delta.Refusal} {
			if trimmed := strings.TrimSpace(refusal); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, body chatRequest) (chatReply, []byte, error) {
	var reply chatReply
	encoded, err := json.Marshal(body)
	if err != nil {
		return reply, nil, fmt.Errorf("openrouter: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return reply, nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.policy.httpClient.Do(req)
	if err != nil {
		return reply, nil, fmt.Errorf("openrouter: send (timeout=%s): %w", c.policy.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply, nil, fmt.Errorf("openrouter: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return reply, raw, &statusError{
			Provider:   providerOpenRouter,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return reply, raw, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if reply.Error != nil {
		return reply, raw, fmt.Errorf("openrouter: provider error: %s", strings.TrimSpace(reply.Error.Message))
	}
	return reply, raw, nil
}
