package anthropic

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

const (
	// apiVersion is the Anthropic API version header value.
	apiVersion = "2023-06-01"

	// defaultMaxTokens is applied when the request omits max_tokens,
	// which the Messages API requires.
	defaultMaxTokens = 4096

	// minThinkingBudget is the smallest budget the API accepts.
	minThinkingBudget = 1024

	healthModel = "claude-haiku-4-5-20251001"
)

// Provider is the Anthropic (Claude) adapter.
type Provider struct {
	*providers.HTTPClient
}

// New creates an Anthropic provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("Anthropic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

func (p *Provider) headers(req *schema.ChatRequest) map[string]string {
	h := map[string]string{
		"x-api-key":         p.Config().APIKey,
		"anthropic-version": apiVersion,
	}
	if req != nil && req.ThinkingEnabled() {
		h["anthropic-beta"] = "extended-thinking-2025-01-24"
	}
	return h
}

// Chat sends a non-streaming chat request.
func (p *Provider) Chat(ctx context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body, err := transformRequest(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var anthropicResp anthropicResponse
	if err := p.DoJSON(ctx, http.MethodPost, "/v1/messages", body, &anthropicResp, p.headers(req)); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	resp := transformResponse(&anthropicResp, req.Model, latency)

	slog.Debug("chat request succeeded",
		"provider", p.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// ChatStream sends a streaming chat request. Upstream SSE events are
// coalesced into canonical stream frames; raw events never reach the
// caller.
func (p *Provider) ChatStream(ctx context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body, err := transformRequest(req)
	if err != nil {
		return nil, err
	}
	body.Stream = true

	stream, err := newStreamReader(ctx, p.HTTPClient, body, p.headers(req))
	if err != nil {
		return nil, err
	}

	frames := make(chan schema.StreamFrame, 100)
	go stream.pump(ctx, frames)
	return frames, nil
}

// Embed is not supported by Anthropic.
func (p *Provider) Embed(ctx context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	return nil, &providers.UnsupportedOperationError{
		Provider:  p.Name(),
		Operation: "embeddings",
	}
}

// Models returns the static capability matrix for Claude models.
func (p *Provider) Models() []schema.ModelCapabilities {
	return claudeModels()
}

// HealthCheck sends a one-token message to the cheapest model.
func (p *Provider) HealthCheck(ctx context.Context) providers.HealthStatus {
	start := time.Now()
	body := &anthropicRequest{
		Model:     healthModel,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "hi"}},
	}
	err := p.DoJSON(ctx, http.MethodPost, "/v1/messages", body, nil, p.headers(nil))
	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return providers.HealthStatus{Status: providers.Unhealthy, Provider: p.Name(), Error: err.Error()}
	}
	return providers.HealthStatus{Status: providers.Healthy, Provider: p.Name(), LatencyMS: latency}
}

func validateRequest(req *schema.ChatRequest) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	return nil
}
