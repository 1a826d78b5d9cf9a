package openai

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

// Provider is the OpenAI adapter.
type Provider struct {
	*providers.HTTPClient
}

// New creates an OpenAI provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for OpenAI",
		}
	}
	return NewCompatible(config)
}

// NewCompatible creates an adapter for any endpoint that speaks the
// Chat Completions wire format. The API key is optional; local servers
// typically run without one. Used by the xai and local adapters.
func NewCompatible(config providers.Config) (*Provider, error) {
	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required",
		}
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("OpenAI-compatible provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

func (p *Provider) headers() map[string]string {
	h := map[string]string{}
	if key := p.Config().APIKey; key != "" {
		h["Authorization"] = "Bearer " + key
	}
	return h
}

// Chat sends a non-streaming chat request.
func (p *Provider) Chat(ctx context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := transformRequest(req)

	start := time.Now()
	var completion chatCompletionResponse
	if err := p.DoJSON(ctx, http.MethodPost, "/chat/completions", body, &completion, p.headers()); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	resp, err := transformResponse(&completion, req.Model, p.Name(), latency)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.Name(), Cause: err}
	}

	slog.Debug("chat request succeeded",
		"provider", p.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// ChatStream sends a streaming chat request and coalesces upstream
// chunks into canonical frames.
func (p *Provider) ChatStream(ctx context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := transformRequest(req)
	body.Stream = true

	stream, err := newStreamReader(ctx, p.HTTPClient, "/chat/completions", body, p.headers())
	if err != nil {
		return nil, err
	}

	frames := make(chan schema.StreamFrame, 100)
	go stream.pump(ctx, frames)
	return frames, nil
}

// Embed sends an embeddings request. The input keeps its caller-supplied
// wire form, scalar or list.
func (p *Provider) Embed(ctx context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	payload := map[string]any{
		"model": req.Model,
		"input": req.Input,
	}
	if req.Dimensions > 0 {
		payload["dimensions"] = req.Dimensions
	}

	var wire struct {
		Model string `json:"model"`
		Data  []struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := p.DoJSON(ctx, http.MethodPost, "/embeddings", payload, &wire, p.headers()); err != nil {
		return nil, err
	}

	embeddings := make([]schema.Embedding, len(wire.Data))
	for i, item := range wire.Data {
		embeddings[i] = schema.Embedding{Embedding: item.Embedding, Index: item.Index}
	}

	model := wire.Model
	if model == "" {
		model = req.Model
	}
	resp := &schema.EmbeddingResponse{
		Embeddings: embeddings,
		Model:      model,
		Provider:   p.Name(),
		Usage: schema.Usage{
			InputTokens: wire.Usage.PromptTokens,
			TotalTokens: wire.Usage.TotalTokens,
		},
	}
	resp.Stamp()
	return resp, nil
}

// Models returns the static capability matrix.
func (p *Provider) Models() []schema.ModelCapabilities {
	return openaiModels()
}

// HealthCheck probes the models listing endpoint.
func (p *Provider) HealthCheck(ctx context.Context) providers.HealthStatus {
	return p.Probe(ctx, "/models", p.headers())
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
