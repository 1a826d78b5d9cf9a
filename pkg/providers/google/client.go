package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

// apiVersion selects the Gemini REST API surface.
const apiVersion = "v1beta"

// Provider is the Google (Gemini) adapter.
type Provider struct {
	*providers.HTTPClient
}

// New creates a Google provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Google",
		}
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("Google provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"x-goog-api-key": p.Config().APIKey,
	}
}

// Chat sends a non-streaming generateContent request.
func (p *Provider) Chat(ctx context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := transformRequest(req)
	path := fmt.Sprintf("/%s/models/%s:generateContent", apiVersion, req.Model)

	start := time.Now()
	var geminiResp generateResponse
	if err := p.DoJSON(ctx, http.MethodPost, path, body, &geminiResp, p.headers()); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	if len(geminiResp.Candidates) == 0 {
		return nil, &providers.ProviderError{
			Provider: p.Name(),
			Message:  "no candidates in response",
		}
	}

	resp := transformResponse(&geminiResp, req.Model, latency)

	var tokens int
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	slog.Debug("chat request succeeded",
		"provider", p.Name(),
		"model", resp.Model,
		"tokens", tokens,
	)
	return resp, nil
}

// ChatStream sends a streaming generateContent request.
func (p *Provider) ChatStream(ctx context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := transformRequest(req)
	path := fmt.Sprintf("/%s/models/%s:streamGenerateContent?alt=sse", apiVersion, req.Model)

	stream, err := newStreamReader(ctx, p.HTTPClient, path, body, p.headers(), req.Model)
	if err != nil {
		return nil, err
	}

	frames := make(chan schema.StreamFrame, 100)
	go stream.pump(ctx, frames)
	return frames, nil
}

// Embed sends a batchEmbedContents request. Gemini reports no token
// usage for embeddings, so input tokens are estimated at four characters
// per token.
func (p *Provider) Embed(ctx context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	type embedContent struct {
		Parts []geminiPart `json:"parts"`
	}
	type embedRequest struct {
		Model   string       `json:"model"`
		Content embedContent `json:"content"`
	}

	texts := req.Input.Texts
	requests := make([]embedRequest, len(texts))
	var chars int
	for i, text := range texts {
		requests[i] = embedRequest{
			Model:   "models/" + req.Model,
			Content: embedContent{Parts: []geminiPart{{Text: text}}},
		}
		chars += len(text)
	}

	path := fmt.Sprintf("/%s/models/%s:batchEmbedContents", apiVersion, req.Model)

	var wire struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	if err := p.DoJSON(ctx, http.MethodPost, path, map[string]any{"requests": requests}, &wire, p.headers()); err != nil {
		return nil, err
	}

	embeddings := make([]schema.Embedding, len(wire.Embeddings))
	for i, e := range wire.Embeddings {
		embeddings[i] = schema.Embedding{Embedding: e.Values, Index: i}
	}

	estimated := chars / 4
	resp := &schema.EmbeddingResponse{
		Embeddings: embeddings,
		Model:      req.Model,
		Provider:   "google",
		Usage: schema.Usage{
			InputTokens: estimated,
			TotalTokens: estimated,
		},
	}
	resp.Stamp()
	return resp, nil
}

// Models returns the static capability matrix for Gemini models.
func (p *Provider) Models() []schema.ModelCapabilities {
	return geminiModels()
}

// HealthCheck probes the models listing endpoint.
func (p *Provider) HealthCheck(ctx context.Context) providers.HealthStatus {
	return p.Probe(ctx, "/"+apiVersion+"/models", p.headers())
}

func validateRequest(req *schema.ChatRequest) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	return nil
}
