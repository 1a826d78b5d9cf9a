// Package local adapts the gateway to local LLM servers: Ollama, vLLM,
// and llama.cpp. All three expose an OpenAI-compatible
// /v1/chat/completions endpoint, so one adapter covers them; only the
// health probe differs, since Ollama reports liveness on its native
// /api/tags endpoint.
package local

import (
	"context"
	"log/slog"
	"strings"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/providers/openai"
	"aratta-hq/aratta/pkg/schema"
)

// Provider is the local server adapter. No API key is required and no
// data leaves the machine.
type Provider struct {
	*openai.Provider

	// root probes the server's base URL, outside the /v1 prefix.
	root     *providers.HTTPClient
	isOllama bool
}

// New creates a local provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	rootURL := strings.TrimRight(config.BaseURL, "/")
	rootURL = strings.TrimSuffix(rootURL, "/v1")

	// Port 11434 or an "ollama" name identifies Ollama. A vLLM server on
	// that port would be misdetected; configure the name explicitly in
	// that case.
	isOllama := strings.Contains(rootURL, "11434") || strings.Contains(strings.ToLower(config.Name), "ollama")

	compatConfig := config
	compatConfig.BaseURL = rootURL + "/v1"
	inner, err := openai.NewCompatible(compatConfig)
	if err != nil {
		return nil, err
	}

	rootConfig := config
	rootConfig.BaseURL = rootURL
	p := &Provider{
		Provider: inner,
		root:     providers.NewHTTPClient(rootConfig),
		isOllama: isOllama,
	}

	slog.Info("local provider initialized",
		"provider", config.Name,
		"base_url", rootURL,
		"ollama", isOllama,
	)
	return p, nil
}

// Models reports the configured default model. Local model inventories
// are dynamic; users pull what they want.
func (p *Provider) Models() []schema.ModelCapabilities {
	return []schema.ModelCapabilities{
		{
			ModelID:           p.Config().DefaultModel,
			Provider:          p.Name(),
			DisplayName:       "Local: " + p.Config().DefaultModel,
			SupportsTools:     true,
			SupportsStreaming: true,
			SupportsJSONMode:  true,
			ContextWindow:     8192,
			Categories:        []string{"local", "sovereign"},
		},
	}
}

// HealthCheck probes the server's liveness endpoint.
func (p *Provider) HealthCheck(ctx context.Context) providers.HealthStatus {
	if p.isOllama {
		return p.root.Probe(ctx, "/api/tags", nil)
	}
	return p.root.Probe(ctx, "/v1/models", nil)
}

// Close releases both connection pools.
func (p *Provider) Close() error {
	p.root.Close()
	return p.Provider.Close()
}
