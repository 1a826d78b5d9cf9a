// Package xai adapts the gateway to the xAI (Grok) API. The wire format
// is OpenAI-compatible, so the adapter builds on the openai package and
// adds Grok's server-side builtin tools (web_search, x_search,
// code_execution, collections_search), requested via chat metadata.
package xai

import (
	"log/slog"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/providers/openai"
	"aratta-hq/aratta/pkg/schema"
)

// Provider is the xAI (Grok) adapter.
type Provider struct {
	*openai.Provider
}

// New creates an xAI provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.x.ai/v1"
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for xAI",
		}
	}

	inner, err := openai.NewCompatible(config)
	if err != nil {
		return nil, err
	}

	slog.Info("xAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return &Provider{Provider: inner}, nil
}

// Models returns the static capability matrix for Grok models.
func (p *Provider) Models() []schema.ModelCapabilities {
	return grokModels()
}
