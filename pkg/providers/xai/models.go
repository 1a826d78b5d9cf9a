package xai

import "aratta-hq/aratta/pkg/schema"

// grokModels is the static capability matrix for the Grok 4 generation.
func grokModels() []schema.ModelCapabilities {
	return []schema.ModelCapabilities{
		{
			ModelID:           "grok-4",
			Provider:          "xai",
			DisplayName:       "Grok 4",
			SupportsTools:     true,
			SupportsVision:    true,
			SupportsStreaming: true,
			SupportsJSONMode:  true,
			SupportsThinking:  true,
			ContextWindow:     131072,
			MaxOutputTokens:   16384,
			Categories:        []string{"reasoning", "agentic"},
		},
		{
			ModelID:           "grok-4-fast",
			Provider:          "xai",
			DisplayName:       "Grok 4 Fast",
			SupportsTools:     true,
			SupportsVision:    true,
			SupportsStreaming: true,
			SupportsJSONMode:  true,
			SupportsThinking:  true,
			ContextWindow:     131072,
			MaxOutputTokens:   16384,
			Categories:        []string{"agentic", "fast"},
		},
		{
			ModelID:           "grok-4-1-fast",
			Provider:          "xai",
			DisplayName:       "Grok 4.1 Fast",
			SupportsTools:     true,
			SupportsVision:    true,
			SupportsStreaming: true,
			SupportsJSONMode:  true,
			SupportsThinking:  true,
			ContextWindow:     131072,
			MaxOutputTokens:   16384,
			Categories:        []string{"agentic", "research"},
		},
	}
}
