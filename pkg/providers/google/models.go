package google

import "aratta-hq/aratta/pkg/schema"

// geminiModels is the static capability matrix for the Gemini 3 and 2.5
// generations.
func geminiModels() []schema.ModelCapabilities {
	return []schema.ModelCapabilities{
		{
			ModelID:              "gemini-3-pro-preview",
			Provider:             "google",
			DisplayName:          "Gemini 3 Pro",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  2.0,
			OutputCostPerMillion: 12.0,
			Categories:           []string{"chat", "reasoning"},
		},
		{
			ModelID:              "gemini-3-flash-preview",
			Provider:             "google",
			DisplayName:          "Gemini 3 Flash",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  0.5,
			OutputCostPerMillion: 3.0,
			Categories:           []string{"chat", "fast"},
		},
		{
			ModelID:              "gemini-2.5-pro",
			Provider:             "google",
			DisplayName:          "Gemini 2.5 Pro",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  1.25,
			OutputCostPerMillion: 5.0,
			Categories:           []string{"chat", "reasoning"},
		},
		{
			ModelID:              "gemini-2.5-flash",
			Provider:             "google",
			DisplayName:          "Gemini 2.5 Flash",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  0.15,
			OutputCostPerMillion: 0.6,
			Categories:           []string{"chat", "code"},
		},
		{
			ModelID:              "gemini-2.5-flash-lite",
			Provider:             "google",
			DisplayName:          "Gemini 2.5 Flash-Lite",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  0.075,
			OutputCostPerMillion: 0.3,
			Categories:           []string{"fast", "cheap"},
		},
	}
}
