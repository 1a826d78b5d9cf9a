package openai

import "aratta-hq/aratta/pkg/schema"

// openaiModels is the static capability matrix.
func openaiModels() []schema.ModelCapabilities {
	return []schema.ModelCapabilities{
		{
			ModelID:              "gpt-4.1",
			Provider:             "openai",
			DisplayName:          "GPT-4.1",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      32768,
			InputCostPerMillion:  2.0,
			OutputCostPerMillion: 8.0,
			Categories:           []string{"chat", "code"},
		},
		{
			ModelID:              "gpt-4.1-mini",
			Provider:             "openai",
			DisplayName:          "GPT-4.1 Mini",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      32768,
			InputCostPerMillion:  0.4,
			OutputCostPerMillion: 1.6,
			Categories:           []string{"chat", "fast"},
		},
		{
			ModelID:              "gpt-4.1-nano",
			Provider:             "openai",
			DisplayName:          "GPT-4.1 Nano",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			ContextWindow:        1000000,
			MaxOutputTokens:      32768,
			InputCostPerMillion:  0.1,
			OutputCostPerMillion: 0.4,
			Categories:           []string{"fast"},
		},
		{
			ModelID:              "o3",
			Provider:             "openai",
			DisplayName:          "O3",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsThinking:     true,
			ContextWindow:        200000,
			MaxOutputTokens:      100000,
			InputCostPerMillion:  2.0,
			OutputCostPerMillion: 8.0,
			Categories:           []string{"reasoning"},
		},
		{
			ModelID:             "text-embedding-3-large",
			Provider:            "openai",
			DisplayName:         "Text Embedding 3 Large",
			ContextWindow:       8191,
			InputCostPerMillion: 0.13,
			Categories:          []string{"embedding"},
		},
	}
}
