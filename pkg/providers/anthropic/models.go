package anthropic

import "aratta-hq/aratta/pkg/schema"

// claudeModels is the static capability matrix for the Claude 4.5
// generation.
func claudeModels() []schema.ModelCapabilities {
	return []schema.ModelCapabilities{
		{
			ModelID:              "claude-opus-4-5-20251101",
			Provider:             "anthropic",
			DisplayName:          "Claude Opus 4.5",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        200000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  5.0,
			OutputCostPerMillion: 25.0,
			Categories:           []string{"chat", "reasoning", "code"},
		},
		{
			ModelID:              "claude-sonnet-4-5-20250929",
			Provider:             "anthropic",
			DisplayName:          "Claude Sonnet 4.5",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        200000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  3.0,
			OutputCostPerMillion: 15.0,
			Categories:           []string{"chat", "code"},
		},
		{
			ModelID:              "claude-haiku-4-5-20251001",
			Provider:             "anthropic",
			DisplayName:          "Claude Haiku 4.5",
			SupportsTools:        true,
			SupportsVision:       true,
			SupportsStreaming:    true,
			SupportsJSONMode:     true,
			SupportsThinking:     true,
			ContextWindow:        200000,
			MaxOutputTokens:      64000,
			InputCostPerMillion:  1.0,
			OutputCostPerMillion: 5.0,
			Categories:           []string{"chat", "fast"},
		},
	}
}
