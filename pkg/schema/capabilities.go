package schema

// ModelCapabilities is static capability metadata for one model, declared by
// each adapter at build time. Categories are free-form labels used only as
// routing hints.
type ModelCapabilities struct {
	// ModelID is the upstream model identifier.
	ModelID string `json:"model_id"`

	// Provider is the gateway name of the owning provider.
	Provider string `json:"provider"`

	// DisplayName is a human-readable name.
	DisplayName string `json:"display_name"`

	// SupportsTools indicates tool / function calling support.
	SupportsTools bool `json:"supports_tools"`

	// SupportsVision indicates image input support.
	SupportsVision bool `json:"supports_vision"`

	// SupportsStreaming indicates streaming response support.
	SupportsStreaming bool `json:"supports_streaming"`

	// SupportsJSONMode indicates structured JSON output support.
	SupportsJSONMode bool `json:"supports_json_mode"`

	// SupportsThinking indicates extended thinking / reasoning support.
	SupportsThinking bool `json:"supports_thinking"`

	// ContextWindow is the model's context window in tokens.
	ContextWindow int `json:"context_window"`

	// MaxOutputTokens caps output length, when known.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// InputCostPerMillion is the input token price in USD per million.
	InputCostPerMillion float64 `json:"input_cost_per_million,omitempty"`

	// OutputCostPerMillion is the output token price in USD per million.
	OutputCostPerMillion float64 `json:"output_cost_per_million,omitempty"`

	// Categories are free-form routing-hint labels.
	Categories []string `json:"categories,omitempty"`
}
