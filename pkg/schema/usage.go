package schema

import "time"

// SourceSystem and SourceVersion identify this gateway in Lineage records.
const (
	SourceSystem  = "aratta"
	SourceVersion = "0.1.0"
)

// Usage is token accounting for a single request. Values are reported as
// provided by the upstream; the gateway does not recount. When all three of
// input, output, and total are present, total = input + output.
type Usage struct {
	// InputTokens is the number of prompt tokens.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the number of generated tokens.
	OutputTokens int `json:"output_tokens"`

	// TotalTokens is input + output.
	TotalTokens int `json:"total_tokens"`

	// CacheReadTokens is the number of tokens served from an upstream
	// prompt cache, when the upstream reports it.
	CacheReadTokens *int `json:"cache_read_tokens,omitempty"`

	// CacheWriteTokens is the number of tokens written to an upstream
	// prompt cache, when the upstream reports it.
	CacheWriteTokens *int `json:"cache_write_tokens,omitempty"`

	// ReasoningTokens is the number of reasoning tokens, when reported.
	ReasoningTokens *int `json:"reasoning_tokens,omitempty"`
}

// Lineage is provenance metadata attached to every response: which upstream
// actually served it, with what model, and how long it took.
type Lineage struct {
	// Provider is the gateway name of the serving provider.
	Provider string `json:"provider"`

	// Model is the model id the upstream reported.
	Model string `json:"model"`

	// ModelVersion is the upstream's model version string, when distinct.
	ModelVersion string `json:"model_version,omitempty"`

	// RequestID is the upstream request id, when provided.
	RequestID string `json:"request_id,omitempty"`

	// CreatedAt is the RFC 3339 timestamp of response creation.
	CreatedAt string `json:"created_at"`

	// LatencyMS is the end-to-end upstream call latency in milliseconds.
	LatencyMS float64 `json:"latency_ms"`

	// SourceSystem identifies the gateway that produced this record.
	SourceSystem string `json:"source_system"`

	// SourceVersion is the gateway version.
	SourceVersion string `json:"source_version"`
}

// NewLineage builds a Lineage record stamped with the current time and the
// gateway's identity.
func NewLineage(provider, model string, latency time.Duration) Lineage {
	return Lineage{
		Provider:      provider,
		Model:         model,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
		LatencyMS:     float64(latency.Microseconds()) / 1000.0,
		SourceSystem:  SourceSystem,
		SourceVersion: SourceVersion,
	}
}

// IntPtr returns a pointer to v. Helper for optional Usage fields.
func IntPtr(v int) *int {
	return &v
}
