package schema

import (
	"time"

	"github.com/google/uuid"
)

// FinishReason says why generation stopped.
type FinishReason string

// Canonical finish reasons. Unknown upstream values map to FinishStop.
const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
)

// ThinkingConfig enables extended thinking on a request. BudgetTokens is
// clamped by each adapter to its upstream's minimum.
type ThinkingConfig struct {
	Enabled      bool `json:"enabled"`
	BudgetTokens int  `json:"budget_tokens,omitempty"`
}

// ChatRequest is a unified chat request. Model may be an alias, an explicit
// "provider:model" pair, or a bare model id; the resolver decides.
type ChatRequest struct {
	// Messages is the ordered conversation, at least one entry.
	Messages []Message `json:"messages"`

	// Model is the caller-supplied model string.
	Model string `json:"model,omitempty"`

	// Provider optionally pins the request to one provider, bypassing
	// model-based inference.
	Provider string `json:"provider,omitempty"`

	// Temperature controls sampling randomness.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens caps the generated output length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling.
	TopP *float64 `json:"top_p,omitempty"`

	// Stop lists sequences that halt generation.
	Stop []string `json:"stop,omitempty"`

	// Tools the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice is "auto", "required", an explicit tool name, or a
	// per-upstream shape passed through opaquely.
	ToolChoice any `json:"tool_choice,omitempty"`

	// Stream requests a streaming response.
	Stream bool `json:"stream,omitempty"`

	// Thinking enables extended thinking with an optional token budget.
	Thinking *ThinkingConfig `json:"thinking,omitempty"`

	// Metadata carries free-form hints forwarded opaquely to upstreams
	// that understand them (e.g. web_search for research calls).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ThinkingEnabled reports whether extended thinking was requested.
func (r *ChatRequest) ThinkingEnabled() bool {
	return r.Thinking != nil && r.Thinking.Enabled
}

// ThinkingBudget returns the requested thinking budget, or the default.
func (r *ChatRequest) ThinkingBudget() int {
	if r.Thinking == nil || r.Thinking.BudgetTokens <= 0 {
		return DefaultThinkingBudget
	}
	return r.Thinking.BudgetTokens
}

// DefaultThinkingBudget is used when thinking is enabled without a budget.
const DefaultThinkingBudget = 10000

// ChatResponse is a unified chat response.
//
// Wire shape: {"id", "content", "role", "model", "provider",
// "finish_reason", "timestamp", "tool_calls?", "thinking?", "usage?",
// "lineage?"}.
type ChatResponse struct {
	// ID is the upstream response id, or a generated opaque id when the
	// upstream provides none.
	ID string `json:"id"`

	// Content is the generated text. May be empty when the model produced
	// only tool calls.
	Content string `json:"content"`

	// Role is always "assistant".
	Role Role `json:"role"`

	// Model is the model that served the request, as reported upstream.
	Model string `json:"model"`

	// Provider is the gateway name of the serving provider.
	Provider string `json:"provider"`

	// FinishReason says why generation stopped. When ToolCalls is
	// non-empty this is always FinishToolCalls.
	FinishReason FinishReason `json:"finish_reason"`

	// Timestamp is the RFC 3339 creation time.
	Timestamp string `json:"timestamp"`

	// ToolCalls lists tool invocations requested by the model.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Thinking lists reasoning blocks, preserved verbatim.
	Thinking []ThinkingBlock `json:"thinking,omitempty"`

	// Usage is token accounting as reported by the upstream.
	Usage *Usage `json:"usage,omitempty"`

	// Lineage is provenance metadata for this response.
	Lineage *Lineage `json:"lineage,omitempty"`
}

// Normalize enforces cross-field invariants: tool calls force
// finish_reason=tool_calls, and missing id/role/timestamp get defaults.
func (r *ChatResponse) Normalize() {
	if len(r.ToolCalls) > 0 {
		r.FinishReason = FinishToolCalls
	}
	if r.FinishReason == "" {
		r.FinishReason = FinishStop
	}
	if r.Role == "" {
		r.Role = RoleAssistant
	}
	if r.ID == "" {
		r.ID = NewResponseID()
	}
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// NewResponseID generates a random opaque response id for upstreams that
// do not provide one.
func NewResponseID() string {
	return "resp_" + uuid.NewString()
}
