package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two record families in the trail.
type Kind string

const (
	// KindRequest records one routed chat, stream, or embed call.
	KindRequest Kind = "request"

	// KindHeal records one heal cycle outcome.
	KindHeal Kind = "heal"
)

// Record is one audit trail entry. Request records capture the routed
// outcome of an API call; heal records capture a heal cycle verdict.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Operation string `json:"operation,omitempty"`

	// Status is "success" or "error" for requests; for heal records it
	// is the fix status (applied, verified, pending_review, failed).
	Status string `json:"status"`

	LatencyMS int64 `json:"latency_ms,omitempty"`

	// FallbackFrom names the primary provider when this request was
	// served by a fallback.
	FallbackFrom string `json:"fallback_from,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`

	// Detail carries kind-specific extras: token usage for requests,
	// fix type and confidence for heal records.
	Detail map[string]any `json:"detail,omitempty"`
}

// NewRecord builds a record with a fresh id and timestamp.
func NewRecord(kind Kind, provider string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Provider:  provider,
	}
}

// Query filters a trail lookup. Zero values match everything.
type Query struct {
	Kind     Kind
	Provider string
	Status   string
	Since    *time.Time
	Limit    int
}
