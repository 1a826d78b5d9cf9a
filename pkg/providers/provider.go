package providers

import (
	"context"
	"time"

	"aratta-hq/aratta/pkg/schema"
)

// Provider is the contract every upstream adapter implements. An adapter
// owns exactly the translation logic for its upstream: it converts the
// canonical request to the upstream's native wire format, calls the
// upstream, and converts the response back.
//
// Adapters do not retry, do not implement circuit logic, and do not fall
// back; those are the router's responsibility. Adapters never swallow
// errors: every failure is classified into one of the canonical error
// types in this package, with the upstream status code attached.
//
// All methods accept a context.Context and must return promptly when it is
// cancelled.
type Provider interface {
	// Name returns the gateway name of this provider ("anthropic",
	// "ollama", ...).
	Name() string

	// Chat sends a canonical chat request and returns the canonical
	// response with Lineage attached.
	Chat(ctx context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error)

	// ChatStream sends a streaming chat request. The returned channel
	// yields canonical frames in upstream arrival order and is closed
	// after the final frame. On upstream failure mid-stream the last
	// frame is a stop frame with finish_reason=error.
	//
	// The caller must drain the channel or cancel the context; either
	// releases the upstream connection.
	ChatStream(ctx context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, error)

	// Embed translates an embedding request. Upstreams without an
	// embedding surface return an UnsupportedOperationError.
	Embed(ctx context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error)

	// Models returns the adapter's static capability list.
	Models() []schema.ModelCapabilities

	// HealthCheck probes the upstream with a lightweight request.
	HealthCheck(ctx context.Context) HealthStatus

	// Close releases the underlying connection pool. The provider must
	// not be used afterwards.
	Close() error
}

// HealthState is a coarse upstream health classification.
type HealthState string

// Health states reported by HealthCheck.
const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
)

// HealthStatus is the result of one health probe.
type HealthStatus struct {
	// Status is the coarse classification.
	Status HealthState `json:"status"`

	// Provider is the probed provider's gateway name.
	Provider string `json:"provider"`

	// LatencyMS is the probe round-trip in milliseconds.
	LatencyMS float64 `json:"latency_ms,omitempty"`

	// Error describes the failure when Status is unhealthy.
	Error string `json:"error,omitempty"`
}

// Config is the per-provider configuration an adapter is constructed with.
// It is a subset of the gateway configuration, resolved (API key read from
// the environment) before construction.
type Config struct {
	// Name is the provider's gateway name.
	Name string

	// BaseURL is the upstream API base URL.
	BaseURL string

	// APIKey is the resolved credential (empty for local upstreams).
	APIKey string

	// DefaultModel is used on fallback and by bare-alias resolution.
	DefaultModel string

	// Timeout bounds every upstream call.
	Timeout time.Duration

	// Priority orders fallback: lower is preferred, local is 0.
	Priority int

	// MaxIdleConns and MaxIdleConnsPerHost size the connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays pooled.
	IdleConnTimeout time.Duration
}
