package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/resilience"
	"aratta-hq/aratta/pkg/schema"
	"aratta-hq/aratta/pkg/telemetry/metrics"
)

// Options wires the router's collaborators. AvailableProviders must
// return provider names in ascending priority order; DefaultModel
// returns the model substituted when falling back to a provider.
type Options struct {
	Registry *providers.Registry
	Resolver *providers.Resolver
	Breaker  *resilience.CircuitBreaker
	Monitor  *resilience.HealthMonitor
	Metrics  *metrics.Metrics

	FallbackEnabled    bool
	AvailableProviders func() []string
	DefaultModel       func(provider string) string
}

// Router orchestrates every request: resolve the model string, gate on
// the circuit breaker, attempt the primary provider, and walk the
// priority-ordered fallback list on failure. Success and failure are
// recorded in the breaker and health monitor; adapters stay free of
// resilience logic.
type Router struct {
	registry *providers.Registry
	resolver *providers.Resolver
	breaker  *resilience.CircuitBreaker
	monitor  *resilience.HealthMonitor
	metrics  *metrics.Metrics

	fallbackEnabled bool
	available       func() []string
	defaultModel    func(provider string) string
}

// NewRouter builds a router from its options.
func NewRouter(opts Options) *Router {
	available := opts.AvailableProviders
	if available == nil {
		available = func() []string { return nil }
	}
	defaultModel := opts.DefaultModel
	if defaultModel == nil {
		defaultModel = func(string) string { return "" }
	}
	return &Router{
		registry:        opts.Registry,
		resolver:        opts.Resolver,
		breaker:         opts.Breaker,
		monitor:         opts.Monitor,
		metrics:         opts.Metrics,
		fallbackEnabled: opts.FallbackEnabled,
		available:       available,
		defaultModel:    defaultModel,
	}
}

// Resolve maps a model string to (provider, model id). A Provider pin
// on the request bypasses inference.
func (r *Router) Resolve(req *schema.ChatRequest) (string, string) {
	if req.Provider != "" {
		provider, model := req.Provider, req.Model
		if model == "" {
			model = r.defaultModel(provider)
		}
		return provider, model
	}
	return r.resolver.Resolve(req.Model)
}

// Chat routes a chat request.
func (r *Router) Chat(ctx context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	provider, model := r.Resolve(req)

	var lastErr error
	if r.canExecute(provider) {
		resp, err := r.attemptChat(ctx, provider, model, req)
		if err == nil {
			return resp, nil
		}
		if providers.IsRateLimit(err) {
			// Rate limits surface immediately: retrying elsewhere
			// would just shift the load spike to another vendor.
			return nil, err
		}
		lastErr = err
	} else {
		lastErr = &providers.CircuitOpenError{
			Provider:   provider,
			RecoveryIn: r.recoveryIn(provider),
		}
		slog.Warn("circuit open, skipping primary", "provider", provider)
	}

	if !r.fallbackEnabled {
		return nil, lastErr
	}

	for _, name := range r.available() {
		if name == provider {
			continue
		}
		if r.state(name) != resilience.CircuitClosed {
			continue
		}
		fallbackModel := r.defaultModel(name)
		if fallbackModel == "" {
			fallbackModel = model
		}
		slog.Warn("falling back", "from", provider, "to", name, "model", fallbackModel)

		resp, err := r.attemptChat(ctx, name, fallbackModel, req)
		if err == nil {
			if r.metrics != nil {
				r.metrics.RecordFallback(provider, name)
			}
			return resp, nil
		}
		if providers.IsRateLimit(err) {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no available providers (primary: %s)", provider)
	}
	return nil, lastErr
}

// attemptChat calls one provider and records the outcome.
func (r *Router) attemptChat(ctx context.Context, name, model string, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	p, err := r.registry.Get(name)
	if err != nil {
		r.recordFailure(name, model, err)
		return nil, err
	}

	attempt := *req
	attempt.Model = model

	start := time.Now()
	resp, err := p.Chat(ctx, &attempt)
	if err != nil {
		if providers.IsRateLimit(err) {
			// Transient by definition: counts toward health history
			// but never against the breaker.
			r.recordMonitorError(name, model, err)
			return nil, err
		}
		r.recordFailure(name, model, err)
		return nil, err
	}

	r.recordSuccess(name, model, "chat", time.Since(start))
	return resp, nil
}

// ChatStream routes a streaming chat request. Provider selection and
// fallback happen before the first frame; once a stream is open the
// frames flow through an observer that records the final outcome.
func (r *Router) ChatStream(ctx context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, string, error) {
	provider, model := r.Resolve(req)

	var lastErr error
	if r.canExecute(provider) {
		frames, err := r.attemptStream(ctx, provider, model, req)
		if err == nil {
			return frames, provider, nil
		}
		if providers.IsRateLimit(err) {
			return nil, provider, err
		}
		lastErr = err
	} else {
		lastErr = &providers.CircuitOpenError{
			Provider:   provider,
			RecoveryIn: r.recoveryIn(provider),
		}
	}

	if !r.fallbackEnabled {
		return nil, provider, lastErr
	}

	for _, name := range r.available() {
		if name == provider {
			continue
		}
		if r.state(name) != resilience.CircuitClosed {
			continue
		}
		fallbackModel := r.defaultModel(name)
		if fallbackModel == "" {
			fallbackModel = model
		}
		frames, err := r.attemptStream(ctx, name, fallbackModel, req)
		if err == nil {
			if r.metrics != nil {
				r.metrics.RecordFallback(provider, name)
			}
			return frames, name, nil
		}
		if providers.IsRateLimit(err) {
			return nil, name, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no available providers (primary: %s)", provider)
	}
	return nil, provider, lastErr
}

func (r *Router) attemptStream(ctx context.Context, name, model string, req *schema.ChatRequest) (<-chan schema.StreamFrame, error) {
	p, err := r.registry.Get(name)
	if err != nil {
		r.recordFailure(name, model, err)
		return nil, err
	}

	attempt := *req
	attempt.Model = model
	attempt.Stream = true

	start := time.Now()
	frames, err := p.ChatStream(ctx, &attempt)
	if err != nil {
		if providers.IsRateLimit(err) {
			r.recordMonitorError(name, model, err)
			return nil, err
		}
		r.recordFailure(name, model, err)
		return nil, err
	}

	return r.observeStream(name, model, start, frames), nil
}

// observeStream forwards frames and records the stream outcome from
// its terminal stop frame.
func (r *Router) observeStream(name, model string, start time.Time, frames <-chan schema.StreamFrame) <-chan schema.StreamFrame {
	out := make(chan schema.StreamFrame)
	go func() {
		defer close(out)
		failed := false
		for frame := range frames {
			if frame.Type == schema.FrameStop && frame.FinishReason == schema.FinishError {
				failed = true
			}
			out <- frame
		}
		if failed {
			r.recordFailure(name, model, fmt.Errorf("stream terminated with error"))
			return
		}
		r.recordSuccess(name, model, "chat_stream", time.Since(start))
	}()
	return out
}

// Embed routes an embedding request. Embeddings never fall back: a
// different provider's vectors live in a different space and are
// useless to the caller.
func (r *Router) Embed(ctx context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	provider, model := r.resolver.Resolve(req.Model)
	if !r.canExecute(provider) {
		return nil, &providers.CircuitOpenError{
			Provider:   provider,
			RecoveryIn: r.recoveryIn(provider),
		}
	}

	p, err := r.registry.Get(provider)
	if err != nil {
		r.recordFailure(provider, model, err)
		return nil, err
	}

	attempt := *req
	attempt.Model = model

	start := time.Now()
	resp, err := p.Embed(ctx, &attempt)
	if err != nil {
		if providers.IsRateLimit(err) {
			r.recordMonitorError(provider, model, err)
			return nil, err
		}
		r.recordFailure(provider, model, err)
		return nil, err
	}
	r.recordSuccess(provider, model, "embed", time.Since(start))
	return resp, nil
}

func (r *Router) canExecute(provider string) bool {
	if r.breaker == nil {
		return true
	}
	return r.breaker.CanExecute(provider)
}

func (r *Router) state(provider string) resilience.CircuitState {
	if r.breaker == nil {
		return resilience.CircuitClosed
	}
	return r.breaker.State(provider)
}

func (r *Router) recoveryIn(provider string) time.Duration {
	if r.breaker == nil {
		return 0
	}
	return r.breaker.RecoveryIn(provider)
}

func (r *Router) recordSuccess(provider, model, operation string, elapsed time.Duration) {
	if r.breaker != nil {
		r.breaker.RecordSuccess(provider)
	}
	if r.monitor != nil {
		r.monitor.RecordSuccess(provider)
	}
	if r.metrics != nil {
		r.metrics.RecordRequest(provider, model, operation, elapsed.Seconds())
	}
}

func (r *Router) recordFailure(provider, model string, err error) {
	if r.breaker != nil {
		r.breaker.RecordFailure(provider, err)
	}
	r.recordMonitorError(provider, model, err)
}

func (r *Router) recordMonitorError(provider, model string, err error) {
	if r.monitor != nil {
		r.monitor.RecordError(provider, model, err)
	}
	if r.metrics != nil {
		r.metrics.RecordError(provider, string(resilience.ClassifyError(err)))
	}
}
