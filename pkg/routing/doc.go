// Package routing selects a provider for each request and owns the
// resilience policy around provider calls.
//
// The router resolves the request's model string through the alias
// resolver, gates the primary provider on its circuit breaker, and on
// failure walks the remaining providers in ascending priority order,
// substituting each fallback provider's default model. Rate limits are
// surfaced to the caller immediately and never trigger fallback.
// Adapters stay policy-free; all breaker and health-monitor recording
// happens here.
package routing
