// Package metrics exposes the gateway's Prometheus metrics: request
// and error counters, upstream latency, circuit breaker state, and
// self-heal activity. A JSON summary of the running totals backs the
// resilience metrics API.
package metrics
