// Package resilience keeps the gateway usable when upstreams misbehave.
// It contains the per-provider circuit breaker, the health monitor that
// classifies errors and fires heal callbacks, the reload manager that
// versions and applies adapter fixes, and the heal worker that diagnoses
// failures with a local model and researches fixes with a cloud model.
package resilience
