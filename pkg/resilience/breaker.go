package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState is one of the three breaker states.
type CircuitState string

// Breaker states.
const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// Breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultSuccessThreshold = 3
)

// CircuitSnapshot is the externally visible state of one circuit.
type CircuitSnapshot struct {
	Provider            string       `json:"provider"`
	State               CircuitState `json:"state"`
	FailureCount        int          `json:"failure_count"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	SuccessCount        int          `json:"success_count"`
	LastFailure         string       `json:"last_failure,omitempty"`
	LastFailureError    string       `json:"last_failure_error,omitempty"`
	LastSuccess         string       `json:"last_success,omitempty"`
	OpenedAt            string       `json:"opened_at,omitempty"`
}

// circuit is the per-provider breaker state.
type circuit struct {
	provider string
	state    CircuitState

	failureCount        int
	consecutiveFailures int
	successCount        int
	halfOpenSuccesses   int

	lastFailure      time.Time
	lastFailureError string
	lastSuccess      time.Time
	openedAt         time.Time
	lastStateChange  time.Time
}

// CircuitBreaker tracks one circuit per provider. CLOSED passes
// requests, OPEN fails fast, HALF_OPEN admits probes after the recovery
// timeout. All methods are safe for concurrent use.
type CircuitBreaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit

	failureThreshold int
	recoveryTimeout  time.Duration
	successThreshold int

	// now is replaceable in tests.
	now func() time.Time

	// onStateChange, when set, observes every transition.
	onStateChange func(provider string, state CircuitState)
}

// NewCircuitBreaker builds a breaker with the default thresholds.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		circuits:         make(map[string]*circuit),
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		successThreshold: DefaultSuccessThreshold,
		now:              time.Now,
	}
}

// SetThresholds overrides the defaults for circuits created afterwards
// and for threshold checks on existing ones.
func (b *CircuitBreaker) SetThresholds(failures int, recovery time.Duration, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if failures > 0 {
		b.failureThreshold = failures
	}
	if recovery > 0 {
		b.recoveryTimeout = recovery
	}
	if successes > 0 {
		b.successThreshold = successes
	}
}

// OnStateChange registers an observer for circuit transitions. Must be
// called before the breaker is shared.
func (b *CircuitBreaker) OnStateChange(fn func(provider string, state CircuitState)) {
	b.onStateChange = fn
}

func (b *CircuitBreaker) get(provider string) *circuit {
	c, ok := b.circuits[provider]
	if !ok {
		c = &circuit{
			provider:        provider,
			state:           CircuitClosed,
			lastStateChange: b.now(),
		}
		b.circuits[provider] = c
	}
	return c
}

// CanExecute reports whether a request may pass. An OPEN circuit whose
// recovery timeout has elapsed transitions to HALF_OPEN as a side
// effect and admits the probe.
func (b *CircuitBreaker) CanExecute(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(provider)
	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if !c.openedAt.IsZero() && b.now().Sub(c.openedAt) >= b.recoveryTimeout {
			b.transition(c, CircuitHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

// RecoveryIn returns the time remaining until an OPEN circuit admits a
// probe, and zero for circuits in any other state.
func (b *CircuitBreaker) RecoveryIn(provider string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(provider)
	if c.state != CircuitOpen || c.openedAt.IsZero() {
		return 0
	}
	remaining := b.recoveryTimeout - b.now().Sub(c.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordSuccess notes a successful request. In HALF_OPEN, the configured
// number of consecutive successes closes the circuit.
func (b *CircuitBreaker) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(provider)
	c.successCount++
	c.lastSuccess = b.now()
	c.consecutiveFailures = 0

	switch c.state {
	case CircuitHalfOpen:
		c.halfOpenSuccesses++
		if c.halfOpenSuccesses >= b.successThreshold {
			b.transition(c, CircuitClosed)
			c.halfOpenSuccesses = 0
		}
	case CircuitClosed:
		c.failureCount = 0
	}
}

// RecordFailure notes a failed request. A failure in HALF_OPEN reopens
// the circuit immediately; crossing the failure threshold in CLOSED
// opens it and returns true, signalling that a heal should be
// considered.
func (b *CircuitBreaker) RecordFailure(provider string, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(provider)
	c.failureCount++
	c.consecutiveFailures++
	c.lastFailure = b.now()
	if err != nil {
		c.lastFailureError = err.Error()
	}

	switch c.state {
	case CircuitHalfOpen:
		b.transition(c, CircuitOpen)
		c.halfOpenSuccesses = 0
	case CircuitClosed:
		if c.failureCount >= b.failureThreshold {
			b.transition(c, CircuitOpen)
			return true
		}
	}
	return false
}

// transition must be called with the lock held.
func (b *CircuitBreaker) transition(c *circuit, state CircuitState) {
	c.state = state
	c.lastStateChange = b.now()
	switch state {
	case CircuitOpen:
		c.openedAt = b.now()
	case CircuitClosed:
		c.openedAt = time.Time{}
		c.failureCount = 0
	}
	slog.Info("circuit state change", "provider", c.provider, "state", state)
	if b.onStateChange != nil {
		b.onStateChange(c.provider, state)
	}
}

// ForceOpen opens the circuit regardless of counters.
func (b *CircuitBreaker) ForceOpen(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(b.get(provider), CircuitOpen)
}

// ForceClose closes the circuit and clears its failure count.
func (b *CircuitBreaker) ForceClose(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(b.get(provider), CircuitClosed)
}

// Reset discards all state for a provider; the next access starts a
// fresh CLOSED circuit.
func (b *CircuitBreaker) Reset(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.circuits, provider)
}

// State returns the current state of one circuit without side effects.
func (b *CircuitBreaker) State(provider string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[provider]; ok {
		return c.state
	}
	return CircuitClosed
}

// Snapshots returns the visible state of every tracked circuit.
func (b *CircuitBreaker) Snapshots() map[string]CircuitSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]CircuitSnapshot, len(b.circuits))
	for provider, c := range b.circuits {
		snap := CircuitSnapshot{
			Provider:            provider,
			State:               c.state,
			FailureCount:        c.failureCount,
			ConsecutiveFailures: c.consecutiveFailures,
			SuccessCount:        c.successCount,
			LastFailureError:    c.lastFailureError,
		}
		if !c.lastFailure.IsZero() {
			snap.LastFailure = c.lastFailure.UTC().Format(time.RFC3339Nano)
		}
		if !c.lastSuccess.IsZero() {
			snap.LastSuccess = c.lastSuccess.UTC().Format(time.RFC3339Nano)
		}
		if !c.openedAt.IsZero() {
			snap.OpenedAt = c.openedAt.UTC().Format(time.RFC3339Nano)
		}
		out[provider] = snap
	}
	return out
}

// OpenCircuits lists providers whose circuit is currently OPEN.
func (b *CircuitBreaker) OpenCircuits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for provider, c := range b.circuits {
		if c.state == CircuitOpen {
			out = append(out, provider)
		}
	}
	return out
}
