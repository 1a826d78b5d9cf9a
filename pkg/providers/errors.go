package providers

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError is the generic upstream failure: transport errors, 5xx
// responses, and any 4xx not covered by a more specific type. It carries
// the provider name and upstream status code for routing decisions.
type ProviderError struct {
	// Provider is the gateway name of the failing provider.
	Provider string

	// StatusCode is the upstream HTTP status (0 for transport failures).
	StatusCode int

	// Message is the upstream error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AuthenticationError is a 401/403 from the upstream. The router fails
// fast; no fallback.
type AuthenticationError struct {
	Provider string
	Message  string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError is a 429 from the upstream. Surfaced to the caller as-is;
// never fallback-eligible.
type RateLimitError struct {
	Provider string

	// RetryAfter is the upstream-suggested wait, when provided.
	RetryAfter time.Duration

	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// ModelNotFoundError is a 404 from the upstream for an unknown model.
type ModelNotFoundError struct {
	Provider string
	Model    string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("provider %q does not know model %q", e.Provider, e.Model)
}

// CircuitOpenError is returned when the circuit breaker refuses a call.
type CircuitOpenError struct {
	Provider string

	// RecoveryIn is the time until the circuit allows a probe.
	RecoveryIn time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %q, retry in %s", e.Provider, e.RecoveryIn.Round(time.Second))
}

// UnsupportedOperationError is returned when an upstream does not offer a
// requested feature (e.g. embeddings on Anthropic, vision on a text model).
type UnsupportedOperationError struct {
	Provider  string
	Operation string
	Message   string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider %q does not support %s: %s", e.Provider, e.Operation, e.Message)
	}
	return fmt.Sprintf("provider %q does not support %s", e.Provider, e.Operation)
}

// ValidationError is a request validation failure caught before any
// upstream call.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// ParseError is a malformed upstream response.
type ParseError struct {
	Provider    string
	RawResponse string
	Cause       error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ConfigError is an adapter construction failure.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q config error (%s): %s", e.Provider, e.Field, e.Message)
}

// IsRateLimit reports whether err is (or wraps) a rate limit error.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsModelNotFound reports whether err is an unknown-model failure.
func IsModelNotFound(err error) bool {
	var mnf *ModelNotFoundError
	return errors.As(err, &mnf)
}

// IsCircuitOpen reports whether err is a circuit breaker refusal.
func IsCircuitOpen(err error) bool {
	var co *CircuitOpenError
	return errors.As(err, &co)
}

// IsUnsupported reports whether err is an unsupported-operation failure.
func IsUnsupported(err error) bool {
	var uo *UnsupportedOperationError
	return errors.As(err, &uo)
}

// StatusCode extracts the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}
