package resilience

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ErrorKind classifies an upstream failure for healing decisions.
type ErrorKind string

// Error kinds. The first five are healable contract drift; the next
// three are transient and never trigger healing.
const (
	ErrSchemaMismatch  ErrorKind = "schema_mismatch"
	ErrUnknownField    ErrorKind = "unknown_field"
	ErrDeprecatedField ErrorKind = "deprecated_field"
	ErrStreamingFormat ErrorKind = "streaming_format"
	ErrToolSchema      ErrorKind = "tool_schema"
	ErrConnection      ErrorKind = "connection_error"
	ErrTimeout         ErrorKind = "timeout"
	ErrRateLimit       ErrorKind = "rate_limit"
	ErrAuth            ErrorKind = "auth_error"
	ErrUnknown         ErrorKind = "unknown"
)

// ClassifyError maps an error to its kind by message inspection. The
// checks run in fixed order; the first match wins.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"):
		return ErrTimeout
	case strings.Contains(s, "connection"), strings.Contains(s, "refused"), strings.Contains(s, "reset"):
		return ErrConnection
	case strings.Contains(s, "429"), strings.Contains(s, "rate"):
		return ErrRateLimit
	case strings.Contains(s, "401"), strings.Contains(s, "unauthorized"):
		return ErrAuth
	case strings.Contains(s, "schema"), strings.Contains(s, "validation"):
		return ErrSchemaMismatch
	case strings.Contains(s, "tool"), strings.Contains(s, "function"):
		return ErrToolSchema
	default:
		return ErrUnknown
	}
}

// Healable reports whether this kind of error can be fixed by adapting
// the translator.
func (k ErrorKind) Healable() bool {
	switch k {
	case ErrSchemaMismatch, ErrUnknownField, ErrDeprecatedField, ErrStreamingFormat, ErrToolSchema:
		return true
	}
	return false
}

// Transient reports whether this kind of error resolves on its own.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrRateLimit, ErrConnection, ErrTimeout:
		return true
	}
	return false
}

var digitsPattern = regexp.MustCompile(`\d+`)

// AdapterError is one recorded upstream failure.
type AdapterError struct {
	Provider            string    `json:"provider"`
	Model               string    `json:"model"`
	Kind                ErrorKind `json:"error_type"`
	Message             string    `json:"error_message"`
	Timestamp           time.Time `json:"timestamp"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Signature is a stable digest of the error shape: digits in the
// message are normalized so "timeout after 30s" and "timeout after 60s"
// collide, letting repeat occurrences of one defect be grouped.
func (e AdapterError) Signature() string {
	normalized := digitsPattern.ReplaceAllString(strings.ToLower(e.Message), "N")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", e.Provider, e.Kind, normalized)))
	return hex.EncodeToString(sum[:])[:16]
}

// HealCallback is invoked when a provider crosses the error threshold.
// It receives the triggering error and up to the last five recorded
// errors for context.
type HealCallback func(provider string, latest AdapterError, recent []AdapterError)

// Monitor defaults.
const (
	DefaultErrorThreshold = 3
	DefaultErrorWindow    = 300 * time.Second
	DefaultHealCooldown   = 600 * time.Second
	MaxErrorHistory       = 100
)

// ProviderHealth summarizes one provider's recent error activity.
type ProviderHealth struct {
	RecentErrors        int  `json:"recent_errors"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
	Healing             bool `json:"healing"`
	Paused              bool `json:"paused"`
}

// HealthMonitor tracks per-provider error history in a sliding window
// and fires heal callbacks when non-transient errors accumulate. One
// heal per provider runs at a time, with a cooldown between requests.
type HealthMonitor struct {
	mu sync.Mutex

	history             map[string][]AdapterError
	consecutiveFailures map[string]int
	healing             map[string]bool
	paused              map[string]bool
	lastHealRequest     map[string]time.Time

	errorThreshold int
	errorWindow    time.Duration
	healCooldown   time.Duration

	callbacks []HealCallback
	now       func() time.Time
}

// NewHealthMonitor builds an empty monitor with the default tuning.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		history:             make(map[string][]AdapterError),
		consecutiveFailures: make(map[string]int),
		healing:             make(map[string]bool),
		paused:              make(map[string]bool),
		lastHealRequest:     make(map[string]time.Time),
		errorThreshold:      DefaultErrorThreshold,
		errorWindow:         DefaultErrorWindow,
		healCooldown:        DefaultHealCooldown,
		now:                 time.Now,
	}
}

// SetThresholds overrides the tuning. Zero values keep the current
// setting.
func (m *HealthMonitor) SetThresholds(threshold int, window, cooldown time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threshold > 0 {
		m.errorThreshold = threshold
	}
	if window > 0 {
		m.errorWindow = window
	}
	if cooldown > 0 {
		m.healCooldown = cooldown
	}
}

// OnHealRequest registers a callback fired when healing is needed.
// Callbacks run synchronously inside RecordError; long work belongs in
// a goroutine started by the callback.
func (m *HealthMonitor) OnHealRequest(cb HealCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// RecordError records a failure and returns true when it triggered a
// heal request.
func (m *HealthMonitor) RecordError(provider, model string, err error) bool {
	m.mu.Lock()

	m.consecutiveFailures[provider]++
	entry := AdapterError{
		Provider:            provider,
		Model:               model,
		Kind:                ClassifyError(err),
		Message:             err.Error(),
		Timestamp:           m.now(),
		ConsecutiveFailures: m.consecutiveFailures[provider],
	}

	h := append(m.history[provider], entry)
	if len(h) > MaxErrorHistory {
		h = h[len(h)-MaxErrorHistory:]
	}
	m.history[provider] = h

	if !m.shouldHeal(entry) {
		m.mu.Unlock()
		return false
	}

	m.healing[provider] = true
	m.lastHealRequest[provider] = m.now()

	recent := h
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentCopy := make([]AdapterError, len(recent))
	copy(recentCopy, recent)
	callbacks := make([]HealCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	slog.Warn("heal requested",
		"provider", provider,
		"error_type", entry.Kind,
		"signature", entry.Signature(),
	)
	for _, cb := range callbacks {
		cb(provider, entry, recentCopy)
	}
	return true
}

// RecordSuccess resets the consecutive failure counter.
func (m *HealthMonitor) RecordSuccess(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures[provider] = 0
}

// shouldHeal must be called with the lock held.
func (m *HealthMonitor) shouldHeal(err AdapterError) bool {
	if m.paused[err.Provider] || m.healing[err.Provider] {
		return false
	}
	if last, ok := m.lastHealRequest[err.Provider]; ok && m.now().Sub(last) < m.healCooldown {
		return false
	}
	if err.Kind.Transient() {
		return false
	}
	cutoff := m.now().Add(-m.errorWindow)
	recent := 0
	for _, e := range m.history[err.Provider] {
		if e.Timestamp.After(cutoff) {
			recent++
		}
	}
	return recent >= m.errorThreshold
}

// HealComplete marks a heal attempt finished. On success the provider's
// error history is cleared.
func (m *HealthMonitor) HealComplete(provider string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.healing, provider)
	if success {
		m.history[provider] = nil
		m.consecutiveFailures[provider] = 0
	}
}

// PauseHealing stops heal requests for a provider until resumed.
// Errors are still recorded.
func (m *HealthMonitor) PauseHealing(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused[provider] = true
}

// ResumeHealing re-enables heal requests for a provider.
func (m *HealthMonitor) ResumeHealing(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.paused, provider)
}

// Paused reports whether healing is paused for the provider.
func (m *HealthMonitor) Paused(provider string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused[provider]
}

// Healing reports whether a heal is in progress for the provider.
func (m *HealthMonitor) Healing(provider string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healing[provider]
}

// Summary returns per-provider error activity within the window.
func (m *HealthMonitor) Summary() map[string]ProviderHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.errorWindow)
	out := make(map[string]ProviderHealth, len(m.history))
	for provider, errs := range m.history {
		recent := 0
		for _, e := range errs {
			if e.Timestamp.After(cutoff) {
				recent++
			}
		}
		out[provider] = ProviderHealth{
			RecentErrors:        recent,
			ConsecutiveFailures: m.consecutiveFailures[provider],
			Healing:             m.healing[provider],
			Paused:              m.paused[provider],
		}
	}
	return out
}

// RecentErrors returns up to n most recent errors for a provider,
// oldest first.
func (m *HealthMonitor) RecentErrors(provider string, n int) []AdapterError {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[provider]
	if len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]AdapterError, len(h))
	copy(out, h)
	return out
}
