package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics owns the Prometheus registry and every gateway metric.
//
// Exposed series:
//   - aratta_requests_total{provider,model,operation}
//   - aratta_request_duration_seconds{provider,operation}
//   - aratta_provider_errors_total{provider,error_type}
//   - aratta_circuit_state{provider} (0=closed, 1=half_open, 2=open)
//   - aratta_circuit_opens_total{provider}
//   - aratta_heal_requests_total{provider,error_type}
//   - aratta_heal_duration_seconds{provider}
//   - aratta_fallbacks_total{from,to}
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	circuitOpens    *prometheus.CounterVec
	healRequests    *prometheus.CounterVec
	healDuration    *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec

	// Plain totals backing the JSON summary endpoint.
	totalRequests     atomic.Int64
	totalErrors       atomic.Int64
	totalCircuitOpens atomic.Int64
	totalHealRequests atomic.Int64
	totalFallbacks    atomic.Int64
}

// Summary is the JSON form served by the resilience metrics endpoint.
type Summary struct {
	Requests       int64 `json:"requests"`
	ProviderErrors int64 `json:"provider_errors"`
	CircuitOpens   int64 `json:"circuit_opens"`
	HealRequests   int64 `json:"heal_requests"`
	Fallbacks      int64 `json:"fallbacks"`
}

// New builds the metrics set on a fresh registry, with the standard Go
// and process collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aratta",
			Name:      "requests_total",
			Help:      "Requests routed to each provider.",
		}, []string{"provider", "model", "operation"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aratta",
			Name:      "request_duration_seconds",
			Help:      "Upstream round-trip duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "operation"}),

		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aratta",
			Name:      "provider_errors_total",
			Help:      "Provider errors by classified type.",
		}, []string{"provider", "error_type"}),

		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aratta",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open).",
		}, []string{"provider"}),

		circuitOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aratta",
			Name:      "circuit_opens_total",
			Help:      "Circuit breaker open transitions.",
		}, []string{"provider"}),

		healRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aratta",
			Name:      "heal_requests_total",
			Help:      "Self-heal cycles requested.",
		}, []string{"provider", "error_type"}),

		healDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aratta",
			Name:      "heal_duration_seconds",
			Help:      "Heal cycle duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"provider"}),

		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aratta",
			Name:      "fallbacks_total",
			Help:      "Requests rerouted from one provider to another.",
		}, []string{"from", "to"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.providerErrors,
		m.circuitState,
		m.circuitOpens,
		m.healRequests,
		m.healDuration,
		m.fallbacks,
	)
	return m
}

// RecordRequest counts one routed request and its duration.
func (m *Metrics) RecordRequest(provider, model, operation string, seconds float64) {
	m.requests.WithLabelValues(provider, model, operation).Inc()
	m.requestDuration.WithLabelValues(provider, operation).Observe(seconds)
	m.totalRequests.Add(1)
}

// RecordError counts one classified provider error.
func (m *Metrics) RecordError(provider, errorType string) {
	m.providerErrors.WithLabelValues(provider, errorType).Inc()
	m.totalErrors.Add(1)
}

// SetCircuitState updates the state gauge for a provider.
// State names map to 0 (closed), 1 (half_open), 2 (open).
func (m *Metrics) SetCircuitState(provider, state string) {
	var value float64
	switch state {
	case "half_open":
		value = 1
	case "open":
		value = 2
		m.circuitOpens.WithLabelValues(provider).Inc()
		m.totalCircuitOpens.Add(1)
	}
	m.circuitState.WithLabelValues(provider).Set(value)
}

// RecordHealRequest counts one heal cycle trigger.
func (m *Metrics) RecordHealRequest(provider, errorType string) {
	m.healRequests.WithLabelValues(provider, errorType).Inc()
	m.totalHealRequests.Add(1)
}

// RecordHealDuration observes a completed heal cycle.
func (m *Metrics) RecordHealDuration(provider string, seconds float64) {
	m.healDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordFallback counts one cross-provider reroute.
func (m *Metrics) RecordFallback(from, to string) {
	m.fallbacks.WithLabelValues(from, to).Inc()
	m.totalFallbacks.Add(1)
}

// GetSummary returns the running totals for the JSON endpoint.
func (m *Metrics) GetSummary() Summary {
	return Summary{
		Requests:       m.totalRequests.Load(),
		ProviderErrors: m.totalErrors.Load(),
		CircuitOpens:   m.totalCircuitOpens.Load(),
		HealRequests:   m.totalHealRequests.Load(),
		Fallbacks:      m.totalFallbacks.Load(),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
