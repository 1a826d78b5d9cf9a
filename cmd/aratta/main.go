// Aratta is a self-healing LLM gateway.
//
// It fronts multiple LLM providers behind one canonical API, providing:
//   - Model alias resolution and multi-provider routing with fallback
//   - Per-provider circuit breakers
//   - Error-pattern monitoring with model-driven self-healing
//   - A SQLite audit trail of requests and heal cycles
//   - Prometheus metrics and a JSON dashboard
//
// Usage:
//
//	# Start the gateway with default configuration
//	aratta run
//
//	# Start with a custom configuration file
//	aratta run --config /path/to/config.yaml
//
//	# Validate a configuration without starting
//	aratta validate --config /path/to/config.yaml
//
//	# Show version information
//	aratta version
package main

func main() {
	Execute()
}
