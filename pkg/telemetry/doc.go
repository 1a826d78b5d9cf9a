// Package telemetry groups the gateway's observability concerns:
// structured logging (telemetry/logging) and Prometheus metrics
// (telemetry/metrics).
package telemetry
