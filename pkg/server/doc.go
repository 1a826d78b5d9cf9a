// Package server is the gateway's HTTP front: the canonical chat,
// stream, and embedding endpoints plus the admin surface for circuits,
// healing, fix review, and the audit trail.
//
// Routes:
//
//	GET  /health                               liveness
//	POST /api/v1/chat                          canonical chat
//	POST /api/v1/chat/stream                   canonical chat over SSE
//	POST /api/v1/embed                         embeddings
//	GET  /api/v1/models                        aggregated model catalog
//	GET  /api/v1/health                        per-provider health + circuits
//	POST /api/v1/circuit/{provider}/open       force a circuit open
//	POST /api/v1/circuit/{provider}/close      force a circuit closed
//	POST /api/v1/circuit/{provider}/reset      reset a circuit
//	GET  /api/v1/healing/status                healing + circuit summary
//	POST /api/v1/healing/pause/{provider}      pause healing for a provider
//	POST /api/v1/healing/resume/{provider}     resume healing
//	GET  /api/v1/fixes/pending                 fixes awaiting review
//	POST /api/v1/fixes/{provider}/approve      apply a queued fix
//	POST /api/v1/fixes/{provider}/reject       discard a queued fix
//	GET  /api/v1/fixes/{provider}/history      adapter version history
//	POST /api/v1/fixes/{provider}/rollback/{version}
//	GET  /api/v1/metrics                       JSON counters summary
//	GET  /api/v1/dashboard                     aggregated system view
//	GET  /api/v1/audit/recent                  recent audit records
//	GET  /metrics                              Prometheus exposition
//
// Streaming responses are server-sent events: each frame is written as
// "data: <json>\n\n" and the stream always terminates with
// "data: [DONE]\n\n". Provider errors map to HTTP statuses in
// writeError; see that function for the table.
package server
