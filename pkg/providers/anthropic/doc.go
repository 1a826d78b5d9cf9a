// Package anthropic adapts the gateway's canonical chat surface to the
// Anthropic Messages API, including extended thinking, tool calling,
// and SSE streaming.
package anthropic
