// Package openai adapts the gateway's canonical surface to the OpenAI
// Chat Completions and Embeddings APIs.
package openai
