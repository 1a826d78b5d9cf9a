// Package google adapts the gateway's canonical surface to the Gemini
// generateContent, streamGenerateContent, and batchEmbedContents APIs.
package google
