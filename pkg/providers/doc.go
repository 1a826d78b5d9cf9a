// Package providers defines the Provider interface every upstream
// adapter implements, the canonical error taxonomy the gateway routes
// on, model-string resolution, and the lazy registry that constructs
// adapter instances on first use.
//
// Concrete adapters live in subpackages (anthropic, openai, google,
// xai, local). They translate canonical requests to each upstream's
// wire format and back; provider-specific types never cross the
// package boundary.
package providers
