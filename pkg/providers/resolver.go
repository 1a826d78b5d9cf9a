package providers

import "strings"

// inferenceRules maps model-name substrings to the provider that serves
// them. Order matters: earlier rules win.
var inferenceRules = []struct {
	substrings []string
	provider   string
}{
	{[]string{"claude"}, "anthropic"},
	{[]string{"gpt", "o1", "o3", "o4", "codex"}, "openai"},
	{[]string{"gemini"}, "google"},
	{[]string{"grok"}, "xai"},
	{[]string{"llama", "mistral", "qwen", "phi", "deepseek"}, "ollama"},
}

// Resolver turns user-facing model strings into (provider, model) pairs.
// Resolution is deterministic and side-effect free: alias table first,
// then explicit provider:model prefix, then substring inference, then
// the default provider.
type Resolver struct {
	aliases         map[string]string
	knownProviders  map[string]bool
	defaultProvider string
}

// NewResolver builds a resolver over the configured alias table and the
// set of provider names the gateway knows about.
func NewResolver(aliases map[string]string, knownProviders []string, defaultProvider string) *Resolver {
	known := make(map[string]bool, len(knownProviders))
	for _, name := range knownProviders {
		known[name] = true
	}
	normalized := make(map[string]string, len(aliases))
	for alias, target := range aliases {
		normalized[strings.ToLower(alias)] = target
	}
	return &Resolver{
		aliases:         normalized,
		knownProviders:  known,
		defaultProvider: defaultProvider,
	}
}

// Resolve maps a model string to a provider name and the model name that
// provider should receive. An empty model resolves to the default
// provider with an empty model, letting the provider's configured
// default apply downstream.
func (r *Resolver) Resolve(model string) (provider, resolved string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return r.defaultProvider, ""
	}

	// Alias table, one level deep.
	if target, ok := r.aliases[strings.ToLower(model)]; ok {
		model = target
	}

	// Explicit provider:model. The left side must name a known provider;
	// model names with colons (for example ollama tags) fall through.
	if prefix, rest, ok := strings.Cut(model, ":"); ok {
		if r.knownProviders[strings.ToLower(prefix)] && rest != "" {
			return strings.ToLower(prefix), rest
		}
	}

	// Substring inference over the lowercased model name.
	lower := strings.ToLower(model)
	for _, rule := range inferenceRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.provider, model
			}
		}
	}

	return r.defaultProvider, model
}

// DefaultAliases is the built-in alias table applied when the
// configuration does not override it.
func DefaultAliases() map[string]string {
	return map[string]string{
		"fast":   "ollama:llama3.1:8b",
		"local":  "ollama:llama3.1:8b",
		"sonnet": "anthropic:claude-sonnet-4-5",
		"opus":   "anthropic:claude-opus-4-1",
		"haiku":  "anthropic:claude-haiku-4-5",
		"gpt":    "openai:gpt-5",
		"gemini": "google:gemini-2.5-pro",
		"grok":   "xai:grok-4",
		"embed":  "openai:text-embedding-3-large",
	}
}
