package providers

import "testing"

func testResolver() *Resolver {
	return NewResolver(
		DefaultAliases(),
		[]string{"anthropic", "openai", "google", "xai", "ollama"},
		"anthropic",
	)
}

func TestResolverAliases(t *testing.T) {
	r := testResolver()

	tests := []struct {
		input    string
		provider string
		model    string
	}{
		{"fast", "ollama", "llama3.1:8b"},
		{"local", "ollama", "llama3.1:8b"},
		{"sonnet", "anthropic", "claude-sonnet-4-5"},
		{"opus", "anthropic", "claude-opus-4-1"},
		{"gpt", "openai", "gpt-5"},
		{"gemini", "google", "gemini-2.5-pro"},
		{"grok", "xai", "grok-4"},
		{"embed", "openai", "text-embedding-3-large"},
		{"FAST", "ollama", "llama3.1:8b"},
	}
	for _, tt := range tests {
		provider, model := r.Resolve(tt.input)
		if provider != tt.provider || model != tt.model {
			t.Errorf("Resolve(%q) = (%q, %q), want (%q, %q)",
				tt.input, provider, model, tt.provider, tt.model)
		}
	}
}

func TestResolverExplicitPrefix(t *testing.T) {
	r := testResolver()

	provider, model := r.Resolve("anthropic:claude-sonnet-4-5")
	if provider != "anthropic" || model != "claude-sonnet-4-5" {
		t.Errorf("got (%q, %q)", provider, model)
	}

	// Colon in the model name with an unknown prefix is not a provider
	// split; it falls through to inference.
	provider, model = r.Resolve("llama3.1:8b")
	if provider != "ollama" || model != "llama3.1:8b" {
		t.Errorf("got (%q, %q), want ollama with full tag", provider, model)
	}

	// Known provider prefix followed by a tagged model keeps the tag.
	provider, model = r.Resolve("ollama:llama3.1:8b")
	if provider != "ollama" || model != "llama3.1:8b" {
		t.Errorf("got (%q, %q)", provider, model)
	}
}

func TestResolverInference(t *testing.T) {
	r := testResolver()

	tests := []struct {
		model    string
		provider string
	}{
		{"claude-sonnet-4-5", "anthropic"},
		{"gpt-5-mini", "openai"},
		{"o3-mini", "openai"},
		{"codex-mini-latest", "openai"},
		{"gemini-2.5-flash", "google"},
		{"grok-4-fast", "xai"},
		{"mistral-nemo", "ollama"},
		{"qwen2.5-coder", "ollama"},
		{"deepseek-r1", "ollama"},
	}
	for _, tt := range tests {
		provider, model := r.Resolve(tt.model)
		if provider != tt.provider {
			t.Errorf("Resolve(%q) provider = %q, want %q", tt.model, provider, tt.provider)
		}
		if model != tt.model {
			t.Errorf("Resolve(%q) model = %q, want unchanged", tt.model, model)
		}
	}
}

func TestResolverDefaults(t *testing.T) {
	r := testResolver()

	provider, model := r.Resolve("")
	if provider != "anthropic" || model != "" {
		t.Errorf("empty model: got (%q, %q)", provider, model)
	}

	provider, model = r.Resolve("some-unknown-model")
	if provider != "anthropic" || model != "some-unknown-model" {
		t.Errorf("unknown model: got (%q, %q)", provider, model)
	}
}

func TestResolverDeterministic(t *testing.T) {
	r := testResolver()
	p1, m1 := r.Resolve("gpt-5")
	for i := 0; i < 100; i++ {
		p2, m2 := r.Resolve("gpt-5")
		if p1 != p2 || m1 != m2 {
			t.Fatalf("resolution not deterministic: (%q,%q) vs (%q,%q)", p1, m1, p2, m2)
		}
	}
}
