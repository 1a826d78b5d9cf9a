package routing

import (
	"context"
	"errors"
	"testing"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/resilience"
	"aratta-hq/aratta/pkg/schema"
	"aratta-hq/aratta/pkg/telemetry/metrics"
)

// stubProvider answers every call with a fixed response or error and
// records the models it was asked for.
type stubProvider struct {
	name   string
	err    error
	models []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Chat(_ context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	s.models = append(s.models, req.Model)
	if s.err != nil {
		return nil, s.err
	}
	return &schema.ChatResponse{
		Provider: s.name,
		Model:    req.Model,
		Content:  "ok from " + s.name,
	}, nil
}

func (s *stubProvider) ChatStream(_ context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, error) {
	s.models = append(s.models, req.Model)
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan schema.StreamFrame, 3)
	ch <- schema.StartFrame("stream-1", req.Model)
	ch <- schema.ContentFrame("hello")
	ch <- schema.StopFrame(schema.FinishStop)
	close(ch)
	return ch, nil
}

func (s *stubProvider) Embed(_ context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &schema.EmbeddingResponse{Provider: s.name, Model: req.Model}, nil
}

func (s *stubProvider) Models() []schema.ModelCapabilities { return nil }

func (s *stubProvider) HealthCheck(context.Context) providers.HealthStatus {
	return providers.HealthStatus{Status: providers.Healthy, Provider: s.name}
}

func (s *stubProvider) Close() error { return nil }

type testStack struct {
	router   *Router
	registry *providers.Registry
	breaker  *resilience.CircuitBreaker
	monitor  *resilience.HealthMonitor
}

// newTestStack wires a router over three stub providers with the
// priority order ollama < anthropic < openai.
func newTestStack(t *testing.T, stubs map[string]*stubProvider) *testStack {
	t.Helper()
	registry := providers.NewRegistry()
	for name, stub := range stubs {
		stub := stub
		registry.Register(name, providers.Config{}, func(providers.Config) (providers.Provider, error) {
			return stub, nil
		})
	}

	defaults := map[string]string{
		"ollama":    "llama3.1:8b",
		"anthropic": "claude-sonnet-4-5",
		"openai":    "gpt-5",
	}
	resolver := providers.NewResolver(providers.DefaultAliases(),
		[]string{"ollama", "anthropic", "openai"}, "ollama")

	router := NewRouter(Options{
		Registry:        registry,
		Resolver:        resolver,
		Breaker:         resilience.NewCircuitBreaker(),
		Monitor:         resilience.NewHealthMonitor(),
		Metrics:         metrics.New(),
		FallbackEnabled: true,
		AvailableProviders: func() []string {
			return []string{"ollama", "anthropic", "openai"}
		},
		DefaultModel: func(name string) string { return defaults[name] },
	})
	return &testStack{
		router:   router,
		registry: registry,
		breaker:  router.breaker,
		monitor:  router.monitor,
	}
}

func TestChatPrimarySuccess(t *testing.T) {
	anthropic := &stubProvider{name: "anthropic"}
	stack := newTestStack(t, map[string]*stubProvider{
		"ollama":    {name: "ollama"},
		"anthropic": anthropic,
		"openai":    {name: "openai"},
	})

	resp, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []schema.Message{{Role: schema.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "anthropic" {
		t.Fatalf("provider = %s, want anthropic", resp.Provider)
	}
	if stack.breaker.State("anthropic") != resilience.CircuitClosed {
		t.Error("success must keep the circuit closed")
	}
}

func TestChatProviderPinBypassesResolution(t *testing.T) {
	openai := &stubProvider{name: "openai"}
	stack := newTestStack(t, map[string]*stubProvider{
		"ollama": {name: "ollama"},
		"openai": openai,
	})

	resp, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Provider: "openai",
		Messages: []schema.Message{{Role: schema.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "openai" {
		t.Fatalf("provider = %s, want openai", resp.Provider)
	}
	if len(openai.models) != 1 || openai.models[0] != "gpt-5" {
		t.Fatalf("pinned provider with no model must use its default, got %v", openai.models)
	}
}

func TestChatRateLimitNoFallback(t *testing.T) {
	rateLimited := &stubProvider{
		name: "anthropic",
		err:  &providers.RateLimitError{Provider: "anthropic", Message: "slow down"},
	}
	openai := &stubProvider{name: "openai"}
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": rateLimited,
		"openai":    openai,
	})

	_, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	if !providers.IsRateLimit(err) {
		t.Fatalf("want rate limit error surfaced, got %v", err)
	}
	if len(openai.models) != 0 {
		t.Error("rate limit must not trigger fallback")
	}
	if stack.breaker.State("anthropic") != resilience.CircuitClosed {
		t.Error("rate limit must not count against the circuit breaker")
	}
	if len(stack.monitor.RecentErrors("anthropic", 10)) != 1 {
		t.Error("rate limit must still be recorded in health history")
	}
}

func TestChatFallbackSubstitutesDefaultModel(t *testing.T) {
	anthropic := &stubProvider{
		name: "anthropic",
		err:  &providers.ProviderError{Provider: "anthropic", StatusCode: 500, Message: "boom"},
	}
	ollama := &stubProvider{name: "ollama"}
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": anthropic,
		"ollama":    ollama,
		"openai":    {name: "openai"},
	})

	resp, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "ollama" {
		t.Fatalf("fallback provider = %s, want ollama (lowest priority after primary)", resp.Provider)
	}
	if len(ollama.models) != 1 || ollama.models[0] != "llama3.1:8b" {
		t.Fatalf("fallback must substitute the fallback provider's default model, got %v", ollama.models)
	}
	if len(stack.monitor.RecentErrors("anthropic", 10)) != 1 {
		t.Error("primary failure must be recorded in health history")
	}
}

func TestChatOpenCircuitSkipsPrimary(t *testing.T) {
	anthropic := &stubProvider{name: "anthropic"}
	ollama := &stubProvider{name: "ollama"}
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": anthropic,
		"ollama":    ollama,
	})
	stack.breaker.ForceOpen("anthropic")

	resp, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "ollama" {
		t.Fatalf("provider = %s, want ollama", resp.Provider)
	}
	if len(anthropic.models) != 0 {
		t.Error("open circuit must skip the primary entirely")
	}
}

func TestChatOpenCircuitFallbackDisabled(t *testing.T) {
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": {name: "anthropic"},
	})
	stack.router.fallbackEnabled = false
	stack.breaker.ForceOpen("anthropic")

	_, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	var open *providers.CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("want CircuitOpenError, got %v", err)
	}
	if open.Provider != "anthropic" {
		t.Errorf("Provider = %s, want anthropic", open.Provider)
	}
}

func TestChatFallbackSkipsNonClosedCircuits(t *testing.T) {
	anthropic := &stubProvider{
		name: "anthropic",
		err:  errors.New("upstream exploded"),
	}
	openai := &stubProvider{name: "openai"}
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": anthropic,
		"ollama":    {name: "ollama"},
		"openai":    openai,
	})
	stack.breaker.ForceOpen("ollama")

	resp, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "openai" {
		t.Fatalf("provider = %s, want openai (ollama circuit open)", resp.Provider)
	}
}

func TestChatAllProvidersFailReturnsLastError(t *testing.T) {
	lastErr := errors.New("openai also down")
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": {name: "anthropic", err: errors.New("anthropic down")},
		"ollama":    {name: "ollama", err: errors.New("ollama down")},
		"openai":    {name: "openai", err: lastErr},
	})

	_, err := stack.router.Chat(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	if !errors.Is(err, lastErr) {
		t.Fatalf("want the last provider's error, got %v", err)
	}
}

func TestChatStreamFallback(t *testing.T) {
	anthropic := &stubProvider{
		name: "anthropic",
		err:  errors.New("stream setup failed"),
	}
	ollama := &stubProvider{name: "ollama"}
	stack := newTestStack(t, map[string]*stubProvider{
		"anthropic": anthropic,
		"ollama":    ollama,
	})

	frames, served, err := stack.router.ChatStream(context.Background(), &schema.ChatRequest{
		Model: "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if served != "ollama" {
		t.Fatalf("served by %s, want ollama", served)
	}

	var types []schema.FrameType
	for frame := range frames {
		types = append(types, frame.Type)
	}
	want := []schema.FrameType{schema.FrameStart, schema.FrameContent, schema.FrameStop}
	if len(types) != len(want) {
		t.Fatalf("frame types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("frame[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestEmbedNoFallback(t *testing.T) {
	openai := &stubProvider{
		name: "openai",
		err:  errors.New("embedding backend down"),
	}
	ollama := &stubProvider{name: "ollama"}
	stack := newTestStack(t, map[string]*stubProvider{
		"openai": openai,
		"ollama": ollama,
	})

	_, err := stack.router.Embed(context.Background(), &schema.EmbeddingRequest{
		Model: "embed",
		Input: schema.SingleInput("hello"),
	})
	if err == nil {
		t.Fatal("want the provider error surfaced without fallback")
	}
}

func TestEmbedCircuitOpen(t *testing.T) {
	stack := newTestStack(t, map[string]*stubProvider{
		"openai": {name: "openai"},
	})
	stack.breaker.ForceOpen("openai")

	_, err := stack.router.Embed(context.Background(), &schema.EmbeddingRequest{
		Model: "embed",
		Input: schema.SingleInput("hello"),
	})
	if !providers.IsCircuitOpen(err) {
		t.Fatalf("want CircuitOpenError, got %v", err)
	}
}
