package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aratta-hq/aratta/pkg/audit"
	"aratta-hq/aratta/pkg/config"
	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/resilience"
	"aratta-hq/aratta/pkg/routing"
	"aratta-hq/aratta/pkg/schema"
	"aratta-hq/aratta/pkg/telemetry/metrics"
)

type fakeProvider struct {
	name string
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(_ context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &schema.ChatResponse{
		Provider: f.name,
		Model:    req.Model,
		Content:  "hello from " + f.name,
		Usage:    &schema.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeProvider) ChatStream(_ context.Context, req *schema.ChatRequest) (<-chan schema.StreamFrame, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan schema.StreamFrame, 3)
	ch <- schema.StartFrame("s1", req.Model)
	ch <- schema.ContentFrame("streamed")
	ch <- schema.StopFrame(schema.FinishStop)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Embed(_ context.Context, req *schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &schema.EmbeddingResponse{
		Provider:   f.name,
		Model:      req.Model,
		Embeddings: []schema.Embedding{{Embedding: []float64{0.1, 0.2}, Index: 0}},
	}, nil
}

func (f *fakeProvider) Models() []schema.ModelCapabilities {
	return []schema.ModelCapabilities{{Provider: f.name, ModelID: f.name + "-model"}}
}

func (f *fakeProvider) HealthCheck(context.Context) providers.HealthStatus {
	return providers.HealthStatus{Status: providers.Healthy, Provider: f.name}
}

func (f *fakeProvider) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Providers: map[string]*config.ProviderConfig{
			"anthropic": {BaseURL: "http://test", DefaultModel: "claude-sonnet-4-5", Priority: 1},
			"ollama":    {BaseURL: "http://test", DefaultModel: "llama3.1:8b", Priority: 0},
		},
		Aliases: providers.DefaultAliases(),
	}
	cfg.Server.Port = 8084
	cfg.Behavior.DefaultProvider = "ollama"
	cfg.Healing.HealModel = "local"
	cfg.Healing.ResearchModel = "grok"
	cfg.Audit.SQLitePath = filepath.Join(t.TempDir(), "audit.db")
	return cfg
}

func newTestServer(t *testing.T, stubs map[string]*fakeProvider) *Server {
	t.Helper()
	cfg := testConfig(t)

	registry := providers.NewRegistry()
	for name, stub := range stubs {
		stub := stub
		registry.Register(name, providers.Config{}, func(providers.Config) (providers.Provider, error) {
			return stub, nil
		})
	}

	resolver := providers.NewResolver(cfg.Aliases, cfg.ProviderNames(), cfg.Behavior.DefaultProvider)
	breaker := resilience.NewCircuitBreaker()
	monitor := resilience.NewHealthMonitor()
	m := metrics.New()

	store, err := audit.NewStore(audit.StoreConfig{Path: cfg.Audit.SQLitePath})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	router := routing.NewRouter(routing.Options{
		Registry:           registry,
		Resolver:           resolver,
		Breaker:            breaker,
		Monitor:            monitor,
		Metrics:            m,
		FallbackEnabled:    cfg.Behavior.FallbackEnabled(),
		AvailableProviders: cfg.AvailableProviders,
		DefaultModel: func(name string) string {
			if p := cfg.Provider(name); p != nil {
				return p.DefaultModel
			}
			return ""
		},
	})

	return NewServer(cfg, Deps{
		Registry: registry,
		Resolver: resolver,
		Router:   router,
		Breaker:  breaker,
		Monitor:  monitor,
		Metrics:  m,
		Audit:    store,
	})
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"anthropic": {name: "anthropic"},
		"ollama":    {name: "ollama"},
	})
	rec := postJSON(t, srv.Handler(), "/api/v1/chat",
		`{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp schema.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("provider = %s", resp.Provider)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response must carry a request id")
	}
}

func TestChatEndpointBadRequest(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	handler := srv.Handler()

	if rec := postJSON(t, handler, "/api/v1/chat", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
	if rec := postJSON(t, handler, "/api/v1/chat", `{"model":"local"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty messages: status = %d", rec.Code)
	}
}

func TestChatEndpointRateLimit(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"anthropic": {
			name: "anthropic",
			err:  &providers.RateLimitError{Provider: "anthropic", Message: "rate limited"},
		},
		"ollama": {name: "ollama"},
	})
	rec := postJSON(t, srv.Handler(), "/api/v1/chat",
		`{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestChatEndpointCircuitOpen(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"ollama": {name: "ollama"},
	})
	srv.router = routing.NewRouter(routing.Options{
		Registry:        srv.registry,
		Resolver:        srv.resolver,
		Breaker:         srv.breaker,
		Monitor:         srv.monitor,
		FallbackEnabled: false,
	})
	srv.breaker.ForceOpen("ollama")

	rec := postJSON(t, srv.Handler(), "/api/v1/chat",
		`{"model":"llama3.1:8b","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body = %s", rec.Code, rec.Body.String())
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	rec := postJSON(t, srv.Handler(), "/api/v1/chat/stream",
		`{"model":"local","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %s", ct)
	}

	var events []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want start/content/stop/[DONE]: %v", len(events), events)
	}
	if events[len(events)-1] != schema.StreamDone {
		t.Errorf("last event = %q, want %q", events[len(events)-1], schema.StreamDone)
	}
	var frame schema.StreamFrame
	if err := json.Unmarshal([]byte(events[1]), &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != schema.FrameContent || frame.Content != "streamed" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestEmbedEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"ollama": {name: "ollama"},
		"openai": {name: "openai"},
	})
	rec := postJSON(t, srv.Handler(), "/api/v1/embed",
		`{"model":"llama3.1:8b","input":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp schema.EmbeddingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Embeddings) != 1 {
		t.Errorf("embeddings = %d", len(resp.Embeddings))
	}
}

func TestModelsEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"anthropic": {name: "anthropic"},
		"ollama":    {name: "ollama"},
	})
	rec := get(t, srv.Handler(), "/api/v1/models")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Models  []schema.ModelCapabilities `json:"models"`
		Aliases map[string]string          `json:"aliases"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 2 {
		t.Errorf("models = %d, want 2", len(body.Models))
	}
	if body.Aliases["sonnet"] == "" {
		t.Error("aliases must include the default table")
	}
}

func TestProviderHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"ollama": {name: "ollama"},
	})
	rec := get(t, srv.Handler(), "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Providers map[string]providers.HealthStatus `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Providers["ollama"].Status != providers.Healthy {
		t.Errorf("ollama health = %+v", body.Providers["ollama"])
	}
}

func TestCircuitAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	handler := srv.Handler()

	if rec := postJSON(t, handler, "/api/v1/circuit/ollama/open", ""); rec.Code != http.StatusOK {
		t.Fatalf("open: status = %d", rec.Code)
	}
	if srv.breaker.State("ollama") != resilience.CircuitOpen {
		t.Error("circuit must be open after force open")
	}

	if rec := postJSON(t, handler, "/api/v1/circuit/ollama/close", ""); rec.Code != http.StatusOK {
		t.Fatalf("close: status = %d", rec.Code)
	}
	if srv.breaker.State("ollama") != resilience.CircuitClosed {
		t.Error("circuit must be closed after force close")
	}

	if rec := postJSON(t, handler, "/api/v1/circuit/ollama/reset", ""); rec.Code != http.StatusOK {
		t.Fatalf("reset: status = %d", rec.Code)
	}
}

func TestHealingStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	rec := get(t, srv.Handler(), "/api/v1/healing/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["heal_model"] != "local" {
		t.Errorf("heal_model = %v", body["heal_model"])
	}
}

func TestHealingPauseResume(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	handler := srv.Handler()

	if rec := postJSON(t, handler, "/api/v1/healing/pause/ollama", ""); rec.Code != http.StatusOK {
		t.Fatalf("pause: status = %d", rec.Code)
	}
	if !srv.monitor.Paused("ollama") {
		t.Error("monitor must be paused")
	}
	if rec := postJSON(t, handler, "/api/v1/healing/resume/ollama", ""); rec.Code != http.StatusOK {
		t.Fatalf("resume: status = %d", rec.Code)
	}
	if srv.monitor.Paused("ollama") {
		t.Error("monitor must be resumed")
	}
}

func TestRejectFixWithoutPending(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	srv.reloader = mustReloadManager(t)
	rec := postJSON(t, srv.Handler(), "/api/v1/fixes/ollama/reject?reason=nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func mustReloadManager(t *testing.T) *resilience.ReloadManager {
	t.Helper()
	m, err := resilience.NewReloadManager(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestWriteErrorTransportFailureMapsToBadGateway(t *testing.T) {
	// A timeout or connection failure carries no upstream status code
	// but is still an upstream fault, not a gateway bug.
	rec := httptest.NewRecorder()
	writeError(rec, &providers.ProviderError{
		Provider: "openai",
		Message:  "connection error: dial tcp 127.0.0.1:443: connection refused",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Type != "provider_error" || body.Error.Provider != "openai" {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestResolvingQueuedFixReleasesHealingFlag(t *testing.T) {
	for _, action := range []string{"approve", "reject"} {
		t.Run(action, func(t *testing.T) {
			srv := newTestServer(t, map[string]*fakeProvider{"anthropic": {name: "anthropic"}})
			srv.reloader = mustReloadManager(t)
			adapterPath := filepath.Join(t.TempDir(), "anthropic.json")
			if err := os.WriteFile(adapterPath, []byte("{}"), 0o644); err != nil {
				t.Fatal(err)
			}
			srv.reloader.SetAdapterPath("anthropic", adapterPath)

			srv.monitor.SetThresholds(1, time.Minute, time.Second)
			if !srv.monitor.RecordError("anthropic", "claude-sonnet-4-5",
				errors.New("schema validation failed")) {
				t.Fatal("error should mark the provider healing")
			}

			queued := srv.reloader.ApplyFix("anthropic", resilience.FixProposal{
				FixType:       resilience.FixTypeNoFixNeeded,
				Confidence:    0.5,
				ChangeSummary: "transient",
			}, nil)
			if queued.Success {
				t.Fatal("low-confidence fix should queue, not apply")
			}

			rec := postJSON(t, srv.Handler(), "/api/v1/fixes/anthropic/"+action+"?reason=stale", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status = %d", action, rec.Code)
			}
			if srv.monitor.Healing("anthropic") {
				t.Fatal("provider must leave the healing set once the queued fix is resolved")
			}
		})
	}
}

func TestFixEndpointsUnavailableWithoutReloader(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	rec := get(t, srv.Handler(), "/api/v1/fixes/pending")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"anthropic": {name: "anthropic"},
		"ollama":    {name: "ollama"},
	})
	rec := get(t, srv.Handler(), "/api/v1/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		System    map[string]any   `json:"system"`
		Providers []map[string]any `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.System["service"] != "aratta" {
		t.Errorf("service = %v", body.System["service"])
	}
	if len(body.Providers) != 2 {
		t.Errorf("providers = %d, want 2", len(body.Providers))
	}
}

func TestAuditRecentAfterChat(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{
		"anthropic": {name: "anthropic"},
		"ollama":    {name: "ollama"},
	})
	handler := srv.Handler()

	rec := postJSON(t, handler, "/api/v1/chat",
		`{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	rec = get(t, handler, "/api/v1/audit/recent?provider=anthropic")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	var body struct {
		Records []*audit.Record `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(body.Records))
	}
	if body.Records[0].Operation != "chat" || body.Records[0].Status != "success" {
		t.Errorf("record = %+v", body.Records[0])
	}
}

func TestMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	handler := srv.Handler()

	postJSON(t, handler, "/api/v1/chat",
		`{"model":"local","messages":[{"role":"user","content":"hi"}]}`)

	rec := get(t, handler, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary metrics.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Requests != 1 {
		t.Errorf("requests = %d, want 1", summary.Requests)
	}

	rec = get(t, handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("prometheus status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "aratta_requests_total") {
		t.Error("exposition must contain aratta_requests_total")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, map[string]*fakeProvider{"ollama": {name: "ollama"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight must answer with CORS headers")
	}
}

// scriptedChat answers chat calls from a fixed reply queue.
type scriptedChat struct {
	fakeProvider
	replies []string
}

func (s *scriptedChat) Chat(_ context.Context, req *schema.ChatRequest) (*schema.ChatResponse, error) {
	if len(s.replies) == 0 {
		return nil, &providers.ProviderError{Provider: s.name, Message: "no scripted reply"}
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &schema.ChatResponse{Provider: s.name, Model: req.Model, Content: reply}, nil
}

func TestHealCycleQueuesLowConfidenceFix(t *testing.T) {
	local := &scriptedChat{
		fakeProvider: fakeProvider{name: "ollama"},
		replies: []string{
			`{"is_transient": true, "diagnosis": "upstream outage", "search_queries": [], "what_to_look_for": ""}`,
		},
	}
	srv := newTestServer(t, map[string]*fakeProvider{"anthropic": {name: "anthropic"}})
	srv.registry.Register("ollama", providers.Config{}, func(providers.Config) (providers.Provider, error) {
		return local, nil
	})
	srv.reloader = mustReloadManager(t)
	srv.healer = resilience.NewHealWorker(
		srv.registry.Get,
		srv.resolver.Resolve,
		"local", "grok",
	)

	latest := resilience.AdapterError{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
		Kind:     resilience.ErrSchemaMismatch,
		Message:  "unknown field thinking",
	}
	srv.runHealCycle("anthropic", latest, []resilience.AdapterError{latest})

	pending := srv.reloader.PendingFixes()
	fix, ok := pending["anthropic"]
	if !ok {
		t.Fatal("transient diagnosis below the auto-apply threshold must queue")
	}
	if fix.FixType != resilience.FixTypeNoFixNeeded {
		t.Errorf("fix_type = %s", fix.FixType)
	}

	records, err := srv.audit.Recent(context.Background(), audit.Query{Kind: audit.KindHeal})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Status != "pending_review" {
		t.Fatalf("heal audit record = %+v", records)
	}
}
