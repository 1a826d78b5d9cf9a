package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSummaryTotals(t *testing.T) {
	m := New()

	m.RecordRequest("anthropic", "claude-sonnet-4-5", "chat", 0.42)
	m.RecordRequest("openai", "gpt-5", "chat", 1.1)
	m.RecordError("anthropic", "timeout")
	m.SetCircuitState("anthropic", "open")
	m.RecordHealRequest("anthropic", "schema_mismatch")
	m.RecordFallback("anthropic", "openai")

	s := m.GetSummary()
	if s.Requests != 2 {
		t.Errorf("requests = %d, want 2", s.Requests)
	}
	if s.ProviderErrors != 1 {
		t.Errorf("errors = %d, want 1", s.ProviderErrors)
	}
	if s.CircuitOpens != 1 {
		t.Errorf("circuit opens = %d, want 1", s.CircuitOpens)
	}
	if s.HealRequests != 1 {
		t.Errorf("heal requests = %d, want 1", s.HealRequests)
	}
	if s.Fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", s.Fallbacks)
	}
}

func TestCircuitStateGauge(t *testing.T) {
	m := New()
	m.SetCircuitState("xai", "open")
	m.SetCircuitState("xai", "half_open")
	m.SetCircuitState("xai", "closed")

	// Only the open transition increments the counter.
	if got := m.GetSummary().CircuitOpens; got != 1 {
		t.Fatalf("circuit opens = %d, want 1", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.RecordRequest("google", "gemini-2.5-pro", "chat", 0.2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "aratta_requests_total") {
		t.Fatal("exposition missing aratta_requests_total")
	}
	if !strings.Contains(string(body), `provider="google"`) {
		t.Fatal("exposition missing provider label")
	}
}
