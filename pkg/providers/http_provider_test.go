package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(baseURL string) *HTTPClient {
	return NewHTTPClient(Config{
		Name:    "test",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
}

func TestDoJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "Aratta/") {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := testClient(srv.URL).DoJSON(context.Background(), http.MethodPost, "/v1/test", map[string]string{"a": "b"}, &out, nil)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !out.OK {
		t.Error("response not decoded")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusUnauthorized, IsAuthentication, "authentication"},
		{http.StatusForbidden, IsAuthentication, "authentication"},
		{http.StatusTooManyRequests, IsRateLimit, "rate limit"},
		{http.StatusNotFound, IsModelNotFound, "model not found"},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error": {"message": "upstream says no"}}`))
		}))
		err := testClient(srv.URL).DoJSON(context.Background(), http.MethodPost, "/v1/test", nil, nil, nil)
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if !tt.check(err) {
			t.Errorf("status %d: not classified as %s: %v", tt.status, tt.name, err)
		}
		if !strings.Contains(err.Error(), "upstream says no") {
			t.Errorf("status %d: upstream message lost: %v", tt.status, err)
		}
	}
}

func TestServerErrorKeepsStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream meltdown"))
	}))
	defer srv.Close()

	err := testClient(srv.URL).DoJSON(context.Background(), http.MethodPost, "/v1/test", nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := StatusCode(err); got != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", got)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := testClient(srv.URL).DoJSON(context.Background(), http.MethodPost, "/v1/test", nil, nil, nil)
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("not a rate limit error: %v", err)
	}
	if rle.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %s, want 30s", rle.RetryAfter)
	}
}

func TestConnectionError(t *testing.T) {
	// Reserved port with nothing listening.
	c := testClient("http://127.0.0.1:1")
	err := c.DoJSON(context.Background(), http.MethodPost, "/v1/test", nil, nil, nil)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if IsRateLimit(err) || IsAuthentication(err) || IsModelNotFound(err) {
		t.Errorf("transport failure misclassified: %v", err)
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	status := testClient(srv.URL).Probe(context.Background(), "/health", nil)
	if status.Status != Healthy {
		t.Errorf("status = %q, want healthy", status.Status)
	}
	if status.LatencyMS <= 0 {
		t.Errorf("latency not recorded: %f", status.LatencyMS)
	}

	bad := testClient("http://127.0.0.1:1").Probe(context.Background(), "/health", nil)
	if bad.Status != Unhealthy {
		t.Errorf("status = %q, want unhealthy", bad.Status)
	}
}

func TestSSEScanner(t *testing.T) {
	stream := "event: message_start\ndata: {\"a\":1}\n\n" +
		": keepalive comment\n" +
		"data: {\"b\":2}\n\n" +
		"data: [DONE]\n\n"

	sc := NewSSEScanner(strings.NewReader(stream))

	var events []SSEEvent
	for sc.Next() {
		events = append(events, sc.Event())
	}
	if sc.Err() != nil {
		t.Fatalf("scanner error: %v", sc.Err())
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Event != "message_start" || events[0].Data != `{"a":1}` {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Event != "" || events[1].Data != `{"b":2}` {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Data != "[DONE]" {
		t.Errorf("event 2 = %+v", events[2])
	}
}

func TestSSEScannerMultilineData(t *testing.T) {
	stream := "data: line1\ndata: line2\n\n"
	sc := NewSSEScanner(strings.NewReader(stream))
	if !sc.Next() {
		t.Fatal("expected one event")
	}
	if sc.Event().Data != "line1\nline2" {
		t.Errorf("data = %q", sc.Event().Data)
	}
}
