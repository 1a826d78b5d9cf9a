package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

func newTestProvider(t *testing.T, name string, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(providers.Config{
		Name:         name,
		BaseURL:      srv.URL,
		DefaultModel: "llama3.1:8b",
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestChatNoAuthHeader(t *testing.T) {
	var path, auth string
	p := newTestProvider(t, "vllm", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "local-1", "model": "llama3.1:8b",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "hi"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 2, "completion_tokens": 1, "total_tokens": 3},
		})
	})

	resp, err := p.Chat(context.Background(), &schema.ChatRequest{
		Model:    "llama3.1:8b",
		Messages: []schema.Message{schema.TextMessage(schema.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if path != "/v1/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "" {
		t.Errorf("Authorization sent without a configured key: %q", auth)
	}
	if resp.Provider != "vllm" {
		t.Errorf("provider = %q", resp.Provider)
	}
}

func TestHealthCheckOllamaUsesNativeEndpoint(t *testing.T) {
	var path string
	p := newTestProvider(t, "ollama", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"models":[]}`))
	})

	status := p.HealthCheck(context.Background())
	if status.Status != providers.Healthy {
		t.Fatalf("status = %+v", status)
	}
	if path != "/api/tags" {
		t.Errorf("probe path = %q, want /api/tags", path)
	}
}

func TestHealthCheckCompatUsesModels(t *testing.T) {
	var path string
	p := newTestProvider(t, "llamacpp", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"data":[]}`))
	})

	p.HealthCheck(context.Background())
	if path != "/v1/models" {
		t.Errorf("probe path = %q, want /v1/models", path)
	}
}

func TestBaseURLWithV1SuffixNotDoubled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "x", "model": "m",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "ok"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	p, err := New(providers.Config{
		Name:    "vllm",
		BaseURL: srv.URL + "/v1",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Chat(context.Background(), &schema.ChatRequest{
		Model:    "m",
		Messages: []schema.Message{schema.TextMessage(schema.RoleUser, "hi")},
	}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestModelsReportsConfiguredDefault(t *testing.T) {
	p := newTestProvider(t, "ollama", func(w http.ResponseWriter, r *http.Request) {})
	models := p.Models()
	if len(models) != 1 || models[0].ModelID != "llama3.1:8b" {
		t.Errorf("models = %+v", models)
	}
	if models[0].Provider != "ollama" {
		t.Errorf("provider = %q", models[0].Provider)
	}
}
