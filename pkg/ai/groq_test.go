package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cddm-gh/audio-sphere-switcher/pkg/config"
)

func TestGenerateSummary_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if payload.MaxTokens < 4096 {
			t.Fatalf("max_tokens = %d, want 4096", payload.MaxTokens)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "## Topic\n\nA summary."}},
			},
		})
	}))
	defer ts.Close()

	client := NewGroqClient(&config.GroqConfig{APIKey: "test-key", BaseURL: ts.URL})

	summary, err := client.GenerateSummary(context.Background(), "Speaker 0: Hello there")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary != "## Topic\n\nA summary." {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestGenerateSummary_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer ts.Close()

	client := NewGroqClient(&config.GroqConfig{APIKey: "test-key", BaseURL: ts.URL})

	if _, err := client.GenerateSummary(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
