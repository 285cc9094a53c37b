package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vibelog/backend/internal/config"
)

func TestEmbeddingService_OpenAICompatible(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" || r.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "bad request line", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}],"usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&config.EmbeddingConfig{
		Provider: "openai-compatible", BaseURL: srv.URL + "/v1/", Model: "m", APIKey: "k", Dimensions: 3,
	})
	vec, tokens, err := svc.EmbedPassage(context.Background(), "  a quiet morning  ")
	if err != nil {
		t.Fatalf("EmbedPassage: %v", err)
	}
	if diff := cmp.Diff([]float32{0.1, 0.2, 0.3}, vec); diff != "" {
		t.Errorf("vector mismatch (-want +got):\n%s", diff)
	}
	if tokens != 7 {
		t.Errorf("tokens = %d", tokens)
	}
	want := embeddingRequest{Model: "m", Input: []string{"a quiet morning"}, Dimensions: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddingService_Errors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&config.EmbeddingConfig{Provider: "openai-compatible", BaseURL: srv.URL, Model: "m"})
	_, _, err := svc.EmbedQuery(context.Background(), "jazz")
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("err = %v, want provider message", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want a single request", n)
	}

	if _, _, err := svc.EmbedQuery(context.Background(), "   "); err == nil {
		t.Error("blank input should fail without a request")
	}
}
