package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIProviderEmbedsBatch(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var resp embedResponse
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2, 0.3}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "test-embed", APIKey: "sk-test", Dimension: 1024})

	vecs, err := p.Embed(context.Background(), []string{"phone: 555-0101", "birthday: March 3"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q, want %q", gotAuth, "Bearer sk-test")
	}
	// Observed width overrides the configured one.
	if p.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", p.Dimension())
	}
}

func TestAPIProviderEmptyInput(t *testing.T) {
	p := NewAPIProvider(Config{Endpoint: "http://unused"})
	vecs, err := p.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil for empty input, got %v", vecs)
	}
}

func TestAPIProviderRejectsShortBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected an error for a short batch")
	}
}

func TestLocalProviderDefaultsAndSequentialEmbed(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		models = append(models, req.Model)
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL})

	vecs, err := p.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	if len(models) != 3 {
		t.Fatalf("got %d requests, want one per text", len(models))
	}
	for _, m := range models {
		if m != defaultLocalModel {
			t.Errorf("model = %q, want default %q", m, defaultLocalModel)
		}
	}
	if p.Dimension() != 2 {
		t.Errorf("Dimension() = %d, want 2", p.Dimension())
	}
}

func TestDimensionFallsBackToConfigured(t *testing.T) {
	p := NewAPIProvider(Config{Dimension: 1536})
	if p.Dimension() != 1536 {
		t.Errorf("Dimension() = %d, want 1536", p.Dimension())
	}
	if d := NewAPIProvider(Config{}).Dimension(); d != defaultDimension {
		t.Errorf("Dimension() = %d, want %d", d, defaultDimension)
	}
}
