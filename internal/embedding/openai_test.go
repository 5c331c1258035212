package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeEmbeddings serves an OpenAI-compatible embeddings endpoint returning a
// 4-dim vector whose first component encodes the input's batch position.
func fakeEmbeddings(t *testing.T, batchSizes *[]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*batchSizes = append(*batchSizes, len(req.Input))
		type datum struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i, text := range req.Input {
			data[i] = datum{
				Object:    "embedding",
				Index:     i,
				Embedding: []float32{float32(len(text)), 0, 0, 1},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}
}

func TestOpenAIEmbedder_batchesAndPreservesOrder(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(fakeEmbeddings(t, &batchSizes))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", "text-embedding-3-small", 4, 64, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	texts := make([]string, 130)
	for i := range texts {
		// unique lengths so the fake's first vector component identifies the text
		texts[i] = fmt.Sprintf("%0*d", i+1, 0)
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 130 {
		t.Fatalf("got %d vectors, want 130", len(vecs))
	}
	if len(batchSizes) != 3 {
		t.Fatalf("got %d upstream calls, want 3: %v", len(batchSizes), batchSizes)
	}
	for _, n := range batchSizes {
		if n > 64 {
			t.Errorf("batch of %d exceeds cap", n)
		}
	}
	for i, v := range vecs {
		if int(v[0]) != i+1 {
			t.Errorf("vector %d out of order: first component %v", i, v[0])
		}
	}
}

func TestOpenAIEmbedder_failureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", "text-embedding-3-small", 4, 8, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error from failed batch")
	}
}

func TestOpenAIEmbedder_dimensionMismatchRejected(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(fakeEmbeddings(t, &batchSizes))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", "text-embedding-3-small", 1536, 64, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedder_emptyInput(t *testing.T) {
	e, err := NewOpenAIEmbedder("test-key", "text-embedding-3-small", 4, 8)
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if vecs != nil {
		t.Errorf("expected nil for empty input, got %v", vecs)
	}
}

func TestMockEmbedder_deterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder(64)
	a, _ := e.Embed(context.Background(), "park budget")
	b, _ := e.Embed(context.Background(), "park budget")
	var dot float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("mock embedder should be deterministic")
		}
		dot += float64(a[i] * a[i])
	}
	if dot < 0.99 || dot > 1.01 {
		t.Errorf("vector not unit length: %f", dot)
	}
}

func TestMockEmbedder_sharedWordsScorePositive(t *testing.T) {
	e := NewMockEmbedder(256)
	doc, _ := e.Embed(context.Background(), "Build a park on Elm Street. Budget is limited.")
	query, _ := e.Embed(context.Background(), "park budget")
	unrelated, _ := e.Embed(context.Background(), "quantum entanglement research")
	sim := func(a, b []float32) float64 {
		var dot float64
		for i := range a {
			dot += float64(a[i] * b[i])
		}
		return dot
	}
	if sim(doc, query) <= sim(doc, unrelated) {
		t.Errorf("query sharing words should score higher: %f vs %f", sim(doc, query), sim(doc, unrelated))
	}
	if sim(doc, query) <= 0.3 {
		t.Errorf("expected meaningful overlap, got %f", sim(doc, query))
	}
}
