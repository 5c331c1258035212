package storage

import (
	"math"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.1, -2.5, 0, 1e-9, 1536}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("length: got %d", len(got))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("component %d: got %v, want %v", i, got[i], v[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	if sim := cosineSimilarity(a, a); math.Abs(sim-1) > 1e-9 {
		t.Errorf("identical vectors: got %f", sim)
	}
	if sim := cosineSimilarity(a, []float32{0, 1, 0}); sim != 0 {
		t.Errorf("orthogonal vectors: got %f", sim)
	}
	// opposite vectors clamp to 0, not -1
	if sim := cosineSimilarity(a, []float32{-1, 0, 0}); sim != 0 {
		t.Errorf("opposite vectors: got %f", sim)
	}
	if sim := cosineSimilarity(a, []float32{1, 0}); sim != 0 {
		t.Errorf("mismatched lengths: got %f", sim)
	}
	if sim := cosineSimilarity(a, []float32{0, 0, 0}); sim != 0 {
		t.Errorf("zero vector: got %f", sim)
	}
}
