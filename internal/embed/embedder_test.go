package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "knowledge-server/pkg/errors"
)

func embeddingsServer(t *testing.T, vectors [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		data := make([]map[string]interface{}, len(vectors))
		for i, v := range vectors {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": v,
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  "test-model",
		})
	}))
}

func TestEmbedBatch(t *testing.T) {
	srv := embeddingsServer(t, [][]float32{{1, 0, 0}, {0, 1, 0}})
	defer srv.Close()

	embedder := NewOpenAIEmbedder(srv.URL, "", "test-model", 3)
	vectors, err := embedder.EmbedBatch(context.Background(), []string{"cats", "dogs"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("Unexpected vectors %v", vectors)
	}
}

func TestEmbed_Single(t *testing.T) {
	srv := embeddingsServer(t, [][]float32{{0.5, 0.5}})
	defer srv.Close()

	embedder := NewOpenAIEmbedder(srv.URL, "", "test-model", 2)
	v, err := embedder.Embed(context.Background(), "cats")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(v) != 2 {
		t.Errorf("Expected 2-dimensional vector, got %d", len(v))
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	// No server: an empty batch must not issue a request
	embedder := NewOpenAIEmbedder("http://localhost:1", "", "test-model", 3)
	vectors, err := embedder.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("Expected empty result, got %d", len(vectors))
	}
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	srv := embeddingsServer(t, [][]float32{{1, 0}})
	defer srv.Close()

	embedder := NewOpenAIEmbedder(srv.URL, "", "test-model", 3)
	_, err := embedder.EmbedBatch(context.Background(), []string{"cats"})
	if !apperrors.IsDimensionMismatch(err) {
		t.Errorf("Expected dimension mismatch, got %v", err)
	}

	// dimension 0 disables the check
	unchecked := NewOpenAIEmbedder(srv.URL, "", "test-model", 0)
	if _, err := unchecked.EmbedBatch(context.Background(), []string{"cats"}); err != nil {
		t.Errorf("Expected unchecked embedder to accept any length, got %v", err)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	srv := embeddingsServer(t, [][]float32{{1, 0, 0}})
	defer srv.Close()

	embedder := NewOpenAIEmbedder(srv.URL, "", "test-model", 3)
	_, err := embedder.EmbedBatch(context.Background(), []string{"cats", "dogs"})
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeModel) {
		t.Errorf("Expected model error for count mismatch, got %v", err)
	}
}

func TestEmbedBatch_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusInternalServerError)
	}))
	defer srv.Close()

	embedder := NewOpenAIEmbedder(srv.URL, "", "test-model", 3)
	_, err := embedder.EmbedBatch(context.Background(), []string{"cats"})
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeModel) {
		t.Errorf("Expected model error, got %v", err)
	}
}
