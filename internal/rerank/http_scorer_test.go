package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "knowledge-server/pkg/errors"
)

func TestHTTPScorer_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Query != "cats" || len(req.Documents) != 2 {
			t.Errorf("Unexpected request: %+v", req)
		}
		if req.Model != "test-model" {
			t.Errorf("Expected model test-model, got %s", req.Model)
		}

		// Results arrive out of input order; scores map back by index
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 1, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.2},
			},
		})
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, "test-model", 0)
	scores, err := scorer.Score(context.Background(), "cats", []string{"dog doc", "cat doc"})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if scores[0] != 0.2 || scores[1] != 0.9 {
		t.Errorf("Expected scores in input order [0.2 0.9], got %v", scores)
	}
}

func TestHTTPScorer_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, "", 0)
	_, err := scorer.Score(context.Background(), "q", []string{"a"})
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeModel) {
		t.Errorf("Expected model error for 5xx, got %v", err)
	}
}

func TestHTTPScorer_MissingScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 0, "relevance_score": 0.5},
			},
		})
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, "", 0)
	_, err := scorer.Score(context.Background(), "q", []string{"a", "b"})
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeModel) {
		t.Errorf("Expected model error for missing score, got %v", err)
	}
}

func TestHTTPScorer_OutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 5, "relevance_score": 0.5},
			},
		})
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, "", 0)
	_, err := scorer.Score(context.Background(), "q", []string{"a"})
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeModel) {
		t.Errorf("Expected model error for out-of-range index, got %v", err)
	}
}
