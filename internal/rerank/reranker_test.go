package rerank

import (
	"context"
	"testing"

	"knowledge-server/internal/state"
	apperrors "knowledge-server/pkg/errors"
)

// fakeScorer returns canned scores and records how often it was called
type fakeScorer struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func TestNew_RequiresScorer(t *testing.T) {
	if _, err := New("ms-marco-MiniLM-L-6-v2", nil); err == nil {
		t.Error("Expected error for nil scorer")
	}
}

func TestNew_EmptyKeyUsesDefault(t *testing.T) {
	r, err := New("", &fakeScorer{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.ModelKey() != DefaultModel {
		t.Errorf("Expected default model key, got %s", r.ModelKey())
	}
	if r.Info().Name != "cross-encoder/ms-marco-MiniLM-L-6-v2" {
		t.Errorf("Unexpected model info: %+v", r.Info())
	}
}

func TestResolveModel_CustomFallback(t *testing.T) {
	info := ResolveModel("my-org/my-reranker")
	if info.Name != "my-org/my-reranker" {
		t.Errorf("Expected custom name passthrough, got %s", info.Name)
	}
	if info.Description != "Custom model" || info.MaxLength != 512 {
		t.Errorf("Unexpected custom entry: %+v", info)
	}
}

func TestAvailableModels_ReturnsCopy(t *testing.T) {
	models := AvailableModels()
	if len(models) != 5 {
		t.Fatalf("Expected 5 known models, got %d", len(models))
	}
	delete(models, DefaultModel)
	if _, ok := AvailableModels()[DefaultModel]; !ok {
		t.Error("Mutating the returned map changed the registry")
	}
}

func TestRerank_SortsDescending(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.1, 0.9, 0.5}}
	r, err := New("", scorer)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ranked, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("Expected 3 ranked documents, got %d", len(ranked))
	}
	if ranked[0].Text != "b" || ranked[1].Text != "c" || ranked[2].Text != "a" {
		t.Errorf("Unexpected order: %+v", ranked)
	}
	if ranked[0].Index != 1 {
		t.Errorf("Expected original index 1 for top document, got %d", ranked[0].Index)
	}
}

func TestRerank_StableOnTies(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.5, 0.5, 0.5}}
	r, _ := New("", scorer)

	ranked, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if ranked[i].Text != want {
			t.Errorf("Tied documents reordered: got %+v", ranked)
			break
		}
	}
}

func TestRerank_TopK(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.1, 0.9, 0.5}}
	r, _ := New("", scorer)

	ranked, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(ranked))
	}
	if ranked[0].Text != "b" || ranked[1].Text != "c" {
		t.Errorf("Unexpected truncated order: %+v", ranked)
	}
}

func TestRerank_EmptySkipsScorer(t *testing.T) {
	scorer := &fakeScorer{}
	r, _ := New("", scorer)

	ranked, err := r.Rerank(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("Expected empty result, got %d", len(ranked))
	}
	if scorer.calls != 0 {
		t.Errorf("Scorer should not be called for empty input, got %d calls", scorer.calls)
	}
}

func TestRerank_ScoreCountMismatch(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.5}}
	r, _ := New("", scorer)

	_, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 0)
	if err == nil {
		t.Fatal("Expected error for score count mismatch")
	}
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeModel) {
		t.Errorf("Expected model error, got %v", err)
	}
}

func TestRerankResults_RewritesScores(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.2, 0.8}}
	r, _ := New("", scorer)

	first := "first document"
	results := []state.RetrievalResult{
		{ID: 10, Score: 0.9, Content: &first},
		{ID: 20, Score: 0.4, Content: nil}, // missing content scores as ""
	}

	reranked, err := r.RerankResults(context.Background(), "q", results, 0)
	if err != nil {
		t.Fatalf("RerankResults failed: %v", err)
	}
	if len(reranked) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(reranked))
	}

	top := reranked[0]
	if top.ID != 20 {
		t.Errorf("Expected id 20 first after rerank, got %d", top.ID)
	}
	if top.Score != 0.8 {
		t.Errorf("Expected rewritten score 0.8, got %f", top.Score)
	}
	if top.OriginalScore == nil || *top.OriginalScore != 0.4 {
		t.Errorf("Expected original score 0.4 preserved, got %v", top.OriginalScore)
	}
	if !top.Reranked {
		t.Error("Expected Reranked flag set")
	}

	second := reranked[1]
	if second.ID != 10 || second.Score != 0.2 {
		t.Errorf("Unexpected second result: %+v", second)
	}
}

func TestRerankResults_TopK(t *testing.T) {
	scorer := &fakeScorer{scores: []float64{0.3, 0.1, 0.9}}
	r, _ := New("", scorer)

	a, b, c := "a", "b", "c"
	results := []state.RetrievalResult{
		{ID: 1, Content: &a},
		{ID: 2, Content: &b},
		{ID: 3, Content: &c},
	}

	reranked, err := r.RerankResults(context.Background(), "q", results, 1)
	if err != nil {
		t.Fatalf("RerankResults failed: %v", err)
	}
	if len(reranked) != 1 || reranked[0].ID != 3 {
		t.Errorf("Expected only id 3, got %+v", reranked)
	}
}
