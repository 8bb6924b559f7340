package vector

import (
	"math"
	"testing"

	apperrors "knowledge-server/pkg/errors"
)

func mustIndex(t *testing.T, dimension int, metric Metric) *Index {
	t.Helper()
	idx, err := New(dimension, metric)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return idx
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, MetricCosine); err == nil {
		t.Error("Expected error for zero dimension")
	}
	if _, err := New(-3, MetricCosine); err == nil {
		t.Error("Expected error for negative dimension")
	}
	if _, err := New(4, Metric("euclidean")); err == nil {
		t.Error("Expected error for unknown metric")
	}
}

func TestAdd_AutoIDs(t *testing.T) {
	idx := mustIndex(t, 3, MetricCosine)

	ids, err := idx.Add([][]float32{{1, 0, 0}, {0, 1, 0}}, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Errorf("Expected ids [0 1], got %v", ids)
	}

	more, err := idx.Add([][]float32{{0, 0, 1}}, nil, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if more[0] != 2 {
		t.Errorf("Expected next auto id 2, got %d", more[0])
	}
	if idx.Len() != 3 {
		t.Errorf("Expected 3 vectors, got %d", idx.Len())
	}
}

func TestAdd_DimensionMismatchIsAtomic(t *testing.T) {
	idx := mustIndex(t, 3, MetricCosine)

	_, err := idx.Add([][]float32{{1, 0, 0}, {1, 0}}, nil, nil)
	if err == nil {
		t.Fatal("Expected dimension mismatch error")
	}
	if !apperrors.IsDimensionMismatch(err) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Expected no partial insert, got %d vectors", idx.Len())
	}
}

func TestAdd_MismatchedTextsAndIDs(t *testing.T) {
	idx := mustIndex(t, 2, MetricCosine)

	if _, err := idx.Add([][]float32{{1, 0}}, []string{"a", "b"}, nil); err == nil {
		t.Error("Expected error for texts length mismatch")
	}
	if _, err := idx.Add([][]float32{{1, 0}}, nil, []int64{1, 2}); err == nil {
		t.Error("Expected error for ids length mismatch")
	}
}

func TestAdd_UpsertOverwrites(t *testing.T) {
	idx := mustIndex(t, 2, MetricCosine)

	if _, err := idx.Add([][]float32{{1, 0}}, []string{"old"}, []int64{7}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := idx.Add([][]float32{{0, 1}}, []string{"new"}, []int64{7}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("Expected 1 vector after upsert, got %d", idx.Len())
	}

	results, err := idx.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results[0].ID != 7 {
		t.Errorf("Expected id 7, got %d", results[0].ID)
	}
	if results[0].Text == nil || *results[0].Text != "new" {
		t.Errorf("Expected overwritten text 'new', got %v", results[0].Text)
	}
}

func TestSearch_SelfNearest(t *testing.T) {
	idx := mustIndex(t, 3, MetricCosine)

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	if _, err := idx.Add(vectors, []string{"x", "y", "near-x"}, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := idx.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].ID != 0 {
		t.Errorf("Expected the query's own vector first, got id %d", results[0].ID)
	}
	if results[0].Score > 1e-9 {
		t.Errorf("Expected near-zero self distance, got %f", results[0].Score)
	}
	if results[1].ID != 2 {
		t.Errorf("Expected the nearby vector second, got id %d", results[1].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Errorf("Results not in ascending distance order at %d", i)
		}
	}
}

func TestSearch_TopKBounds(t *testing.T) {
	idx := mustIndex(t, 2, MetricCosine)
	if _, err := idx.Add([][]float32{{1, 0}, {0, 1}}, nil, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := idx.Search([]float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty result for topK=0, got %d", len(results))
	}

	results, err = idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected all 2 results for large topK, got %d", len(results))
	}

	if _, err := idx.Search([]float32{1, 0, 0}, 1); !apperrors.IsDimensionMismatch(err) {
		t.Errorf("Expected dimension mismatch for bad query, got %v", err)
	}
}

func TestSearch_TieBreaksByID(t *testing.T) {
	idx := mustIndex(t, 2, MetricL2)

	// Two vectors equidistant from the query
	if _, err := idx.Add([][]float32{{1, 1}, {-1, -1}}, nil, []int64{9, 3}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := idx.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results[0].ID != 3 || results[1].ID != 9 {
		t.Errorf("Expected tie broken by id (3 before 9), got %d, %d", results[0].ID, results[1].ID)
	}
}

func TestDelete_IDsNotReused(t *testing.T) {
	idx := mustIndex(t, 2, MetricCosine)

	ids, err := idx.Add([][]float32{{1, 0}, {0, 1}}, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	idx.Delete([]int64{ids[0], 999}) // unknown ids are ignored
	if idx.Len() != 1 {
		t.Fatalf("Expected 1 vector after delete, got %d", idx.Len())
	}

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.ID == ids[0] {
			t.Errorf("Deleted id %d still returned", ids[0])
		}
	}

	more, err := idx.Add([][]float32{{1, 1}}, nil, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if more[0] != 2 {
		t.Errorf("Expected counter to keep advancing past deletes, got id %d", more[0])
	}
}

func TestDistance_Metrics(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	cos := mustIndex(t, 2, MetricCosine)
	if d := cos.distance(a, b); math.Abs(d-1) > 1e-9 {
		t.Errorf("Expected cosine distance 1 for orthogonal vectors, got %f", d)
	}
	if d := cos.distance(a, a); math.Abs(d) > 1e-9 {
		t.Errorf("Expected cosine distance 0 for identical vectors, got %f", d)
	}
	if d := cos.distance(a, []float32{0, 0}); d != 1 {
		t.Errorf("Expected cosine distance 1 for zero vector, got %f", d)
	}

	l2 := mustIndex(t, 2, MetricL2)
	if d := l2.distance(a, b); math.Abs(d-2) > 1e-9 {
		t.Errorf("Expected squared euclidean distance 2, got %f", d)
	}

	ip := mustIndex(t, 2, MetricInnerProduct)
	if d := ip.distance([]float32{2, 3}, []float32{4, 5}); math.Abs(d+23) > 1e-9 {
		t.Errorf("Expected negated inner product -23, got %f", d)
	}
}
