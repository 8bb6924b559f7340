package vector

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	apperrors "knowledge-server/pkg/errors"
	"knowledge-server/pkg/logger"
)

// Metric selects the distance function used by an Index. Scores returned by
// Search are distances in the metric's native units, so ascending order is
// always best-first: cosine distance is 1 - cosine similarity, l2 is squared
// Euclidean distance, and ip is the negated inner product.
type Metric string

const (
	MetricCosine       Metric = "cos"
	MetricL2           Metric = "l2"
	MetricInnerProduct Metric = "ip"
)

// SearchResult is one nearest neighbor returned by Index.Search. Text is nil
// when no text was recorded for the id.
type SearchResult struct {
	ID    int64
	Score float64
	Text  *string
}

// Index is a flat in-memory nearest-neighbor index over fixed-dimension
// float32 vectors, with a parallel id-to-text mapping. The dimension is fixed
// at construction; every inserted vector must match it exactly.
//
// Search scans all live vectors. Delete purges both the vector and its text
// entry, so a deleted id is never returned.
type Index struct {
	mu        sync.RWMutex
	dimension int
	metric    Metric
	vectors   map[int64][]float32
	texts     map[int64]string
	nextID    int64
	logger    *zap.Logger
}

// New creates an empty index with the given dimension and metric.
func New(dimension int, metric Metric) (*Index, error) {
	if dimension <= 0 {
		return nil, apperrors.NewInvalidInput("dimension", "must be positive")
	}
	switch metric {
	case MetricCosine, MetricL2, MetricInnerProduct:
	default:
		return nil, apperrors.NewInvalidInput("metric", "must be one of cos, l2, ip")
	}

	return &Index{
		dimension: dimension,
		metric:    metric,
		vectors:   make(map[int64][]float32),
		texts:     make(map[int64]string),
		logger:    logger.Named("vector"),
	}, nil
}

// Dimension returns the configured vector dimension
func (x *Index) Dimension() int {
	return x.dimension
}

// Metric returns the configured distance metric
func (x *Index) Metric() Metric {
	return x.metric
}

// Add inserts vectors into the index. When ids is nil, sequential identifiers
// are assigned from an internal counter that is never reused, even after
// deletion. When texts is non-nil it must have one entry per vector.
// Re-adding an existing id overwrites its vector and text (upsert).
//
// Any vector whose length differs from the configured dimension fails the
// whole call with ErrDimensionMismatch; nothing is inserted.
func (x *Index) Add(vectors [][]float32, texts []string, ids []int64) ([]int64, error) {
	for _, v := range vectors {
		if len(v) != x.dimension {
			return nil, apperrors.NewDimensionMismatch(x.dimension, len(v))
		}
	}
	if texts != nil && len(texts) != len(vectors) {
		return nil, apperrors.NewInvalidInput("texts", "must have one entry per vector")
	}
	if ids != nil && len(ids) != len(vectors) {
		return nil, apperrors.NewInvalidInput("ids", "must have one entry per vector")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if ids == nil {
		ids = make([]int64, len(vectors))
		for i := range vectors {
			ids[i] = x.nextID + int64(i)
		}
		x.nextID += int64(len(vectors))
	}

	for i, v := range vectors {
		stored := make([]float32, len(v))
		copy(stored, v)
		x.vectors[ids[i]] = stored
		if texts != nil {
			x.texts[ids[i]] = texts[i]
		}
	}

	return ids, nil
}

// Search returns up to topK nearest neighbors of the query vector, ordered by
// increasing distance. topK <= 0 yields an empty result, not an error.
func (x *Index) Search(query []float32, topK int) ([]SearchResult, error) {
	if len(query) != x.dimension {
		return nil, apperrors.NewDimensionMismatch(x.dimension, len(query))
	}
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]SearchResult, 0, len(x.vectors))
	for id, v := range x.vectors {
		r := SearchResult{ID: id, Score: x.distance(query, v)}
		if text, ok := x.texts[id]; ok {
			t := text
			r.Text = &t
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes the given ids. Unknown ids are ignored. The internal id
// counter is not rewound, so deleted auto-assigned ids are never handed out
// again.
func (x *Index) Delete(ids []int64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, id := range ids {
		delete(x.vectors, id)
		delete(x.texts, id)
	}
}

// Len returns the number of live vectors
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

func (x *Index) distance(a, b []float32) float64 {
	switch x.metric {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return sum
	case MetricInnerProduct:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return -dot
	default: // MetricCosine
		var dot, normA, normB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			normA += float64(a[i]) * float64(a[i])
			normB += float64(b[i]) * float64(b[i])
		}
		if normA == 0 || normB == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	}
}
