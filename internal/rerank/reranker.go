package rerank

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"knowledge-server/internal/state"
	apperrors "knowledge-server/pkg/errors"
	"knowledge-server/pkg/logger"
)

// Scorer scores a query against a batch of candidate documents using a
// cross-encoder: the query and each document are encoded jointly, which is
// strictly more accurate and strictly more expensive per candidate than the
// vector index's similarity.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// RankedDocument is one reranked candidate. Index is the position of the
// document in the input batch.
type RankedDocument struct {
	Index int
	Score float64
	Text  string
}

// Reranker re-scores retrieval candidates with a cross-encoder and returns a
// stable relevance ranking.
type Reranker struct {
	scorer   Scorer
	modelKey string
	info     ModelInfo
	logger   *zap.Logger
}

// New creates a reranker for the given model key. Unknown keys are treated as
// custom model names. The scorer is required.
func New(modelKey string, scorer Scorer) (*Reranker, error) {
	if scorer == nil {
		return nil, apperrors.NewConfigMissingRequired("reranker scorer")
	}
	if modelKey == "" {
		modelKey = DefaultModel
	}

	return &Reranker{
		scorer:   scorer,
		modelKey: modelKey,
		info:     ResolveModel(modelKey),
		logger:   logger.Named("rerank"),
	}, nil
}

// ModelKey returns the configured model key
func (r *Reranker) ModelKey() string {
	return r.modelKey
}

// Info returns the configured model's registry entry
func (r *Reranker) Info() ModelInfo {
	return r.info
}

// Rerank scores every (query, document) pair and returns the documents sorted
// by score descending; ties keep their original input order. topK > 0
// truncates the result; topK <= 0 returns all. An empty batch returns empty
// without invoking the scorer.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RankedDocument, error) {
	if len(documents) == 0 {
		return []RankedDocument{}, nil
	}

	scores, err := r.scorer.Score(ctx, query, documents)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(documents) {
		return nil, apperrors.NewModelUnavailable("reranker",
			scoreCountError{want: len(documents), got: len(scores)})
	}

	ranked := make([]RankedDocument, len(documents))
	for i, doc := range documents {
		ranked[i] = RankedDocument{Index: i, Score: scores[i], Text: doc}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// RerankResults reranks retrieval results by their content, rewriting each
// surviving result's score to the cross-encoder score. The prior score is
// preserved under OriginalScore and Reranked is set. Results with no content
// participate as an empty candidate and will generally rank low.
func (r *Reranker) RerankResults(ctx context.Context, query string, results []state.RetrievalResult, topK int) ([]state.RetrievalResult, error) {
	if len(results) == 0 {
		return []state.RetrievalResult{}, nil
	}

	documents := make([]string, len(results))
	for i, result := range results {
		if result.Content != nil {
			documents[i] = *result.Content
		}
	}

	ranked, err := r.Rerank(ctx, query, documents, 0)
	if err != nil {
		return nil, err
	}

	reranked := make([]state.RetrievalResult, 0, len(ranked))
	for _, doc := range ranked {
		result := results[doc.Index]
		prior := result.Score
		result.OriginalScore = &prior
		result.Score = doc.Score
		result.Reranked = true
		reranked = append(reranked, result)
	}

	if topK > 0 && topK < len(reranked) {
		reranked = reranked[:topK]
	}

	r.logger.Debug("Results reranked",
		zap.Int("candidates", len(results)),
		zap.Int("returned", len(reranked)),
	)
	return reranked, nil
}

type scoreCountError struct {
	want, got int
}

func (e scoreCountError) Error() string {
	return fmt.Sprintf("scorer returned %d scores for %d documents", e.got, e.want)
}
