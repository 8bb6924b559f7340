package state

import "knowledge-server/internal/graph"

// RetrievalResult is one ranked hit from the retrieval pipeline. Transient,
// never persisted. Score is a similarity (higher is better); after reranking,
// Score holds the cross-encoder score and OriginalScore keeps the vector
// similarity it replaced.
type RetrievalResult struct {
	ID            int64          `json:"id"`
	Score         float64        `json:"score"`
	Content       *string        `json:"content"`
	Entities      []graph.Entity `json:"entities,omitempty"`
	OriginalScore *float64       `json:"original_score,omitempty"`
	Reranked      bool           `json:"reranked,omitempty"`
}
