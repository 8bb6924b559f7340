package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "knowledge-server/pkg/errors"
)

// HTTPScorer scores query-document pairs against a cross-encoder model served
// over HTTP, using the common /rerank wire shape (Jina/Cohere style). The
// model runtime is external; timeouts and retries are the caller's concern
// beyond the client-level timeout here.
type HTTPScorer struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPScorer creates a scorer client for a cross-encoder service
func NewHTTPScorer(baseURL, model string, timeout time.Duration) *HTTPScorer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPScorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns one relevance score per document, in input order
func (s *HTTPScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	payload, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewModelUnavailable("reranker", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewModelUnavailable("reranker",
			fmt.Errorf("rerank service error: status=%d body=%s", resp.StatusCode, string(body)))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewModelUnavailable("reranker",
			fmt.Errorf("failed to decode rerank response: %w", err))
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, result := range decoded.Results {
		if result.Index < 0 || result.Index >= len(documents) {
			return nil, apperrors.NewModelUnavailable("reranker",
				fmt.Errorf("rerank response index %d out of range", result.Index))
		}
		scores[result.Index] = result.RelevanceScore
		seen[result.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, apperrors.NewModelUnavailable("reranker",
				fmt.Errorf("rerank response missing score for document %d", i))
		}
	}

	return scores, nil
}
