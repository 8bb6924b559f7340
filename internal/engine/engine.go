package engine

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"knowledge-server/internal/embed"
	"knowledge-server/internal/graph"
	"knowledge-server/internal/rerank"
	"knowledge-server/internal/state"
	"knowledge-server/internal/vector"
	apperrors "knowledge-server/pkg/errors"
	"knowledge-server/pkg/logger"
)

// contextDelimiter separates document contents in an assembled context window
const contextDelimiter = "\n\n---\n\n"

// charsPerToken is the coarse token-to-character heuristic used by GetContext
const charsPerToken = 4

// GraphStore is the slice of the graph layer the engine needs. *graph.Store
// satisfies it.
type GraphStore interface {
	AddDocument(ctx context.Context, doc graph.Document) error
	AddEntity(ctx context.Context, entity graph.Entity) error
	LinkDocumentEntity(ctx context.Context, docID, entityID string) error
	GetDocumentEntities(ctx context.Context, docID string) ([]graph.Entity, error)
	SearchEntities(ctx context.Context, namePattern, entityType string) ([]graph.Entity, error)
	GetRelatedEntities(ctx context.Context, entityID, relationType string) ([]graph.RelatedEntity, error)
}

// Engine orchestrates ingestion and retrieval across the vector index, the
// knowledge graph, the embedder and the optional reranker. It also keeps the
// vector-id to document-id back-reference that lets vector hits be enriched
// with graph entities.
//
// Engines are explicitly constructed and passed by the call site; there is no
// package-level instance.
type Engine struct {
	index    *vector.Index
	store    GraphStore
	embedder embed.Embedder
	reranker *rerank.Reranker

	useReranker bool

	mu          sync.RWMutex
	docByVector map[int64]string

	logger *zap.Logger
}

// New creates an engine. useReranker sets the default for Retrieve calls that
// do not specify one; requesting it without providing a reranker is a
// configuration error here, not a silent no-op at call time.
func New(index *vector.Index, store GraphStore, embedder embed.Embedder, reranker *rerank.Reranker, useReranker bool) (*Engine, error) {
	if useReranker && reranker == nil {
		return nil, apperrors.NewConfigMissingRequired("reranker")
	}

	return &Engine{
		index:       index,
		store:       store,
		embedder:    embedder,
		reranker:    reranker,
		useReranker: useReranker,
		docByVector: make(map[int64]string),
		logger:      logger.Named("engine"),
	}, nil
}

// Reranker returns the configured reranker, or nil
func (e *Engine) Reranker() *rerank.Reranker {
	return e.reranker
}

// UseRerankerDefault reports whether reranking is on by default
func (e *Engine) UseRerankerDefault() bool {
	return e.useReranker
}

// VectorID derives the vector-store identifier for a document id using
// FNV-64a, truncated to a non-negative int64. The hash is fixed, so the same
// document id always maps to the same vector id across processes and runs,
// and re-adding a document upserts its embedding in place.
func VectorID(docID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(docID))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// AddDocument writes the document's metadata to the graph store, embeds its
// content into the vector index, and upserts and links any supplied entities
// via MENTIONS edges. Embedding and storage failures propagate.
func (e *Engine) AddDocument(ctx context.Context, doc graph.Document, entities []graph.Entity) error {
	if doc.ID == "" {
		return apperrors.NewInvalidInput("doc_id", "must not be empty")
	}

	if err := e.store.AddDocument(ctx, doc); err != nil {
		return err
	}

	embedding, err := e.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return err
	}

	vectorID := VectorID(doc.ID)
	if _, err := e.index.Add([][]float32{embedding}, []string{doc.Content}, []int64{vectorID}); err != nil {
		return err
	}

	e.mu.Lock()
	e.docByVector[vectorID] = doc.ID
	e.mu.Unlock()

	for _, entity := range entities {
		if entity.EntityType == "" {
			entity.EntityType = "Unknown"
		}
		if err := e.store.AddEntity(ctx, entity); err != nil {
			return err
		}
		if err := e.store.LinkDocumentEntity(ctx, doc.ID, entity.ID); err != nil {
			return err
		}
	}

	e.logger.Debug("Document added",
		zap.String("doc_id", doc.ID),
		zap.Int64("vector_id", vectorID),
		zap.Int("entities", len(entities)),
	)
	return nil
}

// RetrieveOptions controls a Retrieve call. UseReranker overrides the
// engine's default when non-nil. RerankTopK is the candidate pool fetched
// before reranking; 0 means 3x TopK.
type RetrieveOptions struct {
	TopK                int
	IncludeGraphContext bool
	UseReranker         *bool
	RerankTopK          int
}

// Retrieve runs the two-stage retrieval pipeline: broad vector recall,
// then either rerank-and-trim or a plain truncation to TopK. Vector distances
// are converted to similarities as 1 - distance.
func (e *Engine) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]state.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewInvalidInput("query", "must not be empty")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	shouldRerank := e.useReranker
	if opts.UseReranker != nil {
		shouldRerank = *opts.UseReranker
	}
	shouldRerank = shouldRerank && e.reranker != nil

	// Widen recall before precision-refining
	fetchK := topK
	if shouldRerank {
		fetchK = opts.RerankTopK
		if fetchK <= 0 {
			fetchK = 3 * topK
		}
	}

	queryEmbedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := e.index.Search(queryEmbedding, fetchK)
	if err != nil {
		return nil, err
	}

	results := make([]state.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		result := state.RetrievalResult{
			ID:      hit.ID,
			Score:   1 - hit.Score,
			Content: hit.Text,
		}

		if opts.IncludeGraphContext {
			result.Entities = []graph.Entity{}
			e.mu.RLock()
			docID, ok := e.docByVector[hit.ID]
			e.mu.RUnlock()
			if ok {
				entities, err := e.store.GetDocumentEntities(ctx, docID)
				if err != nil {
					return nil, err
				}
				result.Entities = entities
			}
		}

		results = append(results, result)
	}

	if shouldRerank && len(results) > 0 {
		return e.reranker.RerankResults(ctx, query, results, topK)
	}

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// EntityMatch is an entity found by name search, with its one-hop RELATED_TO
// expansion.
type EntityMatch struct {
	Entity  graph.Entity          `json:"entity"`
	Related []graph.RelatedEntity `json:"related_entities"`
}

// GraphRetrieval combines independent vector and graph result sets. The two
// sets are not joined against each other.
type GraphRetrieval struct {
	VectorResults []state.RetrievalResult `json:"vector_results"`
	GraphResults  []EntityMatch           `json:"graph_results"`
}

// RetrieveWithGraph runs a plain (non-reranked) vector retrieve and,
// independently, an entity-name search with one-hop related-entity expansion
// per match.
func (e *Engine) RetrieveWithGraph(ctx context.Context, query, entityName string, topK int) (*GraphRetrieval, error) {
	noRerank := false
	vectorResults, err := e.Retrieve(ctx, query, RetrieveOptions{
		TopK:        topK,
		UseReranker: &noRerank,
	})
	if err != nil {
		return nil, err
	}

	matches := []EntityMatch{}
	if entityName != "" {
		entities, err := e.store.SearchEntities(ctx, entityName, "")
		if err != nil {
			return nil, err
		}
		for _, entity := range entities {
			related, err := e.store.GetRelatedEntities(ctx, entity.ID, "")
			if err != nil {
				return nil, err
			}
			matches = append(matches, EntityMatch{Entity: entity, Related: related})
		}
	}

	return &GraphRetrieval{
		VectorResults: vectorResults,
		GraphResults:  matches,
	}, nil
}

// GetContext retrieves for the query and greedily concatenates result
// contents, separated by a fixed delimiter, until the character budget of
// maxTokens * 4 is exhausted. The content that would overflow is truncated to
// the remaining budget only when more than 100 characters of budget remain;
// assembly then stops and later results are dropped entirely.
func (e *Engine) GetContext(ctx context.Context, query string, topK, maxTokens int) (string, error) {
	results, err := e.Retrieve(ctx, query, RetrieveOptions{TopK: topK})
	if err != nil {
		return "", err
	}

	charLimit := maxTokens * charsPerToken
	parts := []string{}
	totalChars := 0

	for _, result := range results {
		if result.Content == nil || *result.Content == "" {
			continue
		}
		content := *result.Content
		if totalChars+len(content) <= charLimit {
			parts = append(parts, content)
			totalChars += len(content)
			continue
		}
		if remaining := charLimit - totalChars; remaining > 100 {
			parts = append(parts, content[:remaining])
		}
		break
	}

	return strings.Join(parts, contextDelimiter), nil
}
