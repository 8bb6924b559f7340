package embed

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "knowledge-server/pkg/errors"
	"knowledge-server/pkg/logger"
)

// Embedder maps text to a fixed-dimension float vector. Implementations are
// pure functions over their model; the retrieval core owns no embedding
// state. The dimension must equal the vector index's configured dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. Pointing the
// base URL at a local inference gateway (LiteLLM, text-embeddings-inference)
// serves sentence-transformer models through the same wire shape.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	logger    *zap.Logger
}

// NewOpenAIEmbedder creates an embedder client. dimension > 0 enables a
// response check against the expected vector length; 0 disables it.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimension int) *OpenAIEmbedder {
	// Local gateways accept any key; the client just requires one
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		dimension: dimension,
		logger:    logger.Named("embed"),
	}
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		e.logger.Error("Embedding request failed",
			zap.Error(err),
			zap.String("model", e.model),
			zap.Int("batch_size", len(texts)),
		)
		return nil, apperrors.NewModelUnavailable("embedder", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewModelUnavailable("embedder",
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if e.dimension > 0 && len(data.Embedding) != e.dimension {
			return nil, apperrors.NewDimensionMismatch(e.dimension, len(data.Embedding))
		}
		vectors[i] = data.Embedding
	}

	return vectors, nil
}
