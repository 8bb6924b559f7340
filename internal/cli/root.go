package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"knowledge-server/internal/embed"
	"knowledge-server/internal/engine"
	"knowledge-server/internal/graph"
	"knowledge-server/internal/rerank"
	"knowledge-server/internal/vector"
	"knowledge-server/pkg/config"
	"knowledge-server/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Knowledge base with vector and graph retrieval",
	Long: `knowledge manages a hybrid knowledge base: documents are embedded into
a vector index and linked to entities in a Neo4j graph. Use it to add
documents, search the knowledge base, and scrape web pages into it.`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is called by main.main(). It only needs to happen once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		if err := logger.Init(os.Getenv("KNOWLEDGE_ENV")); err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
	})

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(scrapeCmd)
}

// handle bundles the per-invocation engine with the resources it owns
type handle struct {
	cfg    *config.Config
	engine *engine.Engine
	store  *graph.Store
	index  *vector.Index
	driver neo4j.DriverWithContext
}

// Close releases the handle's connections and, when dirty, persists the index
func (h *handle) Close(ctx context.Context, saveIndex bool) error {
	var firstErr error
	if saveIndex {
		if err := h.index.Save(h.cfg.VectorIndexPath()); err != nil {
			firstErr = fmt.Errorf("failed to save vector index: %w", err)
		}
	}
	if err := h.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := h.driver.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// buildEngine wires a retrieval engine from configuration, loading
// any previously persisted vector index
func buildEngine(ctx context.Context) (*handle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	store, err := graph.NewStore(ctx, driver)
	if err != nil {
		driver.Close(ctx)
		return nil, err
	}

	index, err := vector.New(cfg.VectorDimension, vector.Metric(cfg.VectorMetric))
	if err != nil {
		store.Close()
		driver.Close(ctx)
		return nil, err
	}
	indexPath := cfg.VectorIndexPath()
	if _, statErr := os.Stat(indexPath); statErr == nil {
		if err := index.Load(indexPath); err != nil {
			store.Close()
			driver.Close(ctx)
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
	}

	embedder := embed.NewOpenAIEmbedder(
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingModel,
		cfg.VectorDimension,
	)

	var reranker *rerank.Reranker
	if cfg.UseReranker {
		scorer := rerank.NewHTTPScorer(cfg.RerankerURL, cfg.RerankerModel, 0)
		reranker, err = rerank.New(cfg.RerankerModel, scorer)
		if err != nil {
			store.Close()
			driver.Close(ctx)
			return nil, err
		}
	}

	eng, err := engine.New(index, store, embedder, reranker, cfg.UseReranker)
	if err != nil {
		store.Close()
		driver.Close(ctx)
		return nil, err
	}

	return &handle{
		cfg:    cfg,
		engine: eng,
		store:  store,
		index:  index,
		driver: driver,
	}, nil
}
