package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"knowledge-server/internal/embed"
	"knowledge-server/internal/engine"
	"knowledge-server/internal/graph"
	"knowledge-server/internal/rerank"
	"knowledge-server/internal/scrape"
	"knowledge-server/internal/vector"
	"knowledge-server/pkg/config"
)

// Run wires the full server from configuration and serves HTTP until
// the process receives SIGINT or SIGTERM. The vector index is persisted
// on shutdown.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return err
	}
	defer driver.Close(context.Background())

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	store, err := graph.NewStore(ctx, driver)
	if err != nil {
		return err
	}
	defer store.Close()

	index, err := vector.New(cfg.VectorDimension, vector.Metric(cfg.VectorMetric))
	if err != nil {
		return err
	}
	indexPath := cfg.VectorIndexPath()
	if _, statErr := os.Stat(indexPath); statErr == nil {
		if err := index.Load(indexPath); err != nil {
			return err
		}
		log.Info("Loaded vector index", zap.String("path", indexPath), zap.Int("vectors", index.Len()))
	}

	embedder := embed.NewOpenAIEmbedder(
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingModel,
		cfg.VectorDimension,
	)

	var reranker *rerank.Reranker
	if cfg.UseReranker {
		scorer := rerank.NewHTTPScorer(cfg.RerankerURL, cfg.RerankerModel, 30*time.Second)
		reranker, err = rerank.New(cfg.RerankerModel, scorer)
		if err != nil {
			return err
		}
	}

	eng, err := engine.New(index, store, embedder, reranker, cfg.UseReranker)
	if err != nil {
		return err
	}

	fetcher := scrape.NewFetcher(30*time.Second, nil)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := NewServer(eng, store, fetcher, cfg.ScrapeConcurrent, log)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info("Server started", zap.String("host", cfg.Host), zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := index.Save(indexPath); err != nil {
		log.Error("Failed to save vector index", zap.Error(err), zap.String("path", indexPath))
	} else {
		log.Info("Saved vector index", zap.String("path", indexPath), zap.Int("vectors", index.Len()))
	}

	log.Info("Server exited")
	return nil
}
