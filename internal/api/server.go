package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowledge-server/internal/engine"
	"knowledge-server/internal/graph"
	"knowledge-server/internal/rerank"
	"knowledge-server/internal/scrape"
	apperrors "knowledge-server/pkg/errors"
)

// Store is the slice of the graph layer the API serves directly, next to the
// engine's orchestrated operations. *graph.Store satisfies it.
type Store interface {
	AddEntity(ctx context.Context, entity graph.Entity) error
	GetDocument(ctx context.Context, docID string) (*graph.Document, error)
	GetEntity(ctx context.Context, entityID string) (*graph.Entity, error)
	LinkEntities(ctx context.Context, sourceID, targetID, relationType string) error
	GetRelatedEntities(ctx context.Context, entityID, relationType string) ([]graph.RelatedEntity, error)
}

// Server exposes the knowledge server's HTTP API
type Server struct {
	engine  *engine.Engine
	store   Store
	fetcher *scrape.Fetcher
	router  *gin.Engine
	logger  *zap.Logger

	scrapeConcurrency int
}

// NewServer builds the API server around an engine and its graph store
func NewServer(eng *engine.Engine, store Store, fetcher *scrape.Fetcher, scrapeConcurrency int, log *zap.Logger) *Server {
	s := &Server{
		engine:            eng,
		store:             store,
		fetcher:           fetcher,
		logger:            log,
		scrapeConcurrency: scrapeConcurrency,
	}

	router := gin.New()
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())
	s.router = router
	s.routes()

	return s
}

// Router returns the configured gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.POST("/documents", s.addDocument)
	s.router.GET("/documents/:id", s.getDocument)
	s.router.POST("/entities", s.addEntity)
	s.router.GET("/entities/:id", s.getEntity)
	s.router.POST("/entities/link", s.linkEntities)
	s.router.GET("/entities/:id/related", s.getRelatedEntities)
	s.router.POST("/search", s.search)
	s.router.POST("/context", s.getContext)
	s.router.GET("/rerankers", s.listRerankers)
	s.router.POST("/scrape", s.scrapeURLs)
}

// Request models

type entityPayload struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type documentRequest struct {
	DocID    string          `json:"doc_id" binding:"required"`
	Title    string          `json:"title" binding:"required"`
	Content  string          `json:"content" binding:"required"`
	URL      string          `json:"url"`
	Entities []entityPayload `json:"entities"`
}

type entityRequest struct {
	EntityID    string `json:"entity_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	EntityType  string `json:"entity_type" binding:"required"`
	Description string `json:"description"`
}

type entityLinkRequest struct {
	SourceID     string `json:"source_id" binding:"required"`
	TargetID     string `json:"target_id" binding:"required"`
	RelationType string `json:"relation_type" binding:"required"`
}

type searchRequest struct {
	Query        string `json:"query" binding:"required"`
	TopK         int    `json:"top_k"`
	IncludeGraph *bool  `json:"include_graph"`
	EntityName   string `json:"entity_name"`
	UseReranker  *bool  `json:"use_reranker"`
}

type contextRequest struct {
	Query     string `json:"query" binding:"required"`
	TopK      int    `json:"top_k"`
	MaxTokens int    `json:"max_tokens"`
}

type scrapeRequest struct {
	URLs               []string `json:"urls" binding:"required"`
	AddToKnowledgeBase *bool    `json:"add_to_knowledge_base"`
}

// Handlers

func (s *Server) addDocument(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entities := make([]graph.Entity, 0, len(req.Entities))
	for _, e := range req.Entities {
		entities = append(entities, graph.Entity{
			ID:          e.ID,
			Name:        e.Name,
			EntityType:  e.Type,
			Description: e.Description,
		})
	}

	doc := graph.Document{ID: req.DocID, Title: req.Title, Content: req.Content, URL: req.URL}
	if err := s.engine.AddDocument(c.Request.Context(), doc, entities); err != nil {
		s.fail(c, "Failed to add document", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "doc_id": req.DocID})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.store.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "Failed to get document", err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) addEntity(c *gin.Context) {
	var req entityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entity := graph.Entity{
		ID:          req.EntityID,
		Name:        req.Name,
		EntityType:  req.EntityType,
		Description: req.Description,
	}
	if err := s.store.AddEntity(c.Request.Context(), entity); err != nil {
		s.fail(c, "Failed to add entity", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "entity_id": req.EntityID})
}

func (s *Server) getEntity(c *gin.Context) {
	entity, err := s.store.GetEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "Failed to get entity", err)
		return
	}
	if entity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (s *Server) linkEntities(c *gin.Context) {
	var req entityLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.LinkEntities(c.Request.Context(), req.SourceID, req.TargetID, req.RelationType); err != nil {
		s.fail(c, "Failed to link entities", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) getRelatedEntities(c *gin.Context) {
	related, err := s.store.GetRelatedEntities(
		c.Request.Context(),
		c.Param("id"),
		c.Query("relation_type"),
	)
	if err != nil {
		s.fail(c, "Failed to get related entities", err)
		return
	}
	c.JSON(http.StatusOK, related)
}

func (s *Server) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if req.EntityName != "" {
		combined, err := s.engine.RetrieveWithGraph(ctx, req.Query, req.EntityName, req.TopK)
		if err != nil {
			s.fail(c, "Search failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"results":       combined.VectorResults,
			"graph_results": combined.GraphResults,
		})
		return
	}

	includeGraph := true
	if req.IncludeGraph != nil {
		includeGraph = *req.IncludeGraph
	}

	results, err := s.engine.Retrieve(ctx, req.Query, engine.RetrieveOptions{
		TopK:                req.TopK,
		IncludeGraphContext: includeGraph,
		UseReranker:         req.UseReranker,
	})
	if err != nil {
		s.fail(c, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) getContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 2000
	}

	contextText, err := s.engine.GetContext(c.Request.Context(), req.Query, req.TopK, req.MaxTokens)
	if err != nil {
		s.fail(c, "Failed to assemble context", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"context": contextText})
}

func (s *Server) listRerankers(c *gin.Context) {
	var current gin.H
	if r := s.engine.Reranker(); r != nil {
		info := r.Info()
		current = gin.H{
			"model_name":  r.ModelKey(),
			"name":        info.Name,
			"description": info.Description,
			"max_length":  info.MaxLength,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"available_models":  rerank.AvailableModels(),
		"current_model":     current,
		"reranking_enabled": s.engine.UseRerankerDefault(),
	})
}

func (s *Server) scrapeURLs(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addToKB := true
	if req.AddToKnowledgeBase != nil {
		addToKB = *req.AddToKnowledgeBase
	}

	ctx := c.Request.Context()
	results := s.fetcher.FetchAll(ctx, req.URLs, s.scrapeConcurrency)

	if addToKB {
		for i, result := range results {
			if result.Page == nil {
				continue
			}
			// Hash of the URL keeps the id stable across re-scrapes
			docID := fmt.Sprintf("scraped_%d", engine.VectorID(result.URL))
			doc := graph.Document{
				ID:      docID,
				Title:   result.Page.Title,
				Content: result.Page.Content,
				URL:     result.URL,
			}
			if err := s.engine.AddDocument(ctx, doc, nil); err != nil {
				results[i].Error = err.Error()
				s.logger.Error("Failed to ingest scraped page",
					zap.String("url", result.URL),
					zap.Error(err),
				)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"scraped": results})
}

// fail maps core errors onto HTTP failure responses
func (s *Server) fail(c *gin.Context, message string, err error) {
	s.logger.Error(message, zap.Error(err))

	switch {
	case apperrors.IsInvalidInput(err) || apperrors.IsDimensionMismatch(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeModel):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

// requestLogger is a structured logging middleware for gin
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
