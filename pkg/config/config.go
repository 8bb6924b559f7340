package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Host string
	Port string
	Env  string

	// Storage
	DataDir       string
	VectorDBPath  string // overrides DataDir-derived path when set
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Vector index
	VectorDimension int
	VectorMetric    string // cos, l2, ip

	// Embedding backend (OpenAI-compatible)
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string

	// Reranker
	UseReranker   bool
	RerankerModel string
	RerankerURL   string

	// Scraping
	ScrapeDelay      time.Duration
	ScrapeConcurrent int
	ScrapeMaxDepth   int
}

// Load reads configuration from environment variables.
// All variables use the KNOWLEDGE_ prefix.
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Host:             getEnv("KNOWLEDGE_HOST", "0.0.0.0"),
		Port:             getEnv("KNOWLEDGE_PORT", "8000"),
		Env:              getEnv("KNOWLEDGE_ENV", "development"),
		DataDir:          getEnv("KNOWLEDGE_DATA_DIR", "./data"),
		VectorDBPath:     getEnv("KNOWLEDGE_VECTOR_DB_PATH", ""),
		Neo4jURI:         getEnv("KNOWLEDGE_NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:        getEnv("KNOWLEDGE_NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("KNOWLEDGE_NEO4J_PASSWORD", "password"),
		VectorDimension:  getEnvInt("KNOWLEDGE_VECTOR_DIMENSION", 384),
		VectorMetric:     getEnv("KNOWLEDGE_VECTOR_METRIC", "cos"),
		EmbeddingBaseURL: getEnv("KNOWLEDGE_EMBEDDING_URL", "http://localhost:4000"),
		EmbeddingAPIKey:  getEnv("KNOWLEDGE_EMBEDDING_API_KEY", ""),
		EmbeddingModel:   getEnv("KNOWLEDGE_EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		UseReranker:      getEnvBool("KNOWLEDGE_USE_RERANKER", false),
		RerankerModel:    getEnv("KNOWLEDGE_RERANKER_MODEL", "ms-marco-MiniLM-L-6-v2"),
		RerankerURL:      getEnv("KNOWLEDGE_RERANKER_URL", "http://localhost:8001"),
		ScrapeDelay:      getEnvDuration("KNOWLEDGE_SCRAPE_DELAY", time.Second),
		ScrapeConcurrent: getEnvInt("KNOWLEDGE_SCRAPE_CONCURRENT", 4),
		ScrapeMaxDepth:   getEnvInt("KNOWLEDGE_SCRAPE_MAX_DEPTH", 2),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("KNOWLEDGE_NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("KNOWLEDGE_NEO4J_USER is required")
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("KNOWLEDGE_VECTOR_DIMENSION must be positive")
	}
	switch c.VectorMetric {
	case "cos", "l2", "ip":
	default:
		return fmt.Errorf("KNOWLEDGE_VECTOR_METRIC must be one of cos, l2, ip")
	}
	if c.ScrapeConcurrent <= 0 {
		return fmt.Errorf("KNOWLEDGE_SCRAPE_CONCURRENT must be positive")
	}
	return nil
}

// VectorIndexPath returns the path of the persisted vector index
func (c *Config) VectorIndexPath() string {
	if c.VectorDBPath != "" {
		return c.VectorDBPath
	}
	return filepath.Join(c.DataDir, "vector_store")
}

// EnsureDirectories creates the data directories if they do not exist
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return os.MkdirAll(filepath.Dir(c.VectorIndexPath()), 0o755)
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
