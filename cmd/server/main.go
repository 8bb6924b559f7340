package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"knowledge-server/internal/api"
	"knowledge-server/pkg/config"
	"knowledge-server/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("KNOWLEDGE_ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := api.Run(context.Background(), cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}
