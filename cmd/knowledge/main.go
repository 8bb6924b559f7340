package main

import (
	"os"

	"knowledge-server/internal/cli"
	"knowledge-server/pkg/logger"
)

func main() {
	defer logger.Sync()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
