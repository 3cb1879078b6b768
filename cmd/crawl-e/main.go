package main

import (
	"os"

	"github.com/slicingmelon/crawl-e-go/core/cli"
	"github.com/slicingmelon/crawl-e-go/core/utils/logger"
)

func main() {
	runner, err := cli.NewRunner()
	if err != nil {
		logger.Error().Msgf("initialization failed: %v", err)
		os.Exit(1)
	}

	if err := runner.Initialize(); err != nil {
		logger.Error().Msgf("initialization failed: %v", err)
		os.Exit(1)
	}

	if err := runner.Run(); err != nil {
		logger.Error().Msgf("crawl failed: %v", err)
		os.Exit(1)
	}
}
