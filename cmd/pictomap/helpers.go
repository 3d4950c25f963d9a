package main

import (
	"context"
	"fmt"

	"github.com/at-ishikawa/pictomap/internal/config"
	"github.com/at-ishikawa/pictomap/internal/pipeline"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

func newPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline.New > %w", err)
	}
	return p, nil
}
