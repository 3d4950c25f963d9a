package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/at-ishikawa/pictomap/internal/bootstrap"
	"github.com/at-ishikawa/pictomap/internal/config"
	"github.com/at-ishikawa/pictomap/internal/pipeline"
	"github.com/at-ishikawa/pictomap/internal/server"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("godotenv.Load() > %w", err)
	}
	setupLogger(os.Getenv("PICTOMAP_DEBUG") != "")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline.New() > %w", err)
	}

	app := bootstrap.New()
	app.AddShutdownHook(func(ctx context.Context) error {
		return p.Close()
	})

	httpServer := server.New(cfg.Server, server.NewRouter(cfg.Server, server.NewMarkersHandler(p)))
	app.AddShutdownHook(httpServer.Shutdown)

	return app.Run(ctx, httpServer.Run)
}

func loadConfig() (*config.Config, error) {
	configFile := os.Getenv("PICTOMAP_CONFIG")
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

func setupLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
