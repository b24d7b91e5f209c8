package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docpipe/internal/adapter/docparse"
	"docpipe/internal/adapter/gemini"
	"docpipe/internal/app"
	"docpipe/internal/config"
	"docpipe/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()
	defer deps.Producer.Stop()

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		return err
	}
	defer embedder.Close()

	parser := docparse.NewClient(cfg.ParserURL)

	a, err := app.New(cfg, deps.DB, deps.ChunkStore, deps.Producer, embedder, parser)
	if err != nil {
		return err
	}

	if err := a.ConnectWakeConsumer(cfg.NSQLookupd); err != nil {
		slog.Warn("wake consumer unavailable, relying on poll interval", "error", err)
	}

	return a.Run(ctx)
}
