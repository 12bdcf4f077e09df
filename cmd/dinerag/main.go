package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/config"
	"github.com/knoguchi/dinerag/internal/embedder"
	"github.com/knoguchi/dinerag/internal/ingestion"
	"github.com/knoguchi/dinerag/internal/llm"
	"github.com/knoguchi/dinerag/internal/server"
	"github.com/knoguchi/dinerag/internal/service"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting recommendation service",
		"grpc_port", cfg.GRPCPort,
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"embedder", cfg.EmbedderProvider,
	)

	embed := newEmbedder(cfg)
	slog.Info("initialized embedder", "model", embed.ModelName(), "dimension", embed.Dimension())

	store := catalog.NewStore(embed,
		catalog.WithLoadConcurrency(cfg.EmbedConcurrency),
		catalog.WithLogger(slog.Default()),
	)

	opts := []service.Option{
		service.WithLogger(slog.Default()),
		service.WithRetrievalTimeout(cfg.RetrievalTimeout),
		service.WithMaxOverview(cfg.ContextMaxOverview),
	}
	if cfg.GenerationEnabled {
		opts = append(opts, service.WithGenerator(llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.OllamaLLMModel),
		)))
		slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)
	}
	svc, err := service.New(store, embed, opts...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer := server.NewGRPCServer(server.GRPCServerConfig{
		Port:   cfg.GRPCPort,
		Logger: slog.Default(),
	})

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:               cfg.HTTPPort,
		Logger:             slog.Default(),
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DefaultTopK:        cfg.DefaultTopK,
		MaxTopK:            cfg.MaxTopK,
	}, svc)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 3)

	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := loadCatalog(ctx, cfg, svc); err != nil {
			errCh <- err
		}
	}()

	// Probes report not-ready until the catalog is in memory.
	go func() {
		if err := store.WaitReady(ctx); err != nil {
			return
		}
		grpcServer.SetServing(true)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errCh:
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}
	cancel()

	slog.Info("shutting down servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown gRPC server", "error", err)
	}

	slog.Info("servers stopped")
	return runErr
}

func newEmbedder(cfg *config.Config) embedder.Embedder {
	if cfg.EmbedderProvider != config.ProviderOllama {
		return embedder.NewHashEmbedder(cfg.EmbeddingDimension)
	}

	ollama := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:          cfg.OllamaURL,
		Model:            cfg.OllamaEmbeddingModel,
		BatchConcurrency: cfg.EmbedConcurrency,
		Timeout:          cfg.EmbedTimeout,
	})
	return embedder.NewGuarded(ollama, embedder.GuardConfig{
		MaxInFlight:      cfg.EmbedConcurrency,
		Timeout:          cfg.EmbedTimeout,
		RatePerSecond:    cfg.EmbedRateLimit,
		FailureThreshold: cfg.EmbedBreakerFailures,
		Cooldown:         cfg.EmbedBreakerCooldown,
		Logger:           slog.Default(),
	})
}

func loadCatalog(ctx context.Context, cfg *config.Config, svc *service.Service) error {
	loader := ingestion.NewLoader(ingestion.Config{
		CachePath: cfg.CatalogPath,
		SourceURL: cfg.CatalogSourceURL,
		Limit:     cfg.CatalogLimit,
		PageSize:  cfg.CatalogPageSize,
		Download:  cfg.CatalogDownload,
		Logger:    slog.Default(),
	})

	res, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	n, err := svc.LoadCatalog(ctx, res.Records)
	if err != nil {
		return err
	}

	slog.Info("catalog ready",
		"records", n,
		"source", res.Source,
		"pages", res.Pages,
		"content_hash", res.ContentHash,
		"duration", res.Duration,
	)
	return nil
}
