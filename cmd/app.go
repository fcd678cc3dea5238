package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowbase/knowbase/internal/config"
	"github.com/knowbase/knowbase/internal/database"
	"github.com/knowbase/knowbase/internal/embedding"
	"github.com/knowbase/knowbase/internal/knowledge"
)

// app bundles the wired dependencies every data-path command needs.
type app struct {
	cfg     *config.Config
	engine  *knowledge.Engine
	logger  *slog.Logger
	cleanup func()
}

// newApp loads configuration, connects to PostgreSQL, selects the
// embedding provider, and assembles the knowledge engine. Callers must
// invoke cleanup when done.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.Default()

	pool, cleanup, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		cleanup()
		return nil, err
	}

	// The client knows its model's true vector size; the OpenAI models
	// do not produce the locally configured 768 dimensions.
	dimension := cfg.EmbeddingDimension
	if sized, ok := embedder.(interface{ Dimension() int }); ok {
		dimension = sized.Dimension()
	}

	store, err := knowledge.NewStore(pool, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	engine, err := knowledge.NewEngine(store, embedder, knowledge.Config{
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		MinContentLength: cfg.MinContentLength,
		MaxContentLength: cfg.MaxContentLength,
		Dimension:        dimension,
		EmbedTimeout:     cfg.EmbedTimeout(),
		StoreTimeout:     cfg.StoreQueryTimeout(),
	}, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return &app{cfg: cfg, engine: engine, logger: logger, cleanup: cleanup}, nil
}

// newEmbedder picks the embedding client from the configured provider.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		client, err := embedding.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("creating openai embedder: %w", err)
		}
		return client, nil
	default:
		client, err := embedding.NewHTTPClient(embedding.HTTPClientConfig{
			BaseURL:           cfg.EmbeddingURL,
			Dimension:         cfg.EmbeddingDimension,
			Timeout:           cfg.EmbedTimeout(),
			RequestsPerSecond: cfg.EmbeddingRPS,
		})
		if err != nil {
			return nil, fmt.Errorf("creating http embedder: %w", err)
		}
		return client, nil
	}
}
