package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/corvid-labs/ragline/db"
	"github.com/corvid-labs/ragline/internal/chat"
	"github.com/corvid-labs/ragline/internal/config"
	"github.com/corvid-labs/ragline/internal/exchange"
	"github.com/corvid-labs/ragline/internal/genai"
	"github.com/corvid-labs/ragline/internal/rag"
	"github.com/corvid-labs/ragline/internal/vector"
)

// Setup creates and initializes the application. Returns an App with
// embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.Exchanges = exchange.New(pool, logger)

	client, err := genai.New(ctx, genai.Config{
		Host:              cfg.OllamaHost,
		EmbedModel:        cfg.EmbedModel,
		ChatModel:         cfg.ChatModel,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing ollama client: %w", err)
	}
	a.Genai = client

	store, err := provideVectorStore(ctx, cfg, client, logger)
	if err != nil {
		return nil, err
	}
	a.Vector = store

	ragCfg := rag.Config{
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		SearchLimit:        cfg.SearchLimit,
		RelevanceThreshold: cfg.RelevanceThreshold,
	}
	a.Ingestor = rag.NewIngestor(client, store, ragCfg, logger)
	a.Retriever = rag.NewRetriever(client, store, ragCfg, logger)

	a.Chat = chat.New(a.Ingestor, a.Retriever, client, a.Exchanges, chat.Config{
		DefaultModel: cfg.ChatModel,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	return a, nil
}

// provideDBPool runs migrations, then opens and pings the pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideVectorStore connects to Qdrant and makes sure the collection
// exists. The embedding dimension is learned by probing the embedder
// once, so the collection always matches the configured model.
func provideVectorStore(ctx context.Context, cfg *config.Config, embedder *genai.Client, logger *slog.Logger) (*vector.Store, error) {
	store, err := vector.NewStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	probe, err := embedder.Embed(ctx, "dimension probe")
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("probing embedding dimension: %w", err)
	}

	if err := store.EnsureCollection(ctx, uint64(len(probe))); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	return store, nil
}

// provideOtelShutdown wires OTLP trace export onto Genkit's tracer
// provider. Tracing is disabled when no endpoint is configured; the
// returned cleanup is always safe to call.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Called exactly once during startup, before goroutines spawn.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
