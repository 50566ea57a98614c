// Package app provides application initialization and dependency
// wiring. Setup builds the full pipeline (Ollama client, Qdrant store,
// PostgreSQL conversation log, retrieval components, orchestrator)
// from one Config, and App.Close releases it all.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvid-labs/ragline/internal/chat"
	"github.com/corvid-labs/ragline/internal/config"
	"github.com/corvid-labs/ragline/internal/exchange"
	"github.com/corvid-labs/ragline/internal/genai"
	"github.com/corvid-labs/ragline/internal/rag"
	"github.com/corvid-labs/ragline/internal/vector"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// External capabilities
	Genai  *genai.Client
	Vector *vector.Store
	DBPool *pgxpool.Pool

	// Pipeline components
	Exchanges *exchange.Store
	Ingestor  *rag.Ingestor
	Retriever *rag.Retriever
	Chat      *chat.Orchestrator

	otelCleanup func()
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down application")

	if a.Vector != nil {
		if err := a.Vector.Close(); err != nil {
			logger.Warn("closing vector store", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
