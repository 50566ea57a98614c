package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/ragline/internal/chunk"
)

// Ingestor chunks a document, embeds every chunk, and writes the batch
// to the vector store. It holds no state across calls and is safe for
// concurrent use.
type Ingestor struct {
	splitter *chunk.Splitter
	embedder Embedder
	store    VectorStore
	logger   *slog.Logger
}

// NewIngestor creates an Ingestor with the given capabilities and
// configuration. A nil logger falls back to slog.Default().
func NewIngestor(embedder Embedder, store VectorStore, cfg Config, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingestor{
		splitter: chunk.New(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Ingest splits document into chunks, embeds them in order, and upserts
// all points in one batched vector store call. source tags the logical
// origin of the document (a category name, or SourceChatHistory for
// conversation turns).
//
// The call is fail-fast: an embedding failure on any chunk aborts the
// whole ingestion before anything is written, and a context
// cancellation aborts before the final upsert so an interrupted call
// never partially persists. On success it returns a summary of the form
// "Successfully added N chunks".
func (ing *Ingestor) Ingest(ctx context.Context, document, source string) (string, error) {
	chunks := ing.splitter.Split(document)

	points := make([]Point, 0, len(chunks))
	for i, text := range chunks {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: ingestion aborted at chunk %d: %v", ErrEmbedding, i, err)
		}

		vector, err := ing.embedder.Embed(ctx, text)
		if err != nil {
			return "", fmt.Errorf("%w: chunk %d of %d: %v", ErrEmbedding, i, len(chunks), err)
		}
		if len(vector) == 0 {
			return "", fmt.Errorf("%w: empty vector for chunk %d of %d", ErrEmbedding, i, len(chunks))
		}

		meta := Metadata{
			OriginalText: document,
			ChunkIndex:   i,
			TotalChunks:  len(chunks),
			Timestamp:    time.Now().Unix(),
			Source:       source,
		}

		points = append(points, Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: map[string]any{
				payloadDoc:      text,
				payloadMetadata: meta.asPayload(),
			},
		})
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: ingestion aborted before upsert: %v", ErrVectorStore, err)
	}

	if err := ing.store.Upsert(ctx, points); err != nil {
		return "", fmt.Errorf("%w: upserting %d points: %v", ErrVectorStore, len(points), err)
	}

	ing.logger.Debug("ingested document",
		"source", source,
		"chunks", len(chunks),
		"document_length", len(document))

	return fmt.Sprintf("Successfully added %d chunks", len(chunks)), nil
}
