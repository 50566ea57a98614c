package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Retriever embeds queries and assembles context from similar stored
// chunks. It holds no state across calls and is safe for concurrent use.
type Retriever struct {
	embedder  Embedder
	store     VectorStore
	limit     int
	threshold float32
	logger    *slog.Logger
}

// NewRetriever creates a Retriever with the given capabilities and
// configuration. A nil logger falls back to slog.Default().
func NewRetriever(embedder Embedder, store VectorStore, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}

	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = DefaultConfig().SearchLimit
	}

	return &Retriever{
		embedder:  embedder,
		store:     store,
		limit:     limit,
		threshold: cfg.RelevanceThreshold,
		logger:    logger,
	}
}

// Search embeds query, runs a top-k similarity search, and returns the
// hits that cleared the relevance threshold and decoded cleanly, in the
// store's similarity order. Hits below the threshold, or with payloads
// that do not decode as chunk metadata, are dropped without error.
func (r *Retriever) Search(ctx context.Context, query string) ([]SearchResult, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrEmbedding, err)
	}

	hits, err := r.store.Search(ctx, vector, r.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: searching %d nearest: %v", ErrVectorStore, r.limit, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < r.threshold {
			continue
		}

		text, ok := hit.Payload[payloadDoc].(string)
		if !ok {
			r.logger.Warn("dropping hit without document text", "score", hit.Score)
			continue
		}

		meta, err := metadataFromPayload(hit.Payload[payloadMetadata])
		if err != nil {
			r.logger.Warn("dropping hit with malformed metadata", "score", hit.Score, "error", err)
			continue
		}

		results = append(results, SearchResult{
			Text:  text,
			Score: hit.Score,
			Meta:  meta,
		})
	}

	return results, nil
}

// Retrieve embeds query, searches the vector store, and renders the
// surviving hits into a context block. Each hit becomes one entry of
// the form
//
//	Content (relevance score: 0.87): <chunk text>
//	Source: <source>
//
// joined by blank lines. An empty string is a valid result: nothing
// cleared the threshold.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	results, err := r.Search(ctx, query)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(results))
	for _, res := range results {
		lines = append(lines, fmt.Sprintf("Content (relevance score: %.2f): %s\nSource: %s",
			res.Score, res.Text, res.Meta.Source))
	}

	return strings.Join(lines, "\n\n"), nil
}
