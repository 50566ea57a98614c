package rag

import (
	"context"
	"encoding/json"
	"fmt"
)

// SourceChatHistory is the reserved source tag for conversation turns
// ingested by the chat orchestrator.
const SourceChatHistory = "chat_history"

// Payload keys used for stored points.
const (
	payloadDoc      = "doc"
	payloadMetadata = "metadata"
)

// Config holds the pipeline tuning knobs. Values are fixed at
// construction; components never read ambient global state.
type Config struct {
	// ChunkSize is the chunk window size in words.
	ChunkSize int

	// ChunkOverlap is the number of words shared between adjacent chunks.
	ChunkOverlap int

	// SearchLimit is the top-k limit for similarity searches.
	SearchLimit int

	// RelevanceThreshold is the minimum similarity score a search hit
	// needs to be used as context. Hits below it are discarded silently.
	RelevanceThreshold float32
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          512,
		ChunkOverlap:       50,
		SearchLimit:        5,
		RelevanceThreshold: 0.7,
	}
}

// Metadata describes a stored chunk's position and provenance.
// It is persisted as the "metadata" payload object and decoded back on
// retrieval.
type Metadata struct {
	OriginalText string `json:"original_text"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	Timestamp    int64  `json:"timestamp"`
	Source       string `json:"source"`
}

// asPayload converts the metadata to the generic map shape stored in
// the vector store payload.
func (m Metadata) asPayload() map[string]any {
	return map[string]any{
		"original_text": m.OriginalText,
		"chunk_index":   m.ChunkIndex,
		"total_chunks":  m.TotalChunks,
		"timestamp":     m.Timestamp,
		"source":        m.Source,
	}
}

// metadataFromPayload decodes the "metadata" payload value back into a
// Metadata. The value has been through at least one generic-map
// round trip, so numbers may arrive as int, int64, or float64; a JSON
// round trip normalizes them.
func metadataFromPayload(v any) (Metadata, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Metadata{}, fmt.Errorf("encoding metadata payload: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("decoding metadata payload: %w", err)
	}

	if m.TotalChunks < 1 || m.ChunkIndex < 0 || m.ChunkIndex >= m.TotalChunks {
		return Metadata{}, fmt.Errorf("inconsistent chunk position %d/%d", m.ChunkIndex, m.TotalChunks)
	}

	return m, nil
}

// Point is one (id, vector, payload) triple written to the vector store.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is one similarity-search hit returned by the vector
// store, ordered by descending score.
type ScoredPoint struct {
	Score   float32
	Payload map[string]any
}

// SearchResult is a retrieval hit that cleared the relevance threshold
// and decoded successfully. It is never persisted.
type SearchResult struct {
	Text  string
	Score float32
	Meta  Metadata
}

// Embedder converts text into a fixed-length vector. The pipeline
// treats the dimensionality as opaque and accepts any positive length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore stores points and answers top-k similarity queries.
// Implementations are shared handles, safe for concurrent use.
type VectorStore interface {
	// Upsert writes all points in a single batched call.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit hits ordered by descending similarity,
	// with payloads attached.
	Search(ctx context.Context, vector []float32, limit int) ([]ScoredPoint, error)
}

// Generator produces free text from a prompt using the named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}
