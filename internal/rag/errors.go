package rag

import "errors"

// Sentinel errors for pipeline failures. Wrapped errors carry the
// underlying cause in their message; match with errors.Is.
var (
	// ErrEmbedding indicates the embedding capability failed or
	// returned an unusable vector.
	ErrEmbedding = errors.New("embedding failed")

	// ErrVectorStore indicates a vector store upsert or search failed.
	ErrVectorStore = errors.New("vector store operation failed")

	// ErrGeneration indicates the generative capability failed.
	ErrGeneration = errors.New("generation failed")
)
