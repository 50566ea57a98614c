// Package rag implements the retrieval-augmented generation pipeline.
//
// The pipeline has two halves. The Ingestor splits a document into
// overlapping chunks, embeds each chunk, and writes the resulting
// (id, vector, payload) points to the vector store in one batch. The
// Retriever embeds a query, runs a top-k similarity search, filters the
// hits by relevance score, and renders the survivors into a context
// string for prompt assembly.
//
// External systems are consumed through three narrow capability
// interfaces (Embedder, VectorStore, Generator) defined here by
// the consumer. Production adapters live in internal/genai (Ollama via
// Genkit) and internal/vector (Qdrant); tests substitute in-memory
// fakes.
//
// # Payload layout
//
// Each stored point carries the chunk text under "doc" and a metadata
// object under "metadata":
//
//	{
//	    "doc": "chunk text...",
//	    "metadata": {
//	        "original_text": "full source document",
//	        "chunk_index":   0,
//	        "total_chunks":  3,
//	        "timestamp":     1735689600,
//	        "source":        "notes"
//	    }
//	}
//
// A search hit whose payload does not decode into this shape is dropped
// silently: one corrupt record must never break retrieval for the rest
// of the results.
//
// # Error taxonomy
//
// Failures are classified with the sentinel errors ErrEmbedding,
// ErrVectorStore, and ErrGeneration; callers match them with
// errors.Is. Payload decode failures are recovered locally and never
// surface as errors.
package rag
