// Package types defines the shared domain types for document indexing and search.
//
// The package is dependency-free and shared across the internal packages and
// any external consumers of the module. It contains:
//
//   - TextChunk: a bounded excerpt of a document's text with positional and
//     semantic metadata (page, section, language)
//   - SearchResult: a ranked chunk returned from a search query
//   - Sentinel errors for input validation and the error taxonomy shared by
//     the ingestion and search pipelines
//
// # Chunk Lifecycle
//
// Chunks are created in bulk by the chunker from a single document's text,
// are immutable once created except for the later attachment of an embedding
// vector and detected language, and are destroyed when the owning document is
// deleted. Within a document, ChunkIndex is zero-based, unique, and strictly
// increasing.
package types
