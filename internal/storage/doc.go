// Package storage persists documents, chunks, and embeddings in SQLite and
// serves the two retrieval legs: cosine-similarity vector search and BM25
// full-text search.
//
// # Schema
//
// Three tables plus an FTS5 index:
//
//   - documents: one row per ingested document with its lifecycle status
//     (pending → processing → processed | failed) and a truncated error
//     message on failure.
//   - chunks: ordered text chunks, UNIQUE on (document_id, chunk_index) so
//     re-ingestion upserts in place instead of duplicating rows.
//   - embeddings: one vector blob per chunk (little-endian float32), with a
//     degraded flag for zero-vector placeholders. Degraded rows are excluded
//     from vector search.
//   - chunks_fts: contentless-delete FTS5 index over chunk content and
//     section labels, kept in sync by triggers.
//
// Migrations are semver-versioned and applied automatically on Open.
//
// # Build Modes
//
// Two SQLite drivers are selected by build tag. The sqlite_vec tag compiles
// mattn/go-sqlite3 with the sqlite-vec extension so cosine distance runs in
// SQL; the default purego build compiles modernc.org/sqlite and scores
// vectors in Go via the vecmath package. Both paths return identical result
// ordering: score descending, chunk id ascending on ties.
//
// # Concurrency
//
// The connection pool is pinned to a single connection; SQLite's WAL mode
// plus one writer avoids SQLITE_BUSY churn. Transactions share the full
// operation set through the Tx interface.
package storage
