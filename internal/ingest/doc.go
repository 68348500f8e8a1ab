// Package ingest turns source files into searchable, embedded chunks.
//
// The pipeline runs extract → chunk → embed → persist per document and
// tracks lifecycle status on the document row: pending when registered,
// processing while the stages run, processed on success, failed with a
// truncated error message otherwise.
//
// Chunks and their embeddings are committed in batches, one transaction per
// batch. Combined with the (document, chunk index) upsert in storage this
// gives crash-safe resumption: re-running a partially ingested document
// rewrites the same rows and fills in whatever is missing. Embedding
// failures degrade rather than abort, so a document whose provider was
// flaky still completes with zero-vector placeholders marked degraded.
//
// Multiple documents ingest concurrently through a bounded errgroup pool;
// one file's failure never cancels its siblings.
package ingest
