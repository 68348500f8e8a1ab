// Package chunker splits normalized document text into bounded, overlapping
// chunks suitable for embedding and retrieval.
//
// Splitting is structure-aware first and length-based second. Markdown-style
// headings ("# Title") and blank-line paragraph boundaries are detected on the
// raw text before normalization collapses them; each blank-line section that
// fits within chunk size + overlap is emitted as a single chunk, and oversized
// sections fall back to length-based cutting. Proposed cut points snap forward
// to the nearest sentence terminator within the overlap window, then back to
// the last word boundary, and only then fall through to a raw character
// offset. Consecutive length-based chunks share ChunkOverlap characters so
// that sentences straddling a boundary appear whole in at least one chunk.
//
// Every chunk carries its document ID, a strictly increasing chunk index, the
// nearest preceding heading as its section label, an optional 1-based page
// number, a SHA-256 content hash, and a heuristic token count. When language
// detection is enabled the detected ISO 639-1 code is stamped on the chunk and
// its metadata; unreliable detection leaves it unset rather than guessing.
//
// Usage:
//
//	c, err := chunker.New(chunker.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	chunks, err := c.Chunk(ctx, text, documentID, metadata)
package chunker
