package types

import (
	"crypto/sha256"
	"errors"
)

// MetadataKeyLanguage is the metadata key under which the chunker records
// the detected language (ISO 639-1 code) of a chunk's source text.
const MetadataKeyLanguage = "language"

// TextChunk represents a bounded contiguous excerpt of a document's text.
//
// Concatenating a document's chunk texts in ChunkIndex order reconstructs the
// normalized source text modulo whitespace collapse and the configured
// overlap duplication.
type TextChunk struct {
	// Identification
	ID         int64  // Storage-assigned, 0 until persisted
	DocumentID string // Owning document
	ChunkIndex int    // Zero-based, strictly increasing within a document

	// Content
	Text        string
	ContentHash [32]byte // SHA-256 of Text, for deduplication and upserts
	TokenCount  int

	// Position and semantics
	PageNumber int    // 1-based source page, 0 when not applicable
	Section    string // Nearest preceding heading, empty when none
	Language   string // Detected ISO 639-1 code, empty when undetected

	// Free-form metadata carried from the source document
	Metadata map[string]any
}

// Validate checks structural invariants of the chunk.
func (c *TextChunk) Validate() error {
	if c.Text == "" {
		return ErrEmptyContent
	}
	if c.DocumentID == "" {
		return ErrMissingDocumentID
	}
	if c.ChunkIndex < 0 {
		return errors.New("chunk index must not be negative")
	}
	if c.PageNumber < 0 {
		return errors.New("page number must not be negative")
	}
	return nil
}

// ComputeContentHash computes and stores the SHA-256 hash of the chunk text.
func (c *TextChunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Text))
}

// ComputeTokenCount estimates the number of tokens in the chunk using the
// chars/4 heuristic. The embedding service replaces this with a tokenizer
// count when one is available.
func (c *TextChunk) ComputeTokenCount() int {
	c.TokenCount = len(c.Text) / 4
	return c.TokenCount
}

// CloneMetadata returns a shallow copy of the chunk's metadata map, never nil.
func (c *TextChunk) CloneMetadata() map[string]any {
	out := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		out[k] = v
	}
	return out
}
