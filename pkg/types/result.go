package types

// SearchResult represents a single ranked search result.
//
// Results are produced transiently per query and never persisted.
type SearchResult struct {
	// Identification
	ChunkID    int64
	DocumentID string
	Rank       int // Position in the result set (1-based)

	// Scoring. Higher is better. The score is the fused dense+lexical score,
	// or the reranker's score when reranking ran.
	Score float64

	// Content
	Text string

	// Metadata snapshot from the chunk (page, section, language, source keys)
	Metadata map[string]any
}

// Validate checks if the search result is well-formed.
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}
	if sr.DocumentID == "" {
		return ErrMissingDocumentID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Text == "" {
		return ErrEmptyContent
	}
	return nil
}
