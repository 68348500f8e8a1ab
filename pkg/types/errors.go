package types

import "errors"

// Error taxonomy shared across the ingestion and search pipelines.
//
// Configuration errors are fatal and never retried. Unsupported-input errors
// are fatal to the single call that triggered them. Provider errors are
// retried and eventually degrade rather than failing the whole operation;
// they are defined in the embedder package.
var (
	// ErrUnsupportedInput is returned when a document's file type is not
	// recognized by any extraction strategy.
	ErrUnsupportedInput = errors.New("unsupported input type")

	// ErrEmptyDocument is returned when a non-empty text was required.
	ErrEmptyDocument = errors.New("document text is empty")

	// Search result validation errors.
	ErrInvalidChunkID    = errors.New("invalid chunk ID")
	ErrMissingDocumentID = errors.New("document ID is required")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrEmptyContent      = errors.New("content cannot be empty")
)
