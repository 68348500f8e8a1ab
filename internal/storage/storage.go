package storage

import (
	"context"
	"time"

	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Document lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// MaxErrorLen bounds the stored failure message; longer messages are
// truncated on write.
const MaxErrorLen = 500

// Operations is the set of persistence and search operations available both
// on a Store and inside a transaction.
type Operations interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	UpdateDocumentStatus(ctx context.Context, id, status, errMsg string) error
	ListDocuments(ctx context.Context, ownerID string) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	GetChunks(ctx context.Context, chunkIDs []int64) (map[int64]*Chunk, error)
	ListChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetDocumentStats(ctx context.Context, documentID string) (*DocumentStats, error)
}

// Store is the persistence interface for documents, chunks, and embeddings.
type Store interface {
	Operations
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction over the same operation set.
type Tx interface {
	Operations
	Commit() error
	Rollback() error
}

// Document is an ingested source document and its processing state.
type Document struct {
	ID        string // UUID
	OwnerID   string
	Name      string
	FilePath  string
	Status    string
	Error     string // Populated when Status is failed, truncated to MaxErrorLen
	PageCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a persisted text chunk row.
type Chunk struct {
	ID          int64
	DocumentID  string
	ChunkIndex  int
	Content     string
	ContentHash [32]byte
	TokenCount  int
	PageNumber  int
	Section     string
	Language    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding is a persisted vector for a chunk. Vector holds little-endian
// float32s; Degraded marks zero-vector placeholders written when embedding
// failed.
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte
	Dimension int
	Provider  string
	Model     string
	Degraded  bool
	CreatedAt time.Time
}

// SearchFilters narrows vector and text search.
type SearchFilters struct {
	OwnerID     string   // Restrict to one owner's documents
	DocumentIDs []string // Restrict to specific documents
	Language    string   // Restrict to chunks in one language
	MinScore    float64  // Drop results scoring below this
}

// VectorResult is one hit from vector similarity search.
type VectorResult struct {
	ChunkID int64
	Score   float64 // Cosine similarity in [-1, 1]
}

// TextResult is one hit from BM25 full-text search.
type TextResult struct {
	ChunkID int64
	Score   float64 // Normalized to (0, 1]
}

// DocumentStats summarizes a document's indexed state.
type DocumentStats struct {
	Document        *Document
	ChunkCount      int
	EmbeddingCount  int
	DegradedCount   int
	TotalTokenCount int
}

// FromTextChunk converts a pipeline chunk to its storage row.
func FromTextChunk(c *types.TextChunk) *Chunk {
	return &Chunk{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		ChunkIndex:  c.ChunkIndex,
		Content:     c.Text,
		ContentHash: c.ContentHash,
		TokenCount:  c.TokenCount,
		PageNumber:  c.PageNumber,
		Section:     c.Section,
		Language:    c.Language,
	}
}

// ToTextChunk converts a storage row back to a pipeline chunk.
func (c *Chunk) ToTextChunk() *types.TextChunk {
	chunk := &types.TextChunk{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		ChunkIndex:  c.ChunkIndex,
		Text:        c.Content,
		ContentHash: c.ContentHash,
		TokenCount:  c.TokenCount,
		PageNumber:  c.PageNumber,
		Section:     c.Section,
		Language:    c.Language,
	}
	if c.Language != "" {
		chunk.Metadata = map[string]any{types.MetadataKeyLanguage: c.Language}
	}
	return chunk
}

// TruncateError trims a failure message to the storable length.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
