package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrProviderFailed       = errors.New("embedding provider failed")
	ErrUnknownModel         = errors.New("unknown embedding model")
	ErrEmptyText            = errors.New("text cannot be empty")
	ErrBatchTooLarge        = errors.New("batch size exceeds limit")
	ErrNoProviderConfigured = errors.New("no embedding provider configured")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrRegistrySealed       = errors.New("provider registry is sealed after first use")
)

// Embedding is a single vector with its provenance.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
	Degraded  bool   // True when the vector is a zero-vector fallback
}

// BatchRequest asks a provider for embeddings of multiple texts. Providers
// must return exactly one embedding per input text, in input order.
type BatchRequest struct {
	Texts []string
	Model string // Optional: override the provider default
}

// BatchResponse carries a provider's batch result.
type BatchResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Provider generates embeddings for text. Implementations must preserve the
// 1:1 input-to-output correspondence of GenerateBatch.
type Provider interface {
	// GenerateBatch embeds multiple texts in one call.
	GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)

	// Dimension returns the vector width for the given model, or the
	// provider default when model is empty.
	Dimension(model string) int

	// Name returns the provider name.
	Name() string

	// Model returns the default model name.
	Model() string

	// MaxBatchSize returns the largest batch the provider accepts per call.
	MaxBatchSize() int

	// Close releases any resources held by the provider.
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

const defaultCacheSize = 10000

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		// Cannot happen with a positive size.
		cache, _ = lru.New[string, *Embedding](defaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get retrieves a deep copy of an embedding. Copies keep caller mutations out
// of the cache.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	vector := make([]float32, len(emb.Vector))
	copy(vector, emb.Vector)
	return &Embedding{
		Vector:    vector,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
		Degraded:  emb.Degraded,
	}, true
}

// Set stores an embedding, evicting the least recently used entry at
// capacity. Degraded vectors are never cached: a later retry may succeed.
func (c *Cache) Set(hash string, emb *Embedding) {
	if emb.Degraded {
		return
	}
	c.cache.Add(hash, emb)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 cache key for a text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateBatchRequest rejects empty batches and empty texts. Callers that
// tolerate empty texts (the service's zero-vector fallback) must filter them
// before reaching a provider.
func ValidateBatchRequest(req BatchRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
