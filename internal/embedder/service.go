package embedder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dshills/docsearch-mcp/pkg/logger"
)

// Request asks the service to embed a slice of texts.
type Request struct {
	Texts     []string
	Provider  string // Optional: select a registered provider by name
	Model     string // Optional: override the provider default
	BatchSize int    // Optional: override the service default
}

// Result is the service's answer. Vectors always has exactly one entry per
// request text, in request order; entries whose embedding could not be
// produced are zero vectors and their positions are listed in Degraded.
type Result struct {
	Vectors       [][]float32
	Provider      string
	Model         string
	Dimension     int
	TokenEstimate int
	Degraded      []int
}

// Service is a registry of named providers wrapped with batching, failure
// isolation, and token accounting. A provider error never fails the whole
// request: the failing batch is split and retried, and texts that still
// cannot be embedded get zero-vector placeholders so callers keep positional
// alignment.
//
// The registry seals on first Embed; registering afterwards fails with
// ErrRegistrySealed so concurrent embeds never observe a changing provider
// set.
type Service struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
	batchSize   int
	sealed      atomic.Bool
}

// NewService creates an embedding service with provider registered as the
// default. batchSize <= 0 selects the service default; per-request batches
// are additionally capped at each provider's per-call limit.
func NewService(provider Provider, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		providers:   map[string]Provider{provider.Name(): provider},
		defaultName: provider.Name(),
		batchSize:   batchSize,
	}
}

// Register adds a named provider. Registration is only allowed before the
// first Embed call and rejects duplicate names.
func (s *Service) Register(name string, provider Provider) error {
	if s.sealed.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[name]; exists {
		return fmt.Errorf("%w: provider %q already registered", ErrInvalidInput, name)
	}
	s.providers[name] = provider
	return nil
}

// Provider returns the default provider.
func (s *Service) Provider() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers[s.defaultName]
}

// resolve picks the provider for a request, defaulting when name is empty.
func (s *Service) resolve(name string) (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.defaultName
	}
	provider, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q not registered", ErrNoProviderConfigured, name)
	}
	return provider, nil
}

// Close releases every registered provider, returning the first error.
func (s *Service) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first error
	for _, provider := range s.providers {
		if err := provider.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Embed generates one vector per request text. Blank texts are zeroed without
// touching the provider. Vectors whose width disagrees with the model's
// declared dimension are kept but logged; storage-side search tolerates them
// by scoring mismatched pairs as zero.
func (s *Service) Embed(ctx context.Context, req Request) (*Result, error) {
	s.sealed.Store(true)

	provider, err := s.resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = provider.Model()
	}
	dim := provider.Dimension(model)

	result := &Result{
		Vectors:   make([][]float32, len(req.Texts)),
		Provider:  provider.Name(),
		Model:     model,
		Dimension: dim,
	}
	if len(req.Texts) == 0 {
		return result, nil
	}

	log := logger.FromContext(ctx)

	// Blank texts never reach the provider; they are zeroed up front.
	var liveTexts []string
	var liveIdx []int
	for i, text := range req.Texts {
		if strings.TrimSpace(text) == "" {
			result.Vectors[i] = make([]float32, dim)
			result.Degraded = append(result.Degraded, i)
			continue
		}
		liveTexts = append(liveTexts, text)
		liveIdx = append(liveIdx, i)
		result.TokenEstimate += estimateTokens(text)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	if max := provider.MaxBatchSize(); batchSize > max {
		batchSize = max
	}

	for start := 0; start < len(liveTexts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + batchSize
		if end > len(liveTexts) {
			end = len(liveTexts)
		}
		vectors := s.embedBatch(ctx, provider, liveTexts[start:end], model)
		for j, vec := range vectors {
			pos := liveIdx[start+j]
			if vec == nil {
				result.Vectors[pos] = make([]float32, dim)
				result.Degraded = append(result.Degraded, pos)
				continue
			}
			if len(vec) != dim {
				log.Warn("embedding dimension mismatch",
					"model", model, "want", dim, "got", len(vec))
			}
			result.Vectors[pos] = vec
		}
	}

	sort.Ints(result.Degraded)
	return result, nil
}

// embedBatch embeds one batch, bisecting on failure. The returned slice is
// positionally aligned with texts; nil entries mark texts that failed even as
// singletons.
func (s *Service) embedBatch(ctx context.Context, provider Provider, texts []string, model string) [][]float32 {
	resp, err := provider.GenerateBatch(ctx, BatchRequest{Texts: texts, Model: model})
	if err == nil && len(resp.Embeddings) == len(texts) {
		vectors := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			vectors[i] = emb.Vector
		}
		return vectors
	}

	log := logger.FromContext(ctx)
	if len(texts) == 1 {
		log.Warn("embedding failed, emitting zero vector", "model", model, "error", err)
		return make([][]float32, 1)
	}

	// A mixed batch may be failing on one oversized or malformed text.
	// Splitting isolates the bad input instead of zeroing the whole batch.
	log.Warn("embedding batch failed, splitting",
		"model", model, "batch", len(texts), "error", err)
	mid := len(texts) / 2
	left := s.embedBatch(ctx, provider, texts[:mid], model)
	right := s.embedBatch(ctx, provider, texts[mid:], model)
	return append(left, right...)
}

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// estimateTokens counts tokens with the cl100k_base encoding, falling back to
// the runes/4 heuristic when the encoding files are unavailable (tiktoken
// fetches them lazily and may be offline).
func estimateTokens(text string) int {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenizer = enc
		}
	})
	if tokenizer != nil {
		return len(tokenizer.Encode(text, nil, nil))
	}
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
