package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/logger"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Defaults for search requests.
const (
	DefaultTopK         = 10
	DefaultRerankTopK   = 10
	DefaultFusionWeight = 0.7 // Dense leg weight; lexical gets the remainder
	MaxTopK             = 100

	queryCacheSize = 512
	queryCacheTTL  = 5 * time.Minute
)

// Request describes one search.
type Request struct {
	Query        string
	OwnerID      string   // Restrict to one owner's documents
	DocumentIDs  []string // Restrict to specific documents
	TopK         int      // Results to return, default DefaultTopK
	Hybrid       bool     // Fuse dense and lexical legs; false is dense-only
	UseReranker  bool     // Re-score a candidate pool before final ranking
	RerankTopK   int      // Candidate pool size for reranking
	MinScore     float64  // Drop fused results below this score
	FusionWeight float64  // Dense weight in [0, 1]; 0 selects the default
}

// Searcher answers queries over ingested chunks by combining vector
// similarity with BM25 full-text ranking.
type Searcher struct {
	store    storage.Store
	embedder *embedder.Service
	reranker Reranker
	cache    *expirable.LRU[string, []*types.SearchResult]
}

// New creates a Searcher. reranker may be nil, which disables reranking even
// when requests ask for it.
func New(store storage.Store, svc *embedder.Service, reranker Reranker) *Searcher {
	return &Searcher{
		store:    store,
		embedder: svc,
		reranker: reranker,
		cache:    expirable.NewLRU[string, []*types.SearchResult](queryCacheSize, nil, queryCacheTTL),
	}
}

// Search runs the request and returns ranked results. A query matching
// nothing, or nothing above MinScore, yields an empty slice and no error.
func (s *Searcher) Search(ctx context.Context, req Request) ([]*types.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is empty", types.ErrEmptyContent)
	}
	req = withDefaults(req)

	key := cacheKey(req)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	fused, err := s.gather(ctx, req)
	if err != nil {
		return nil, err
	}

	poolSize := req.TopK
	if req.UseReranker && s.reranker != nil && req.RerankTopK > poolSize {
		poolSize = req.RerankTopK
	}
	if len(fused) > poolSize {
		fused = fused[:poolSize]
	}

	if req.UseReranker && s.reranker != nil && len(fused) > 0 {
		fused, err = s.reranker.Rerank(ctx, req.Query, fused)
		if err != nil {
			return nil, fmt.Errorf("reranking failed: %w", err)
		}
		sortCandidates(fused)
	}
	if len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}

	results, err := s.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, results)
	return results, nil
}

// Candidate is a chunk id with its current score, flowing between fusion and
// reranking.
type Candidate struct {
	ChunkID int64
	Score   float64
}

// gather runs the search legs and fuses their scores. In hybrid mode both
// legs run concurrently and one leg failing only degrades the result; in
// dense-only mode the vector leg's error is fatal.
func (s *Searcher) gather(ctx context.Context, req Request) ([]Candidate, error) {
	log := logger.FromContext(ctx)
	filters := &storage.SearchFilters{
		OwnerID:     req.OwnerID,
		DocumentIDs: req.DocumentIDs,
	}
	fetchLimit := req.TopK
	if req.UseReranker && req.RerankTopK > fetchLimit {
		fetchLimit = req.RerankTopK
	}

	queryVector, degraded, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	if degraded {
		// A zero query vector carries no signal; the dense leg contributes
		// nothing rather than failing the search.
		log.Warn("query embedding degraded, skipping dense leg")
	}

	if !req.Hybrid {
		if degraded {
			return nil, nil
		}
		dense, err := s.store.SearchVector(ctx, queryVector, fetchLimit, filters)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		return fuse(dense, nil, 1.0, req.MinScore), nil
	}

	type legResult struct {
		dense []storage.VectorResult
		text  []storage.TextResult
		err   error
	}
	denseCh := make(chan legResult, 1)
	textCh := make(chan legResult, 1)

	go func() {
		if degraded {
			denseCh <- legResult{}
			return
		}
		dense, err := s.store.SearchVector(ctx, queryVector, fetchLimit, filters)
		denseCh <- legResult{dense: dense, err: err}
	}()
	go func() {
		text, err := s.store.SearchText(ctx, req.Query, fetchLimit, filters)
		textCh <- legResult{text: text, err: err}
	}()

	denseRes := <-denseCh
	textRes := <-textCh

	// Hybrid tolerates a single failed leg; results just lose that signal.
	if denseRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both search legs failed: %v; %v", denseRes.err, textRes.err)
	}
	if denseRes.err != nil {
		log.Warn("vector leg failed, using text results only", "error", denseRes.err)
	}
	if textRes.err != nil {
		log.Warn("text leg failed, using vector results only", "error", textRes.err)
	}

	return fuse(denseRes.dense, textRes.text, req.FusionWeight, req.MinScore), nil
}

// embedQuery embeds the query text as a single-item batch. degraded reports
// that the provider fell back to a zero vector; the error covers real
// failures like cancellation or a missing provider.
func (s *Searcher) embedQuery(ctx context.Context, query string) (vector []float32, degraded bool, err error) {
	res, err := s.embedder.Embed(ctx, embedder.Request{Texts: []string{query}})
	if err != nil {
		return nil, false, fmt.Errorf("query embedding failed: %w", err)
	}
	return res.Vectors[0], len(res.Degraded) > 0, nil
}

// fuse combines the two legs with a weighted sum. A chunk present in only
// one leg contributes zero from the other, which naturally favors chunks
// both legs agree on. Output is sorted score descending, chunk id ascending
// on ties, and filtered by minScore.
func fuse(dense []storage.VectorResult, text []storage.TextResult, denseWeight, minScore float64) []Candidate {
	scores := make(map[int64]float64, len(dense)+len(text))
	for _, r := range dense {
		scores[r.ChunkID] += denseWeight * r.Score
	}
	for _, r := range text {
		scores[r.ChunkID] += (1 - denseWeight) * r.Score
	}

	out := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		if minScore > 0 && score < minScore {
			continue
		}
		out = append(out, Candidate{ChunkID: id, Score: score})
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by score descending, then chunk id ascending so
// equal scores rank deterministically.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}

// hydrate loads chunk content for the final candidates and assigns 1-based
// ranks.
func (s *Searcher) hydrate(ctx context.Context, candidates []Candidate) ([]*types.SearchResult, error) {
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}
	chunks, err := s.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load result chunks: %w", err)
	}

	results := make([]*types.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		chunk, ok := chunks[c.ChunkID]
		if !ok {
			// Deleted between search and hydration; skip rather than fail.
			continue
		}
		meta := map[string]any{
			"chunk_index": chunk.ChunkIndex,
		}
		if chunk.Section != "" {
			meta["section"] = chunk.Section
		}
		if chunk.PageNumber > 0 {
			meta["page"] = chunk.PageNumber
		}
		if chunk.Language != "" {
			meta[types.MetadataKeyLanguage] = chunk.Language
		}
		results = append(results, &types.SearchResult{
			ChunkID:    c.ChunkID,
			DocumentID: chunk.DocumentID,
			Rank:       len(results) + 1,
			Score:      c.Score,
			Text:       chunk.Content,
			Metadata:   meta,
		})
	}
	return results, nil
}

func withDefaults(req Request) Request {
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}
	if req.RerankTopK <= 0 {
		req.RerankTopK = DefaultRerankTopK
	}
	if req.FusionWeight <= 0 || req.FusionWeight > 1 {
		req.FusionWeight = DefaultFusionWeight
	}
	return req
}

// cacheKey hashes everything that affects the result set.
func cacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%v|%d|%t|%t|%d|%g|%g",
		req.Query, req.OwnerID, req.DocumentIDs, req.TopK,
		req.Hybrid, req.UseReranker, req.RerankTopK, req.MinScore, req.FusionWeight)
	return hex.EncodeToString(h.Sum(nil))
}
