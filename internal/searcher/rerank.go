package searcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/internal/vecmath"
)

// Reranker re-scores a candidate pool against the query. Implementations
// return the same candidates with updated scores; ordering is the caller's
// job.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// EmbeddingReranker scores candidates by direct cosine similarity between
// the query embedding and each candidate's stored vector. Fusion mixes in
// lexical signal; reranking strips it back out, which sharpens results for
// paraphrased queries that share no terms with their best chunks.
type EmbeddingReranker struct {
	store    storage.Store
	embedder *embedder.Service
}

// NewEmbeddingReranker creates the default reranker.
func NewEmbeddingReranker(store storage.Store, svc *embedder.Service) *EmbeddingReranker {
	return &EmbeddingReranker{store: store, embedder: svc}
}

// Rerank replaces each candidate's score with its cosine similarity to the
// query. Candidates whose embedding is missing or degraded score zero.
func (r *EmbeddingReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	res, err := r.embedder.Embed(ctx, embedder.Request{Texts: []string{query}})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(res.Degraded) > 0 {
		// No usable query vector; keep the fused ordering as-is.
		return candidates, nil
	}
	queryVector := res.Vectors[0]

	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = Candidate{ChunkID: c.ChunkID}
		emb, err := r.store.GetEmbedding(ctx, c.ChunkID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if emb.Degraded {
			continue
		}
		out[i].Score = vecmath.CosineSimilarity(queryVector, storage.DeserializeVector(emb.Vector))
	}
	return out, nil
}
