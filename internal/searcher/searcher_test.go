package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/logger"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// stubProvider returns fixed vectors per text so similarity is predictable.
type stubProvider struct {
	dim     int
	vectors map[string][]float32
	failOn  map[string]bool
}

func newStubProvider(dim int) *stubProvider {
	return &stubProvider{
		dim:     dim,
		vectors: map[string][]float32{},
		failOn:  map[string]bool{},
	}
}

func (p *stubProvider) GenerateBatch(_ context.Context, req embedder.BatchRequest) (*embedder.BatchResponse, error) {
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if p.failOn[text] {
			return nil, errors.New("stub provider failure")
		}
		vector, ok := p.vectors[text]
		if !ok {
			vector = make([]float32, p.dim)
			vector[0] = 1
		}
		embeddings[i] = &embedder.Embedding{
			Vector: vector, Dimension: p.dim, Provider: "stub", Model: "stub-model",
		}
	}
	return &embedder.BatchResponse{Embeddings: embeddings, Provider: "stub", Model: "stub-model"}, nil
}

func (p *stubProvider) Dimension(string) int { return p.dim }
func (p *stubProvider) Name() string         { return "stub" }
func (p *stubProvider) Model() string        { return "stub-model" }
func (p *stubProvider) MaxBatchSize() int    { return 100 }
func (p *stubProvider) Close() error         { return nil }

type fixture struct {
	store    *storage.SQLiteStore
	provider *stubProvider
	searcher *Searcher
	doc      *storage.Document
	chunkIDs []int64
}

// newFixture seeds three chunks:
//
//	0: "database indexing strategies"  vector (1, 0, 0)
//	1: "cooking pasta at home"         vector (0, 1, 0)
//	2: "index tuning for databases"    vector (0.9, 0.1, 0)
func newFixture(t *testing.T) *fixture {
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	doc := &storage.Document{OwnerID: "alice", Name: "notes.txt", FilePath: "/notes.txt", Status: storage.StatusProcessed}
	require.NoError(t, store.CreateDocument(ctx, doc))

	seed := []struct {
		content string
		vector  []float32
	}{
		{"database indexing strategies", []float32{1, 0, 0}},
		{"cooking pasta at home", []float32{0, 1, 0}},
		{"index tuning for databases", []float32{0.9, 0.1, 0}},
	}

	f := &fixture{store: store, provider: newStubProvider(3), doc: doc}
	for i, s := range seed {
		chunk := &storage.Chunk{
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			Content:     s.content,
			ContentHash: sha256.Sum256([]byte(s.content)),
			TokenCount:  5,
		}
		require.NoError(t, store.UpsertChunk(ctx, chunk))
		require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   chunk.ID,
			Vector:    storage.SerializeVector(s.vector),
			Dimension: 3,
			Provider:  "stub",
			Model:     "stub-model",
		}))
		f.chunkIDs = append(f.chunkIDs, chunk.ID)
	}

	svc := embedder.NewService(f.provider, 0)
	f.searcher = New(store, svc, NewEmbeddingReranker(store, svc))
	return f
}

func testCtx() context.Context {
	return logger.WithContext(context.Background(), logger.Nop())
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	_, err := f.searcher.Search(testCtx(), Request{Query: "   "})
	assert.ErrorIs(t, err, types.ErrEmptyContent)
}

func TestSearch_DenseOnlyRanking(t *testing.T) {
	f := newFixture(t)
	f.provider.vectors["database performance"] = []float32{1, 0, 0}

	results, err := f.searcher.Search(testCtx(), Request{Query: "database performance"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, f.chunkIDs[0], results[0].ChunkID)
	assert.Equal(t, f.chunkIDs[2], results[1].ChunkID)
	assert.Equal(t, f.chunkIDs[1], results[2].ChunkID)

	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, f.doc.ID, r.DocumentID)
		assert.NotEmpty(t, r.Text)
	}
}

func TestSearch_HybridBoostsAgreement(t *testing.T) {
	f := newFixture(t)
	// The query vector is closest to chunk 0, and "databases" lexically
	// matches chunk 2. Both should beat the pasta chunk.
	f.provider.vectors["databases"] = []float32{1, 0, 0}

	results, err := f.searcher.Search(testCtx(), Request{Query: "databases", Hybrid: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top2 := []int64{results[0].ChunkID, results[1].ChunkID}
	assert.Contains(t, top2, f.chunkIDs[0])
	assert.Contains(t, top2, f.chunkIDs[2])
}

func TestSearch_ThresholdYieldsEmptyNotError(t *testing.T) {
	f := newFixture(t)
	f.provider.vectors["anything"] = []float32{1, 0, 0}

	results, err := f.searcher.Search(testCtx(), Request{Query: "anything", MinScore: 0.999999})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TopKLimits(t *testing.T) {
	f := newFixture(t)
	f.provider.vectors["databases again"] = []float32{1, 0, 0}

	results, err := f.searcher.Search(testCtx(), Request{Query: "databases again", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_TieBreakByChunkID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two extra chunks with identical vectors force equal dense scores.
	for i, content := range []string{"twin chunk one", "twin chunk two"} {
		chunk := &storage.Chunk{
			DocumentID:  f.doc.ID,
			ChunkIndex:  10 + i,
			Content:     content,
			ContentHash: sha256.Sum256([]byte(content)),
		}
		require.NoError(t, f.store.UpsertChunk(ctx, chunk))
		require.NoError(t, f.store.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   chunk.ID,
			Vector:    storage.SerializeVector([]float32{0, 0, 1}),
			Dimension: 3,
			Provider:  "stub",
			Model:     "stub-model",
		}))
		f.chunkIDs = append(f.chunkIDs, chunk.ID)
	}

	f.provider.vectors["twins"] = []float32{0, 0, 1}
	results, err := f.searcher.Search(testCtx(), Request{Query: "twins", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, f.chunkIDs[3], results[0].ChunkID)
	assert.Equal(t, f.chunkIDs[4], results[1].ChunkID)
	assert.Less(t, results[0].ChunkID, results[1].ChunkID)
}

func TestSearch_HybridSurvivesEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.failOn["databases"] = true

	results, err := f.searcher.Search(testCtx(), Request{Query: "databases", Hybrid: true})
	require.NoError(t, err)
	require.NotEmpty(t, results, "text leg should still produce results")
	assert.Equal(t, f.chunkIDs[2], results[0].ChunkID)
}

func TestSearch_DenseOnlyDegradedQueryYieldsEmpty(t *testing.T) {
	f := newFixture(t)
	f.provider.failOn["broken query"] = true

	results, err := f.searcher.Search(testCtx(), Request{Query: "broken query"})
	require.NoError(t, err)
	assert.Empty(t, results, "a zero query vector has no dense signal")
}

func TestSearch_Reranker(t *testing.T) {
	f := newFixture(t)
	// Lexically "index tuning" favors chunk 2, but the reranker re-scores by
	// pure cosine similarity where chunk 0 wins.
	f.provider.vectors["index tuning"] = []float32{1, 0, 0}

	results, err := f.searcher.Search(testCtx(), Request{
		Query:       "index tuning",
		Hybrid:      true,
		UseReranker: true,
		RerankTopK:  10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, f.chunkIDs[0], results[0].ChunkID)
}

func TestSearch_CacheServesRepeatQueries(t *testing.T) {
	f := newFixture(t)
	f.provider.vectors["cached query"] = []float32{1, 0, 0}

	first, err := f.searcher.Search(testCtx(), Request{Query: "cached query"})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Removing the data does not affect a cached answer within the TTL.
	require.NoError(t, f.store.DeleteDocument(context.Background(), f.doc.ID))

	second, err := f.searcher.Search(testCtx(), Request{Query: "cached query"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWithDefaults(t *testing.T) {
	req := withDefaults(Request{})
	assert.Equal(t, DefaultTopK, req.TopK)
	assert.Equal(t, DefaultRerankTopK, req.RerankTopK)
	assert.Equal(t, DefaultFusionWeight, req.FusionWeight)

	req = withDefaults(Request{TopK: 1000})
	assert.Equal(t, MaxTopK, req.TopK)
}

func TestFuse_WeightedSum(t *testing.T) {
	dense := []storage.VectorResult{{ChunkID: 1, Score: 1.0}, {ChunkID: 2, Score: 0.5}}
	text := []storage.TextResult{{ChunkID: 2, Score: 1.0}, {ChunkID: 3, Score: 0.8}}

	fused := fuse(dense, text, 0.7, 0)
	require.Len(t, fused, 3)

	scores := map[int64]float64{}
	for _, c := range fused {
		scores[c.ChunkID] = c.Score
	}
	assert.InDelta(t, 0.7, scores[1], 1e-9)
	assert.InDelta(t, 0.7*0.5+0.3*1.0, scores[2], 1e-9)
	assert.InDelta(t, 0.3*0.8, scores[3], 1e-9)

	// Chunk 2 carries both signals and must rank first.
	assert.Equal(t, int64(2), fused[0].ChunkID)
}
