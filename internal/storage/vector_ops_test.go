package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeVector_RoundTrip(t *testing.T) {
	vector := []float32{0.5, -1.25, 3.75, 0}
	assert.Equal(t, vector, DeserializeVector(SerializeVector(vector)))
	assert.Len(t, SerializeVector(vector), 16)
	assert.Empty(t, DeserializeVector(SerializeVector(nil)))
}

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain words", in: "revenue report", want: "revenue report"},
		{name: "quotes escaped", in: `say "hello"`, want: `say \"hello\"`},
		{name: "wildcard escaped", in: "rev*", want: `rev\*`},
		{name: "boolean operators escaped", in: "cats AND dogs", want: `cats \AND dogs`},
		{name: "parens escaped", in: "(a OR b)", want: `\(a \OR b\)`},
		{name: "lowercase operators untouched", in: "and or not", want: "and or not"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFTSQuery(tt.in))
		})
	}
}

func TestNormalizeBM25(t *testing.T) {
	// More negative raw scores mean more relevant; normalization must invert
	// that into higher-is-better while staying in (0, 1].
	strong := normalizeBM25(-10)
	weak := normalizeBM25(-40)
	assert.Greater(t, weak, 0.0)
	assert.Greater(t, strong, weak)
	assert.Equal(t, 1.0, normalizeBM25(0))
}

// seedSearchData inserts three documents with embedded chunks pointing in
// known vector directions so similarity ordering is predictable.
func seedSearchData(t *testing.T, store *SQLiteStore) (docA, docB *Document, chunkIDs []int64) {
	ctx := context.Background()
	docA = &Document{OwnerID: "alice", Name: "a.txt", FilePath: "/a.txt"}
	docB = &Document{OwnerID: "bob", Name: "b.txt", FilePath: "/b.txt"}
	require.NoError(t, store.CreateDocument(ctx, docA))
	require.NoError(t, store.CreateDocument(ctx, docB))

	seed := []struct {
		doc     *Document
		index   int
		content string
		vector  []float32
	}{
		{docA, 0, "the quarterly revenue grew strongly", []float32{1, 0, 0}},
		{docA, 1, "operating costs stayed flat this quarter", []float32{0.9, 0.1, 0}},
		{docB, 0, "the office picnic was rained out", []float32{0, 1, 0}},
	}
	for _, s := range seed {
		chunk := makeChunk(s.doc.ID, s.index, s.content)
		require.NoError(t, store.UpsertChunk(ctx, chunk))
		require.NoError(t, store.UpsertEmbedding(ctx, &Embedding{
			ChunkID:   chunk.ID,
			Vector:    SerializeVector(s.vector),
			Dimension: len(s.vector),
			Provider:  "local",
			Model:     "m",
		}))
		chunkIDs = append(chunkIDs, chunk.ID)
	}
	return docA, docB, chunkIDs
}

func TestSearchVector_RanksBySimilarity(t *testing.T) {
	store := setupTestDB(t)
	_, _, ids := seedSearchData(t, store)

	results, err := store.SearchVector(context.Background(), []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ids[0], results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, ids[1], results[1].ChunkID)
	assert.Equal(t, ids[2], results[2].ChunkID)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestSearchVector_MinScoreFilter(t *testing.T) {
	store := setupTestDB(t)
	_, _, _ = seedSearchData(t, store)

	results, err := store.SearchVector(context.Background(), []float32{1, 0, 0}, 10,
		&SearchFilters{MinScore: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 2, "orthogonal vector should fall below threshold")
}

func TestSearchVector_OwnerFilter(t *testing.T) {
	store := setupTestDB(t)
	_, _, ids := seedSearchData(t, store)

	results, err := store.SearchVector(context.Background(), []float32{1, 0, 0}, 10,
		&SearchFilters{OwnerID: "bob"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[2], results[0].ChunkID)
}

func TestSearchVector_DocumentFilter(t *testing.T) {
	store := setupTestDB(t)
	docA, _, _ := seedSearchData(t, store)

	results, err := store.SearchVector(context.Background(), []float32{0, 1, 0}, 10,
		&SearchFilters{DocumentIDs: []string{docA.ID}})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchVector_SkipsDegraded(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	doc := makeDocument(t, store, "")
	chunk := makeChunk(doc.ID, 0, "degraded chunk")
	require.NoError(t, store.UpsertChunk(ctx, chunk))
	require.NoError(t, store.UpsertEmbedding(ctx, &Embedding{
		ChunkID:   chunk.ID,
		Vector:    SerializeVector(make([]float32, 3)),
		Dimension: 3,
		Provider:  "local",
		Model:     "m",
		Degraded:  true,
	}))

	results, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVector_ZeroLimit(t *testing.T) {
	store := setupTestDB(t)
	results, err := store.SearchVector(context.Background(), []float32{1}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchText_MatchesAndNormalizes(t *testing.T) {
	store := setupTestDB(t)
	_, _, ids := seedSearchData(t, store)

	results, err := store.SearchText(context.Background(), "revenue", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[0], results[0].ChunkID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.LessOrEqual(t, results[0].Score, 1.0)
}

func TestSearchText_SharedTermRanking(t *testing.T) {
	store := setupTestDB(t)
	_, _, _ = seedSearchData(t, store)

	results, err := store.SearchText(context.Background(), "quarter", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestSearchText_OwnerFilter(t *testing.T) {
	store := setupTestDB(t)
	_, _, _ = seedSearchData(t, store)

	results, err := store.SearchText(context.Background(), "revenue", 10,
		&SearchFilters{OwnerID: "bob"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchText_EmptyQuery(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.SearchText(context.Background(), "", 10, nil)
	assert.Error(t, err)
}

func TestSearchText_NoMatches(t *testing.T) {
	store := setupTestDB(t)
	_, _, _ = seedSearchData(t, store)

	results, err := store.SearchText(context.Background(), "zebra", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
