package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/dshills/docsearch-mcp/internal/vecmath"
)

// SearchVector ranks chunks by cosine similarity to the query vector. With
// the sqlite-vec extension available the distance is computed in SQL;
// otherwise candidate vectors are pulled into Go and scored with vecmath.
// Ties are broken by lower chunk id so results are deterministic.
func (o ops) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return o.searchVectorOptimized(ctx, vector, limit, filters)
	}
	return o.searchVectorFallback(ctx, vector, limit, filters)
}

// searchVectorOptimized pushes distance computation into SQL via sqlite-vec.
// vec_distance_cosine returns a distance, converted to similarity as
// 1 - distance.
func (o ops) searchVectorOptimized(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	blob := serializeVector(vector)
	query := `
		SELECT c.id, 1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN documents d ON c.document_id = d.id
		WHERE e.degraded = 0
	`
	args := []any{blob}
	query, args = applySearchFilters(query, args, filters)

	if filters != nil && filters.MinScore > 0 {
		query += " AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?"
		args = append(args, blob, filters.MinScore)
	}

	query += " ORDER BY similarity DESC, c.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchVectorFallback scores candidates in Go for builds without the
// sqlite-vec extension. Vectors of mismatched dimension score zero rather
// than erroring, matching vecmath semantics.
func (o ops) searchVectorFallback(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	query := `
		SELECT c.id, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN documents d ON c.document_id = d.id
		WHERE e.degraded = 0
	`
	args := []any{}
	query, args = applySearchFilters(query, args, filters)
	// Scan in id order so equal scores resolve to the lower chunk id.
	query += " ORDER BY c.id ASC"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunkIDs []int64
	var scores []float64
	for rows.Next() {
		var chunkID int64
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, err
		}
		score := vecmath.CosineSimilarity(vector, deserializeVector(blob))
		if filters != nil && filters.MinScore > 0 && score < filters.MinScore {
			continue
		}
		chunkIDs = append(chunkIDs, chunkID)
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := vecmath.TopK(scores, limit)
	results := make([]VectorResult, len(top))
	for i, entry := range top {
		results[i] = VectorResult{ChunkID: chunkIDs[entry.Index], Score: entry.Score}
	}
	return results, nil
}

// SearchText runs BM25 full-text search over chunk content and section
// labels. Raw BM25 scores (negative, lower is better) are normalized to
// (0, 1] so they can be fused with cosine similarities.
func (o ops) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	if limit <= 0 {
		return []TextResult{}, nil
	}
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	sqlQuery := `
		SELECT c.id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.id
		INNER JOIN documents d ON c.document_id = d.id
		WHERE chunks_fts MATCH ?
	`
	args := []any{sanitized}
	sqlQuery, args = applySearchFilters(sqlQuery, args, filters)

	sqlQuery += " ORDER BY score, c.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := o.q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, err
		}
		r.Score = normalizeBM25(r.Score)
		if filters != nil && filters.MinScore > 0 && r.Score < filters.MinScore {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// normalizeBM25 maps raw BM25 output (typically in [-50, 0], lower meaning
// more relevant) onto (0, 1] with higher meaning more relevant.
func normalizeBM25(raw float64) float64 {
	return 1.0 / (1.0 + math.Abs(raw)/50.0)
}

// applySearchFilters appends the shared WHERE conditions for both search
// legs. Assumes the query already joins documents as d and chunks as c.
func applySearchFilters(query string, args []any, filters *SearchFilters) (string, []any) {
	if filters == nil {
		return query, args
	}

	if filters.OwnerID != "" {
		query += " AND d.owner_id = ?"
		args = append(args, filters.OwnerID)
	}

	if len(filters.DocumentIDs) > 0 {
		query += " AND c.document_id IN ("
		for i, id := range filters.DocumentIDs {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, id)
		}
		query += ")"
	}

	if filters.Language != "" {
		query += " AND c.language = ?"
		args = append(args, filters.Language)
	}

	return query, args
}

// serializeVector converts a float32 slice to a little-endian byte blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// FTS5 Boolean operators that must be escaped in user queries.
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery escapes FTS5 syntax in a user query so free text cannot
// inject match expressions.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		`"`, `\"`,
		`*`, `\*`,
		`(`, `\(`,
		`)`, `\)`,
	)
	escaped := replacer.Replace(query)
	return ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})
}

// SerializeVector is an exported helper for callers persisting embeddings.
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for callers reading embeddings.
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}
