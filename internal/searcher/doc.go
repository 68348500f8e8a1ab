// Package searcher answers queries over ingested chunks.
//
// A search runs up to two legs. The dense leg embeds the query and ranks
// chunks by cosine similarity to their stored vectors; the lexical leg runs
// BM25 full-text search. In hybrid mode both legs run concurrently and their
// scores fuse by weighted sum (dense weight defaulting to 0.7), so chunks
// both legs agree on rise to the top. One leg failing in hybrid mode only
// degrades the result, and a query whose embedding falls back to a zero
// vector simply contributes no dense signal: dense-only it yields an empty
// result, hybrid it leaves the lexical leg to answer alone.
//
// Results order by fused score descending with ties broken by lower chunk
// id, making equal-score rankings deterministic. A MinScore threshold that
// filters everything out returns an empty result, never an error.
//
// An optional reranker re-scores the top candidate pool before the final
// cut. Recent query results are cached in a TTL-bounded LRU keyed by the
// full request shape.
package searcher
