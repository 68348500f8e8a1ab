// Package vecmath implements the small amount of vector arithmetic the
// storage and search layers need: cosine similarity, normalization, and
// partial top-k selection over score slices.
package vecmath

import (
	"container/heap"
	"math"
)

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Mismatched lengths or a zero-magnitude input yield 0 rather than
// NaN, so degraded (zeroed) embeddings simply never match anything.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize scales v to unit length in place and returns it. Zero vectors are
// returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Scored pairs an arbitrary index with its score for top-k selection.
type Scored struct {
	Index int
	Score float64
}

// TopK returns the k highest-scoring entries in descending score order,
// breaking ties by lower index. k larger than len(scores) is clamped. The
// selection runs in O(n log k) with a bounded min-heap instead of sorting the
// full slice.
func TopK(scores []float64, k int) []Scored {
	if k > len(scores) {
		k = len(scores)
	}
	if k <= 0 {
		return nil
	}

	h := make(minHeap, 0, k)
	heap.Init(&h)
	for i, s := range scores {
		entry := Scored{Index: i, Score: s}
		if len(h) < k {
			heap.Push(&h, entry)
			continue
		}
		if better(entry, h[0]) {
			h[0] = entry
			heap.Fix(&h, 0)
		}
	}

	out := make([]Scored, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Scored)
	}
	return out
}

// better reports whether a outranks b: higher score first, lower index on
// ties.
func better(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// minHeap keeps the current worst of the retained top-k at the root.
type minHeap []Scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(Scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
