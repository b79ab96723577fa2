package store

import (
	"math"
	"sort"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if the lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b embedding.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// storedVector is a vector with the result it would produce.
type storedVector struct {
	vector embedding.Vector
	id     int64
	meta   map[string]any
}

// topKSimilar ranks vectors by cosine similarity to query, highest first.
func topKSimilar(query embedding.Vector, vectors []storedVector, k int) []domainstore.Result {
	if len(vectors) == 0 || k <= 0 {
		return []domainstore.Result{}
	}

	results := make([]domainstore.Result, 0, len(vectors))
	for _, v := range vectors {
		results = append(results, domainstore.NewResult(v.id, CosineSimilarity(query, v.vector), v.meta))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}
