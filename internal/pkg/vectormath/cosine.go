// Package vectormath holds the small amount of vector arithmetic the cache
// tiers and the in-memory index share.
package vectormath

import "math"

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero vectors score 0 rather than erroring; callers treat that as "no
// match".
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}

	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
