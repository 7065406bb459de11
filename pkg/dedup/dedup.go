// Package dedup drops near-identical entries from ranked similarity results.
package dedup

import (
	"math"
	"sort"
)

// DefaultThreshold is the cosine similarity at or above which two candidates
// are treated as the same screenshot.
const DefaultThreshold = 0.999

// CandidateVector is the vector attached to a search hit. It is either a
// FlatVector or NamedVectors.
type CandidateVector interface {
	values() ([]float32, bool)
}

// FlatVector is a single unnamed vector.
type FlatVector []float32

func (v FlatVector) values() ([]float32, bool) {
	return v, len(v) > 0
}

// NamedVectors maps vector names to vectors. Comparison uses the entry with
// the lexicographically smallest name.
type NamedVectors map[string][]float32

func (v NamedVectors) values() ([]float32, bool) {
	if len(v) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	vec := v[names[0]]
	return vec, len(vec) > 0
}

// Candidate is a single ranked hit from the vector index.
type Candidate struct {
	ID      string
	Score   float32
	Vector  CandidateVector
	Payload map[string]any
}

// vector returns the comparison vector of c, or false if it has none.
func (c Candidate) vector() ([]float32, bool) {
	if c.Vector == nil {
		return nil, false
	}
	return c.Vector.values()
}

// Filter walks candidates in order and keeps those whose vector is not at
// least threshold-similar to an already kept candidate. Candidates without a
// vector are always kept. It stops once k candidates are kept and never
// reorders its input.
func Filter(candidates []Candidate, k int, threshold float64) []Candidate {
	kept, _ := FilterCounted(candidates, k, threshold)
	return kept
}

// FilterCounted is Filter that also reports how many candidates were
// discarded as duplicates. Candidates left unvisited after k were kept are
// not counted.
func FilterCounted(candidates []Candidate, k int, threshold float64) ([]Candidate, int) {
	if k <= 0 {
		return nil, 0
	}

	accepted := make([]Candidate, 0, min(k, len(candidates)))
	var acceptedVectors [][]float32
	dropped := 0

	for _, candidate := range candidates {
		if len(accepted) >= k {
			break
		}

		vec, ok := candidate.vector()
		if !ok {
			accepted = append(accepted, candidate)
			continue
		}

		duplicate := false
		for _, kept := range acceptedVectors {
			if CosineSimilarity(vec, kept) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped++
			continue
		}

		accepted = append(accepted, candidate)
		acceptedVectors = append(acceptedVectors, vec)
	}

	return accepted, dropped
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Empty, zero-norm or
// length-mismatched inputs yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
