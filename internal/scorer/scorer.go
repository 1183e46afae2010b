// Package scorer computes TF-IDF weight vectors and cosine similarity.
//
// Sums run in ascending term ID order so a given pair of vectors always
// scores to the same bits.
package scorer

import (
	"math"
	"slices"
)

// Vector is a sparse TF-IDF weight vector keyed by term ID. IDs lists the
// keys of Components in ascending order.
type Vector struct {
	Components map[int]float64
	IDs        []int
	Magnitude  float64
}

// TermWeight is the TF-IDF weight of a term seen count times:
// (1 + log10(count)) * idf.
func TermWeight(count int, idf float64) float64 {
	if count <= 0 {
		return 0
	}
	return (1 + math.Log10(float64(count))) * idf
}

// Weigh converts raw term counts into a TF-IDF vector. Term IDs outside the
// weight table contribute nothing.
func Weigh(counts map[int]int, weights []float64) Vector {
	v := Vector{
		Components: make(map[int]float64, len(counts)),
		IDs:        make([]int, 0, len(counts)),
	}
	for t := range counts {
		v.IDs = append(v.IDs, t)
	}
	slices.Sort(v.IDs)

	var sumSquares float64
	for _, t := range v.IDs {
		var idf float64
		if t >= 0 && t < len(weights) {
			idf = weights[t]
		}
		w := TermWeight(counts[t], idf)
		v.Components[t] = w
		sumSquares += w * w
	}
	v.Magnitude = math.Sqrt(sumSquares)
	return v
}

// Dot sums q[t]*d[t] over the term IDs present in both vectors.
func Dot(q, d Vector) float64 {
	small, large := q, d
	if len(small.Components) > len(large.Components) {
		small, large = large, small
	}
	var sum float64
	for _, t := range small.sortedIDs() {
		if other, ok := large.Components[t]; ok {
			sum += small.Components[t] * other
		}
	}
	return sum
}

// Cosine is the cosine similarity of q and d, or 0 when either vector has
// zero magnitude.
func Cosine(q, d Vector) float64 {
	if q.Magnitude == 0 || d.Magnitude == 0 {
		return 0
	}
	return Dot(q, d) / (q.Magnitude * d.Magnitude)
}

// sortedIDs returns IDs, deriving it for vectors not built by Weigh.
func (v Vector) sortedIDs() []int {
	if len(v.IDs) == len(v.Components) {
		return v.IDs
	}
	ids := make([]int, 0, len(v.Components))
	for t := range v.Components {
		ids = append(ids, t)
	}
	slices.Sort(ids)
	return ids
}
