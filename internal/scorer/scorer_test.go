package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var weights = []float64{0, 1.0, 2.0, 0.5}

func TestTermWeight(t *testing.T) {
	assert.InDelta(t, 2.0, TermWeight(1, 2.0), 1e-12)
	assert.InDelta(t, (1+math.Log10(2))*0.5, TermWeight(2, 0.5), 1e-12)
	assert.InDelta(t, 2*1.0, TermWeight(10, 1.0), 1e-12)
	assert.Zero(t, TermWeight(0, 3.0))
}

func TestWeigh(t *testing.T) {
	v := Weigh(map[int]int{1: 2, 2: 1}, weights)

	assert.InDelta(t, 1+math.Log10(2), v.Components[1], 1e-12)
	assert.InDelta(t, 2.0, v.Components[2], 1e-12)
	assert.InDelta(t, math.Sqrt(math.Pow(1+math.Log10(2), 2)+4), v.Magnitude, 1e-12)

	outside := Weigh(map[int]int{42: 3}, weights)
	assert.Zero(t, outside.Magnitude)
}

func TestCosineSelfSimilarity(t *testing.T) {
	counts := map[int]int{1: 3, 2: 1, 3: 7}
	q := Weigh(counts, weights)
	d := Weigh(map[int]int{1: 3, 2: 1, 3: 7}, weights)
	assert.InDelta(t, 1.0, Cosine(q, d), 1e-9)
}

func TestCosineScenario(t *testing.T) {
	q := Weigh(map[int]int{1: 2}, weights)
	a := Weigh(map[int]int{1: 2, 2: 1}, weights)
	b := Weigh(map[int]int{1: 1}, weights)
	c := Weigh(map[int]int{3: 5}, weights)

	assert.InDelta(t, 0.545292, Cosine(q, a), 5e-7)
	assert.InDelta(t, 1.0, Cosine(q, b), 1e-9)
	assert.Zero(t, Cosine(q, c))
}

func TestCosineZeroMagnitude(t *testing.T) {
	zero := Weigh(map[int]int{0: 4}, weights)
	d := Weigh(map[int]int{1: 1}, weights)

	assert.Zero(t, Cosine(zero, d))
	assert.Zero(t, Cosine(d, zero))
	assert.Zero(t, Cosine(Vector{}, Vector{}))
	assert.False(t, math.IsNaN(Cosine(zero, zero)))
}

func TestCosineBounds(t *testing.T) {
	q := Weigh(map[int]int{1: 1, 2: 4}, weights)
	for _, counts := range []map[int]int{{1: 1}, {2: 9, 3: 1}, {1: 5, 2: 5, 3: 5}} {
		s := Cosine(q, Weigh(counts, weights))
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0+1e-12)
	}
}

func TestDotOnlySharedTerms(t *testing.T) {
	q := Vector{Components: map[int]float64{1: 2, 2: 3}}
	d := Vector{Components: map[int]float64{2: 4, 3: 100}}
	assert.InDelta(t, 12.0, Dot(q, d), 1e-12)
	assert.InDelta(t, 12.0, Dot(d, q), 1e-12)
}

func TestWeighSortsTermIDs(t *testing.T) {
	v := Weigh(map[int]int{9: 1, 3: 2, 7: 1, 1: 4}, []float64{0, 1, 0, 1, 0, 0, 0, 1, 0, 1})
	assert.Equal(t, []int{1, 3, 7, 9}, v.IDs)
}

func TestCosineIsBitStable(t *testing.T) {
	idf := []float64{0, 0.31, 1.7, 0.93, 2.2, 0.047, 1.13, 0.58, 3.01}
	counts := map[int]int{1: 3, 2: 7, 3: 1, 4: 9, 5: 2, 6: 4, 7: 5, 8: 6}
	q := Weigh(map[int]int{1: 1, 2: 2, 3: 1, 4: 1, 5: 1, 6: 1, 7: 1, 8: 1}, idf)

	want := Cosine(q, Weigh(counts, idf))
	for i := 0; i < 200; i++ {
		d := Weigh(counts, idf)
		assert.Equal(t, want, Cosine(q, d))
		assert.Equal(t, want, Cosine(d, q))
	}
}
