package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/tracing"
)

var plain = normalizer.New(normalizer.StemmerFunc(func(w string) string { return w }))

func newIndex(t testing.TB, terms []string, docs ...corpus.Document) *corpus.Index {
	t.Helper()
	vocab, err := vocabulary.New(terms)
	require.NoError(t, err)
	idx, err := corpus.NewIndex(vocab, docs)
	require.NoError(t, err)
	return idx
}

func scenarioEngine(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	idx := newIndex(t, []string{"word1", "word2", "word3"},
		corpus.Document{ID: "A", Terms: map[int]int{1: 2, 2: 1}},
		corpus.Document{ID: "B", Terms: map[int]int{1: 1}},
		corpus.Document{ID: "C", Terms: map[int]int{3: 5}},
	)
	e, err := New(idx, []float64{0, 1.0, 2.0, 0.5}, append([]Option{WithNormalizer(plain)}, opts...)...)
	require.NoError(t, err)
	return e
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func TestThreeDocumentScenario(t *testing.T) {
	e := scenarioEngine(t)

	res, err := e.SearchScored(context.Background(), "word1 word1")
	require.NoError(t, err)

	assert.Equal(t, []string{"word1", "word1"}, res.Terms)
	assert.Equal(t, 2, res.Candidates, "only A and B contain term 1")
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "B", res.Hits[0].DocID)
	assert.Equal(t, 1.0, round6(res.Hits[0].Score))
	assert.Equal(t, "A", res.Hits[1].DocID)
	assert.Equal(t, 0.545292, round6(res.Hits[1].Score))

	ids, err := e.Search(context.Background(), "word1 word1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, ids)
}

func TestEmptyAndUnknownQueries(t *testing.T) {
	e := scenarioEngine(t)
	for _, q := range []string{"", "   ", "?!", "nothing here matches", "\n\r"} {
		ids, err := e.Search(context.Background(), q)
		require.NoError(t, err, q)
		assert.Empty(t, ids, q)
	}
}

func TestStopWordThreshold(t *testing.T) {
	idx := newIndex(t, []string{"the", "love"},
		corpus.Document{ID: "X", Terms: map[int]int{1: 9, 2: 1}},
	)
	e, err := New(idx, []float64{0, 0.19, 1.3}, WithNormalizer(plain))
	require.NoError(t, err)

	q := e.Analyze("the the love")
	assert.Equal(t, []string{"love"}, q.Terms)
	assert.Equal(t, map[int]int{2: 1}, q.Counts)

	ids, err := e.Search(context.Background(), "the")
	require.NoError(t, err)
	assert.Empty(t, ids, "a query of stop words has no candidates")

	lenient, err := New(idx, []float64{0, 0.19, 1.3}, WithNormalizer(plain), WithStopWordThreshold(0.1))
	require.NoError(t, err)
	ids, err = lenient.Search(context.Background(), "the")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, ids)
}

func TestCandidateFilterHalfOfDistinctTerms(t *testing.T) {
	idx := newIndex(t, []string{"a", "b", "c", "d"},
		corpus.Document{ID: "one", Terms: map[int]int{1: 1}},
		corpus.Document{ID: "two", Terms: map[int]int{1: 1, 2: 1}},
		corpus.Document{ID: "three", Terms: map[int]int{1: 1, 2: 1, 3: 1}},
		corpus.Document{ID: "none", Terms: map[int]int{4: 1}},
	)
	e, err := New(idx, []float64{0, 1, 1, 1, 1}, WithNormalizer(plain))
	require.NoError(t, err)

	// three distinct terms: 1 < 1.5 excluded, 2 >= 1.5 kept
	assert.Equal(t, []string{"three", "two"}, e.candidates(e.Analyze("a b c")))
	// two distinct terms: a single match is exactly half
	assert.Equal(t, []string{"one", "three", "two"}, e.candidates(e.Analyze("a b")))
	// repeated terms do not count as distinct
	assert.Equal(t, []string{"one", "three", "two"}, e.candidates(e.Analyze("a a a a")))
}

func TestCandidateFilterIsMonotonic(t *testing.T) {
	base := []corpus.Document{
		{ID: "d1", Terms: map[int]int{1: 2, 2: 1}},
		{ID: "d2", Terms: map[int]int{2: 3}},
		{ID: "d3", Terms: map[int]int{3: 1}},
	}
	weights := []float64{0, 1, 1, 1}
	small, err := New(newIndex(t, []string{"a", "b", "c"}, base...), weights, WithNormalizer(plain))
	require.NoError(t, err)

	more := append(append([]corpus.Document{}, base...),
		corpus.Document{ID: "d4", Terms: map[int]int{1: 1, 2: 1, 3: 1}},
		corpus.Document{ID: "d5", Terms: map[int]int{3: 4}},
	)
	large, err := New(newIndex(t, []string{"a", "b", "c"}, more...), weights, WithNormalizer(plain))
	require.NoError(t, err)

	for _, text := range []string{"a", "a b", "a b c", "c"} {
		before := small.candidates(small.Analyze(text))
		after := large.candidates(large.Analyze(text))
		for _, id := range before {
			assert.Contains(t, after, id, "query %q", text)
		}
	}
}

func TestTopKAndOrdering(t *testing.T) {
	docs := make([]corpus.Document, 0, 40)
	for i := 0; i < 40; i++ {
		docs = append(docs, corpus.Document{
			ID:    fmt.Sprintf("doc%02d", i),
			Terms: map[int]int{1: i%7 + 1, 2: i%3 + 1, 3: i%11 + 1},
		})
	}
	idx := newIndex(t, []string{"a", "b", "c"}, docs...)
	e, err := New(idx, []float64{0, 0.3, 1.1, 2.5}, WithNormalizer(plain))
	require.NoError(t, err)

	res, err := e.SearchScored(context.Background(), "a b b c")
	require.NoError(t, err)
	assert.Equal(t, 40, res.Candidates)
	require.Len(t, res.Hits, 10)
	for i := 1; i < len(res.Hits); i++ {
		prev, cur := res.Hits[i-1], res.Hits[i]
		assert.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.Less(t, prev.DocID, cur.DocID)
		}
	}

	small, err := New(idx, []float64{0, 0.3, 1.1, 2.5}, WithNormalizer(plain), WithTopK(3))
	require.NoError(t, err)
	ids, err := small.Search(context.Background(), "a b b c")
	require.NoError(t, err)
	assert.Equal(t, res.IDs()[:3], ids)
}

func TestEqualScoresDoNotCollide(t *testing.T) {
	idx := newIndex(t, []string{"a", "b"},
		corpus.Document{ID: "twin-b", Terms: map[int]int{1: 2}},
		corpus.Document{ID: "twin-a", Terms: map[int]int{1: 2}},
		corpus.Document{ID: "other", Terms: map[int]int{1: 1, 2: 5}},
	)
	e, err := New(idx, []float64{0, 1, 1}, WithNormalizer(plain))
	require.NoError(t, err)

	res, err := e.SearchScored(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, "twin-a", res.Hits[0].DocID)
	assert.Equal(t, "twin-b", res.Hits[1].DocID)
	assert.Equal(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.Equal(t, "other", res.Hits[2].DocID)
}

func TestIdenticalMultiTermDocumentsRankByID(t *testing.T) {
	terms := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	docs := make([]corpus.Document, 0, 12)
	for i := 11; i >= 0; i-- {
		docs = append(docs, corpus.Document{
			ID:    fmt.Sprintf("d%02d", i),
			Terms: map[int]int{1: 3, 2: 7, 3: 1, 4: 9, 5: 2, 6: 4, 7: 5, 8: 6},
		})
	}
	idx := newIndex(t, terms, docs...)
	e, err := New(idx, []float64{0, 0.31, 1.7, 0.93, 2.2, 0.27, 1.13, 0.58, 3.01}, WithNormalizer(plain))
	require.NoError(t, err)

	want := []string{"d00", "d01", "d02", "d03", "d04", "d05", "d06", "d07", "d08", "d09"}
	first, err := e.SearchScored(context.Background(), "a b b c d e f g h")
	require.NoError(t, err)
	require.Equal(t, want, first.IDs())
	for _, h := range first.Hits {
		assert.Equal(t, first.Hits[0].Score, h.Score)
	}

	for i := 0; i < 200; i++ {
		res, err := e.SearchScored(context.Background(), "a b b c d e f g h")
		require.NoError(t, err)
		require.Equal(t, first, res, "run %d", i)
	}
}

func TestSelfSimilarity(t *testing.T) {
	idx := newIndex(t, []string{"a", "b", "c"},
		corpus.Document{ID: "mirror", Terms: map[int]int{1: 3, 2: 1, 3: 2}},
		corpus.Document{ID: "noise", Terms: map[int]int{1: 1, 3: 9}},
	)
	e, err := New(idx, []float64{0, 0.7, 1.9, 0.4}, WithNormalizer(plain))
	require.NoError(t, err)

	res, err := e.SearchScored(context.Background(), "a a a b c c")
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "mirror", res.Hits[0].DocID)
	assert.InDelta(t, 1.0, res.Hits[0].Score, 1e-9)
}

func TestZeroMagnitudeQueryReturnsNothing(t *testing.T) {
	idx := newIndex(t, []string{"a"}, corpus.Document{ID: "X", Terms: map[int]int{1: 1}})
	e, err := New(idx, []float64{0, 0}, WithNormalizer(plain), WithStopWordThreshold(0))
	require.NoError(t, err)

	res, err := e.SearchScored(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Empty(t, res.Hits)
}

func TestDocumentFilter(t *testing.T) {
	e := scenarioEngine(t, WithDocumentFilter(func(id string) bool { return id != "B" }))
	ids, err := e.Search(context.Background(), "word1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids)
}

func TestIdempotent(t *testing.T) {
	e := scenarioEngine(t)
	first, err := e.SearchScored(context.Background(), "word1 word2 word3")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := e.SearchScored(context.Background(), "word1 word2 word3")
		require.NoError(t, err)
		require.Equal(t, first, again, "run %d", i)
	}
}

func TestParallelScoringMatchesSequential(t *testing.T) {
	docs := make([]corpus.Document, 0, 300)
	for i := 0; i < 300; i++ {
		docs = append(docs, corpus.Document{
			ID:    fmt.Sprintf("t%03d", i),
			Terms: map[int]int{1: i%5 + 1, 2: i%13 + 1, 3: i%2 + 1, 4: i%9 + 1},
		})
	}
	idx := newIndex(t, []string{"a", "b", "c", "d"}, docs...)
	weights := []float64{0, 0.4, 1.2, 0.9, 2.2}

	seq, err := New(idx, weights, WithNormalizer(plain))
	require.NoError(t, err)
	par, err := New(idx, weights, WithNormalizer(plain), WithParallelScoring(1, 6))
	require.NoError(t, err)

	want, err := seq.SearchScored(context.Background(), "a b d d")
	require.NoError(t, err)
	got, err := par.SearchScored(context.Background(), "a b d d")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSearchCancelled(t *testing.T) {
	e := scenarioEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, "word1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchRecordsPhaseSpans(t *testing.T) {
	e := scenarioEngine(t)
	ctx, root := tracing.StartSpan(context.Background(), "search", "trace")

	_, err := e.Search(ctx, "word1")
	require.NoError(t, err)

	names := make([]string, 0, len(root.Children))
	for _, c := range root.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"normalize", "filter", "score", "rank"}, names)
}

func TestQueryKey(t *testing.T) {
	e := scenarioEngine(t)
	a := e.Analyze("word1 word2 word1")
	b := e.Analyze("Word2, WORD1 word1!")
	assert.Equal(t, "1:2,2:1", a.Key())
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, e.Analyze("zzz").Empty())
}

func TestNewRejectsMismatchedWeights(t *testing.T) {
	idx := newIndex(t, []string{"a", "b"})
	_, err := New(idx, []float64{0, 1})
	assert.ErrorIs(t, err, apperrors.ErrMalformedWeights)

	_, err = New(nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEndToEndFromFiles(t *testing.T) {
	corpusText := strings.Join([]string{
		"# test corpus",
		"%i,i,love,you,heart,break,night",
		"SONG1,1,1:4,2:6,3:5",
		"SONG2,2,4:3,5:2,6:1",
		"SONG3,3,1:1,6:7",
		"SONG4,4,2:1,3:1,4:1",
	}, "\n")
	idx, err := corpus.Build(context.Background(), strings.NewReader(corpusText))
	require.NoError(t, err)

	var buf strings.Builder
	weights := vocabulary.ComputeWeights(idx.Len(), idx.DocumentFrequencies())
	require.NoError(t, vocabulary.WriteWeights(&buf, weights))
	loaded, err := vocabulary.LoadWeights(strings.NewReader(buf.String()), idx.Vocabulary().Size()+1)
	require.NoError(t, err)

	e, err := New(idx, loaded)
	require.NoError(t, err)

	ids, err := e.Search(context.Background(), "Breaking hearts in the night")
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	assert.Equal(t, "SONG2", ids[0])
	assert.LessOrEqual(t, len(ids), 10)
}
