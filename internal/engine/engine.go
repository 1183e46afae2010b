// Package engine answers lyric queries against a corpus index: it selects
// query terms, filters candidate documents through the inverted index,
// scores them by TF-IDF cosine similarity and returns the top matches.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/scorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/tracing"
)

const (
	DefaultTopK              = 10
	DefaultStopWordThreshold = 0.2
	DefaultParallelThreshold = 2048
)

// Hit is one ranked document.
type Hit struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Result is the outcome of one query.
type Result struct {
	Query      string   `json:"query"`
	Terms      []string `json:"terms"`
	Candidates int      `json:"candidates"`
	Hits       []Hit    `json:"hits"`
}

// IDs returns the ranked document IDs.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.DocID
	}
	return ids
}

// Query is normalized query text reduced to vocabulary terms that clear the
// stop-word threshold.
type Query struct {
	Text   string
	Terms  []string
	Counts map[int]int
}

func (q Query) Empty() bool {
	return len(q.Counts) == 0
}

// Key is a canonical form of the query vector: two texts that normalize to
// the same terms share a key.
func (q Query) Key() string {
	ids := make([]int, 0, len(q.Counts))
	for t := range q.Counts {
		ids = append(ids, t)
	}
	sort.Ints(ids)
	var b strings.Builder
	for i, t := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(t))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(q.Counts[t]))
	}
	return b.String()
}

type Option func(*Engine)

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithStopWordThreshold drops query terms whose weight is below w.
func WithStopWordThreshold(w float64) Option {
	return func(e *Engine) {
		if w >= 0 {
			e.threshold = w
		}
	}
}

func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(e *Engine) {
		if n != nil {
			e.normalizer = n
		}
	}
}

// WithParallelScoring scores candidate sets of at least threshold documents
// on the given number of goroutines.
func WithParallelScoring(threshold, workers int) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.parallelThreshold = threshold
		}
		if workers > 0 {
			e.workers = workers
		}
	}
}

// WithDocumentFilter restricts candidates to documents accepted by keep.
func WithDocumentFilter(keep func(docID string) bool) Option {
	return func(e *Engine) {
		e.keep = keep
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine is safe for concurrent use; it holds only read-only state.
type Engine struct {
	index             *corpus.Index
	weights           []float64
	normalizer        *normalizer.Normalizer
	topK              int
	threshold         float64
	parallelThreshold int
	workers           int
	keep              func(docID string) bool
	logger            *slog.Logger
}

// New creates an Engine over idx. weights must hold one entry per term ID,
// including the reserved ID 0.
func New(idx *corpus.Index, weights []float64, opts ...Option) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: nil corpus index", apperrors.ErrInvalidInput)
	}
	if want := idx.Vocabulary().Size() + 1; len(weights) != want {
		return nil, fmt.Errorf("%w: %d weights for a vocabulary needing %d",
			apperrors.ErrMalformedWeights, len(weights), want)
	}
	e := &Engine{
		index:             idx,
		weights:           weights,
		normalizer:        normalizer.New(nil),
		topK:              DefaultTopK,
		threshold:         DefaultStopWordThreshold,
		parallelThreshold: DefaultParallelThreshold,
		workers:           1,
		logger:            slog.Default().With("component", "retrieval-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Analyze normalizes text and keeps the terms that are in the vocabulary and
// weigh at least the stop-word threshold.
func (e *Engine) Analyze(text string) Query {
	q := Query{Text: text, Terms: []string{}, Counts: make(map[int]int)}
	vocab := e.index.Vocabulary()
	for _, term := range e.normalizer.Normalize(text) {
		id, ok := vocab.ID(term)
		if !ok || e.weights[id] < e.threshold {
			continue
		}
		q.Terms = append(q.Terms, term)
		q.Counts[id]++
	}
	return q
}

// Search returns the IDs of at most TopK documents most similar to text,
// best first.
func (e *Engine) Search(ctx context.Context, text string) ([]string, error) {
	res, err := e.SearchScored(ctx, text)
	if err != nil {
		return nil, err
	}
	return res.IDs(), nil
}

// SearchScored is Search with scores and query diagnostics. The only error
// it returns is the context's.
func (e *Engine) SearchScored(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	_, span := tracing.StartChildSpan(ctx, "normalize")
	q := e.Analyze(text)
	span.SetAttr("terms", len(q.Terms))
	span.End()

	res := &Result{Query: text, Terms: q.Terms, Hits: []Hit{}}
	if q.Empty() {
		return res, nil
	}

	_, span = tracing.StartChildSpan(ctx, "filter")
	candidates := e.candidates(q)
	span.SetAttr("candidates", len(candidates))
	span.End()
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		return res, nil
	}

	_, span = tracing.StartChildSpan(ctx, "score")
	hits, err := e.score(ctx, q, candidates)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracing.StartChildSpan(ctx, "rank")
	res.Hits = rank(hits, e.topK)
	span.End()

	e.logger.Debug("query executed",
		"terms", q.Terms,
		"candidates", len(candidates),
		"results", len(res.Hits),
		"duration_us", time.Since(start).Microseconds(),
	)
	return res, nil
}

// candidates returns, in ID order, the documents sharing at least half of
// the query's distinct terms.
func (e *Engine) candidates(q Query) []string {
	matches := make(map[string]int)
	for t := range q.Counts {
		for docID := range e.index.Postings(t) {
			matches[docID]++
		}
	}
	half := float64(len(q.Counts)) / 2.0
	out := make([]string, 0, len(matches))
	for docID, m := range matches {
		if float64(m) < half {
			continue
		}
		if e.keep != nil && !e.keep(docID) {
			continue
		}
		out = append(out, docID)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) score(ctx context.Context, q Query, candidates []string) ([]Hit, error) {
	qv := scorer.Weigh(q.Counts, e.weights)
	hits := make([]Hit, len(candidates))

	scoreRange := func(ctx context.Context, from, to int) error {
		for i := from; i < to; i++ {
			if (i-from)%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			terms, _ := e.index.Document(candidates[i])
			hits[i] = Hit{
				DocID: candidates[i],
				Score: scorer.Cosine(qv, scorer.Weigh(terms, e.weights)),
			}
		}
		return nil
	}

	if e.workers <= 1 || len(candidates) < e.parallelThreshold {
		if err := scoreRange(ctx, 0, len(candidates)); err != nil {
			return nil, err
		}
		return hits, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(candidates) + e.workers - 1) / e.workers
	for from := 0; from < len(candidates); from += chunk {
		to := min(from+chunk, len(candidates))
		g.Go(func() error {
			return scoreRange(gctx, from, to)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits, nil
}

// rank drops non-matching hits, orders by score descending with document ID
// as tie-break, and keeps the first k.
func rank(hits []Hit, k int) []Hit {
	kept := hits[:0]
	for _, h := range hits {
		if h.Score > 0 {
			kept = append(kept, h)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].DocID < kept[j].DocID
	})
	if len(kept) > k {
		kept = kept[:k]
	}
	out := make([]Hit, len(kept))
	copy(out, kept)
	return out
}
