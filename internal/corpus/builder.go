package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
)

const maxLineBytes = 4 << 20

type buildOptions struct {
	workers int
	logger  *slog.Logger
}

type Option func(*buildOptions)

// WithWorkers sets how many goroutines parse document lines.
func WithWorkers(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type rawLine struct {
	number int
	text   string
}

// Build reads a corpus file: '#' comment lines and blank lines are skipped,
// the first remaining line is the vocabulary header and every following line
// is "document_id,<ignored>,term_id:count,...". Any malformed line aborts the
// build.
func Build(ctx context.Context, r io.Reader, opts ...Option) (*Index, error) {
	o := buildOptions{
		workers: 1,
		logger:  slog.Default().With("component", "corpus-builder"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var vocab *vocabulary.Vocabulary
	lines := make([]rawLine, 0, 1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if vocab == nil {
			v, err := vocabulary.ParseHeader(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			vocab = v
			continue
		}
		lines = append(lines, rawLine{number: lineNo, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	if vocab == nil {
		return nil, fmt.Errorf("%w: missing vocabulary header", apperrors.ErrMalformedCorpus)
	}

	docs, err := parseLines(ctx, lines, vocab, o.workers)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndex(vocab, docs)
	if err != nil {
		return nil, err
	}

	o.logger.Info("corpus index built",
		"documents", idx.Len(),
		"vocabulary_size", vocab.Size(),
		"workers", o.workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}

// parseLines splits the body into one contiguous chunk per worker so the
// merged result keeps file order.
func parseLines(ctx context.Context, lines []rawLine, vocab *vocabulary.Vocabulary, workers int) ([]Document, error) {
	docs := make([]Document, len(lines))
	if len(lines) == 0 {
		return docs, nil
	}
	if workers > len(lines) {
		workers = len(lines)
	}
	chunk := (len(lines) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for startAt := 0; startAt < len(lines); startAt += chunk {
		from, to := startAt, min(startAt+chunk, len(lines))
		g.Go(func() error {
			for i := from; i < to; i++ {
				if (i-from)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				doc, err := parseLine(lines[i].text, vocab)
				if err != nil {
					return fmt.Errorf("line %d: %w", lines[i].number, err)
				}
				docs[i] = doc
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func parseLine(line string, vocab *vocabulary.Vocabulary) (Document, error) {
	fields := strings.Split(line, ",")
	id := strings.TrimSpace(fields[0])
	if id == "" {
		return Document{}, fmt.Errorf("%w: empty document id", apperrors.ErrMalformedCorpus)
	}
	doc := Document{ID: id, Terms: make(map[int]int, max(len(fields)-2, 0))}
	for i := 2; i < len(fields); i++ {
		termID, count, err := parsePair(fields[i])
		if err != nil {
			return Document{}, fmt.Errorf("document %s field %d: %w", id, i, err)
		}
		if !vocab.Contains(termID) {
			return Document{}, fmt.Errorf("%w: document %s: term id %d outside [1, %d]",
				apperrors.ErrMalformedCorpus, id, termID, vocab.Size())
		}
		doc.Terms[termID] = count
	}
	return doc, nil
}

func parsePair(field string) (int, int, error) {
	field = strings.TrimSpace(field)
	sep := strings.IndexByte(field, ':')
	if sep < 0 {
		return 0, 0, fmt.Errorf("%w: %q is not term_id:count", apperrors.ErrMalformedCorpus, field)
	}
	termID, err := strconv.Atoi(field[:sep])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad term id in %q", apperrors.ErrMalformedCorpus, field)
	}
	count, err := strconv.Atoi(field[sep+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad count in %q", apperrors.ErrMalformedCorpus, field)
	}
	if count < 1 {
		return 0, 0, fmt.Errorf("%w: count %d in %q", apperrors.ErrMalformedCorpus, count, field)
	}
	return termID, count, nil
}
