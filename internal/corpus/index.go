// Package corpus builds the immutable forward and inverted term-count
// indexes over the lyrics corpus.
package corpus

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
)

// Document is one corpus entry: an opaque ID and its raw term counts.
type Document struct {
	ID    string
	Terms map[int]int
}

// Index is the forward (document -> term -> count) and inverted
// (term -> document -> count) view of one corpus. It is never modified after
// construction and is safe for concurrent readers.
type Index struct {
	vocab    *vocabulary.Vocabulary
	forward  map[string]map[int]int
	inverted []map[string]int
	order    []string
}

// NewIndex assembles an Index from already-parsed documents. Later documents
// replace earlier ones with the same ID.
func NewIndex(vocab *vocabulary.Vocabulary, docs []Document) (*Index, error) {
	idx := &Index{
		vocab:    vocab,
		forward:  make(map[string]map[int]int, len(docs)),
		inverted: make([]map[string]int, vocab.Size()+1),
		order:    make([]string, 0, len(docs)),
	}
	for _, doc := range docs {
		if err := idx.add(doc); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) add(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: empty document id", apperrors.ErrMalformedCorpus)
	}
	for t, c := range doc.Terms {
		if !idx.vocab.Contains(t) {
			return fmt.Errorf("%w: document %s: term id %d outside [1, %d]",
				apperrors.ErrMalformedCorpus, doc.ID, t, idx.vocab.Size())
		}
		if c < 1 {
			return fmt.Errorf("%w: document %s: term %d has count %d",
				apperrors.ErrMalformedCorpus, doc.ID, t, c)
		}
	}

	if old, exists := idx.forward[doc.ID]; exists {
		for t := range old {
			delete(idx.inverted[t], doc.ID)
		}
	} else {
		idx.order = append(idx.order, doc.ID)
	}

	terms := doc.Terms
	if terms == nil {
		terms = make(map[int]int)
	}
	idx.forward[doc.ID] = terms
	for t, c := range terms {
		if idx.inverted[t] == nil {
			idx.inverted[t] = make(map[string]int)
		}
		idx.inverted[t][doc.ID] = c
	}
	return nil
}

func (idx *Index) Vocabulary() *vocabulary.Vocabulary {
	return idx.vocab
}

// Len returns the number of distinct documents.
func (idx *Index) Len() int {
	return len(idx.forward)
}

// DocumentIDs returns document IDs in first-seen corpus order.
func (idx *Index) DocumentIDs() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Document returns the term counts of a document. The map is shared with the
// index and must not be modified.
func (idx *Index) Document(docID string) (map[int]int, bool) {
	terms, ok := idx.forward[docID]
	return terms, ok
}

// Postings returns document -> count for a term ID, or nil for unknown or
// unused IDs. The map is shared with the index and must not be modified.
func (idx *Index) Postings(termID int) map[string]int {
	if termID <= 0 || termID >= len(idx.inverted) {
		return nil
	}
	return idx.inverted[termID]
}

// DocumentFrequencies returns df indexed by term ID (length V+1, df[0] = 0).
func (idx *Index) DocumentFrequencies() []int {
	df := make([]int, len(idx.inverted))
	for t, postings := range idx.inverted {
		df[t] = len(postings)
	}
	return df
}

// TermIDs returns the sorted term IDs present in a document.
func (idx *Index) TermIDs(docID string) []int {
	terms := idx.forward[docID]
	ids := make([]int, 0, len(terms))
	for t := range terms {
		ids = append(ids, t)
	}
	sort.Ints(ids)
	return ids
}
