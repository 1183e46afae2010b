// Package vocabulary holds the bounded term vocabulary read from the corpus
// header and the per-term IDF weight table that goes with it.
package vocabulary

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
)

// Vocabulary maps stemmed terms to dense IDs in [1, Size()]. ID 0 is the
// header's placeholder column and never maps to a term.
type Vocabulary struct {
	terms []string
	ids   map[string]int
}

// ParseHeader builds a Vocabulary from the corpus header line. Column 0 is
// reserved and ignored.
func ParseHeader(line string) (*Vocabulary, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: header has no terms", apperrors.ErrMalformedCorpus)
	}
	v := &Vocabulary{
		terms: make([]string, len(fields)),
		ids:   make(map[string]int, len(fields)-1),
	}
	for i := 1; i < len(fields); i++ {
		term := strings.TrimSpace(fields[i])
		if term == "" {
			return nil, fmt.Errorf("%w: header column %d is empty", apperrors.ErrMalformedCorpus, i)
		}
		if prev, dup := v.ids[term]; dup {
			return nil, fmt.Errorf("%w: header term %q repeated in columns %d and %d",
				apperrors.ErrMalformedCorpus, term, prev, i)
		}
		v.terms[i] = term
		v.ids[term] = i
	}
	return v, nil
}

// New builds a Vocabulary from terms in ID order; terms[0] becomes ID 1.
func New(terms []string) (*Vocabulary, error) {
	return ParseHeader("," + strings.Join(terms, ","))
}

// ID returns the term ID for term and whether it is in the vocabulary.
func (v *Vocabulary) ID(term string) (int, bool) {
	id, ok := v.ids[term]
	return id, ok
}

// Term returns the term for id, or "" when id is out of range or reserved.
func (v *Vocabulary) Term(id int) string {
	if id <= 0 || id >= len(v.terms) {
		return ""
	}
	return v.terms[id]
}

// Size is V, the number of usable term IDs.
func (v *Vocabulary) Size() int {
	return len(v.terms) - 1
}

// Contains reports whether id is a usable term ID.
func (v *Vocabulary) Contains(id int) bool {
	return id >= 1 && id < len(v.terms)
}
