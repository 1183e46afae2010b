// Package normalizer turns free-form lyric text into the stemmed terms the
// corpus vocabulary is expressed in.
package normalizer

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// Stemmer reduces a lower-cased word to its stem.
type Stemmer interface {
	Stem(word string) string
}

// StemmerFunc adapts a plain function to Stemmer.
type StemmerFunc func(word string) string

func (f StemmerFunc) Stem(word string) string { return f(word) }

// Porter2 is the English Snowball (Porter2) stemmer. Stop words are stemmed
// like any other word because the corpus vocabulary was built that way.
type Porter2 struct{}

func (Porter2) Stem(word string) string {
	return english.Stem(word, true)
}

// Applied in order as plain substring replacements; " ain't " must run
// before "n't ".
var contractionRules = [][2]string{
	{"'m ", " am "},
	{"'re ", " are "},
	{"'ve ", " have "},
	{"'d ", " would "},
	{"'ll ", " will "},
	{" he's ", " he is "},
	{" she's ", " she is "},
	{" it's ", " it is "},
	{" ain't ", " is not "},
	{"n't ", " not "},
	{"'s ", " "},
}

var stripPunctuation = strings.NewReplacer(
	",", "", "'", "", `"`, "", ";", "", ":", "", ".", "", "?", "", "!", "",
	"(", "", ")", "", "{", "", "}", "", "/", "", `\`, "", "_", "", "|", "",
	"-", "", "@", "", "#", "", "*", "",
)

type Normalizer struct {
	stemmer Stemmer
}

// New returns a Normalizer using stemmer, or Porter2 when stemmer is nil.
func New(stemmer Stemmer) *Normalizer {
	if stemmer == nil {
		stemmer = Porter2{}
	}
	return &Normalizer{stemmer: stemmer}
}

// Normalize returns the stemmed terms of text in input order, duplicates
// kept.
func (n *Normalizer) Normalize(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ToLower(text)

	// pad so contractions at either end of the text still match
	text = " " + text + " "
	for _, rule := range contractionRules {
		text = strings.ReplaceAll(text, rule[0], rule[1])
	}
	text = stripPunctuation.Replace(text)

	words := strings.Split(text, " ")
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if stem := n.stemmer.Stem(w); stem != "" {
			terms = append(terms, stem)
		}
	}
	return terms
}
