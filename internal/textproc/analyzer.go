// Package textproc turns raw review text into the terms the feature space
// is built from. It normalizes Unicode, lower-cases, splits on
// non-alphanumeric boundaries, drops one-rune tokens and optional Spanish
// stop words, and emits word n-grams.
package textproc

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"de": {}, "la": {}, "que": {}, "el": {}, "en": {}, "los": {}, "del": {},
	"se": {}, "las": {}, "por": {}, "un": {}, "para": {}, "con": {}, "una": {},
	"su": {}, "al": {}, "lo": {}, "como": {}, "más": {}, "pero": {}, "sus": {},
	"le": {}, "ya": {}, "es": {}, "fue": {}, "este": {}, "esta": {}, "son": {},
	"me": {}, "mi": {}, "nos": {}, "les": {}, "esto": {}, "ese": {}, "eso": {},
	"muy": {}, "hay": {}, "ha": {}, "he": {}, "han": {}, "era": {}, "sin": {},
}

// Chains are stateful, so each call borrows one from a pool.
var (
	foldPool = sync.Pool{
		New: func() any {
			return transform.Chain(norm.NFKC, cases.Fold())
		},
	}
	accentPool = sync.Pool{
		New: func() any {
			return transform.Chain(
				norm.NFD,
				runes.Remove(runes.In(unicode.Mn)),
				norm.NFC,
				cases.Fold(),
			)
		},
	}
)

// Analyzer is immutable after construction and safe for concurrent use.
type Analyzer struct {
	NGramMin     int  `json:"ngram_min"`
	NGramMax     int  `json:"ngram_max"`
	StripAccents bool `json:"strip_accents"`
	StopWords    bool `json:"stop_words"`
}

// DefaultAnalyzer emits unigrams and bigrams without stop-word removal.
func DefaultAnalyzer() Analyzer {
	return Analyzer{NGramMin: 1, NGramMax: 2}
}

// Normalize repairs UTF-8 and case-folds s, removing accents when the
// analyzer is configured to.
func (a Analyzer) Normalize(s string) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	pool := &foldPool
	if a.StripAccents {
		pool = &accentPool
	}
	tr := pool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	pool.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Tokens returns the normalized words of text in order.
func (a Analyzer) Tokens(text string) []string {
	words := strings.FieldsFunc(a.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if a.StopWords {
			if _, stop := stopWords[w]; stop {
				continue
			}
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Analyze returns the n-gram terms of text: all n-grams of the smallest
// order first, in text order, then the next order.
func (a Analyzer) Analyze(text string) []string {
	tokens := a.Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	lo, hi := a.NGramMin, a.NGramMax
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	terms := make([]string, 0, len(tokens)*(hi-lo+1))
	for n := lo; n <= hi; n++ {
		if n == 1 {
			terms = append(terms, tokens...)
			continue
		}
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
