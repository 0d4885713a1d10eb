// Package features builds the TF-IDF feature space. A Vectorizer is fitted
// once on the training partition and is read-only afterwards, so a single
// instance can serve concurrent Transform calls.
package features

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/textproc"
)

// Config bounds the vocabulary. MinDF is an absolute document count and
// MaxDF a proportion of the corpus; MaxFeatures <= 0 means unbounded.
type Config struct {
	Analyzer    textproc.Analyzer `json:"analyzer"`
	MaxFeatures int               `json:"max_features"`
	MinDF       int               `json:"min_df"`
	MaxDF       float64           `json:"max_df"`
}

// DefaultConfig mirrors the settings the production model is trained with.
func DefaultConfig() Config {
	return Config{
		Analyzer:    textproc.DefaultAnalyzer(),
		MaxFeatures: 5000,
		MinDF:       2,
		MaxDF:       0.95,
	}
}

type Vectorizer struct {
	cfg   Config
	terms []string
	index map[string]int
	idf   []float64
}

func New(cfg Config) *Vectorizer {
	if cfg.MinDF < 1 {
		cfg.MinDF = 1
	}
	if cfg.MaxDF <= 0 || cfg.MaxDF > 1 {
		cfg.MaxDF = 1
	}
	return &Vectorizer{cfg: cfg}
}

type termStat struct {
	term  string
	df    int
	count int
}

// Fit learns the vocabulary and IDF weights from docs.
func (v *Vectorizer) Fit(docs []string) error {
	n := len(docs)
	if n == 0 {
		return apperrors.Data("cannot fit feature space on zero documents")
	}
	maxDocCount := v.cfg.MaxDF * float64(n)
	if maxDocCount < float64(v.cfg.MinDF) {
		return apperrors.Data("max_df corresponds to %.1f documents, fewer than min_df %d", maxDocCount, v.cfg.MinDF)
	}

	stats := make(map[string]*termStat)
	seen := make(map[string]struct{})
	for _, doc := range docs {
		clear(seen)
		for _, term := range v.cfg.Analyzer.Analyze(doc) {
			st, ok := stats[term]
			if !ok {
				st = &termStat{term: term}
				stats[term] = st
			}
			st.count++
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				st.df++
			}
		}
	}
	if len(stats) == 0 {
		return apperrors.Data("empty vocabulary: documents contain no usable terms")
	}

	kept := make([]*termStat, 0, len(stats))
	for _, st := range stats {
		if st.df < v.cfg.MinDF || float64(st.df) > maxDocCount {
			continue
		}
		kept = append(kept, st)
	}
	if len(kept) == 0 {
		return apperrors.Data("no terms remain after pruning (min_df=%d, max_df=%.2f, %d documents)", v.cfg.MinDF, v.cfg.MaxDF, n)
	}
	if v.cfg.MaxFeatures > 0 && len(kept) > v.cfg.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].count != kept[j].count {
				return kept[i].count > kept[j].count
			}
			return kept[i].term < kept[j].term
		})
		kept = kept[:v.cfg.MaxFeatures]
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].term < kept[j].term })

	terms := make([]string, len(kept))
	idf := make([]float64, len(kept))
	for i, st := range kept {
		terms[i] = st.term
		idf[i] = computeIDF(n, st.df)
	}
	v.setVocabulary(terms, idf)
	return nil
}

// computeIDF is the smoothed inverse document frequency: as if one extra
// document contained every term once.
func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log(float64(1+totalDocs)/float64(1+docFreq)) + 1
}

func (v *Vectorizer) setVocabulary(terms []string, idf []float64) {
	v.terms = terms
	v.idf = idf
	v.index = make(map[string]int, len(terms))
	for i, t := range terms {
		v.index[t] = i
	}
}

// FitTransform fits on docs and returns their vectors.
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.TransformAll(docs), nil
}

// Transform maps doc to its L2-normalized TF-IDF vector. Terms outside the
// vocabulary are ignored, so text with no known terms yields the zero
// vector.
func (v *Vectorizer) Transform(doc string) Vector {
	counts := make(map[int]int)
	for _, term := range v.cfg.Analyzer.Analyze(doc) {
		if idx, ok := v.index[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}
	vec := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)
	var sumSq float64
	for _, idx := range vec.Indices {
		w := float64(counts[idx]) * v.idf[idx]
		vec.Values = append(vec.Values, w)
		sumSq += w * w
	}
	if norm := math.Sqrt(sumSq); norm > 0 {
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}

func (v *Vectorizer) TransformAll(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for i, d := range docs {
		out[i] = v.Transform(d)
	}
	return out
}

// NumFeatures is the vocabulary size, zero before Fit.
func (v *Vectorizer) NumFeatures() int { return len(v.terms) }

// Term returns the n-gram for column i.
func (v *Vectorizer) Term(i int) string { return v.terms[i] }

// Terms returns a copy of the vocabulary in column order.
func (v *Vectorizer) Terms() []string {
	return append([]string(nil), v.terms...)
}

// IDF returns the weight of column i.
func (v *Vectorizer) IDF(i int) float64 { return v.idf[i] }

func (v *Vectorizer) Config() Config { return v.cfg }

// State is the serializable form of a fitted Vectorizer.
type State struct {
	Config Config    `json:"config"`
	Terms  []string  `json:"terms"`
	IDF    []float64 `json:"idf"`
}

func (v *Vectorizer) State() State {
	return State{Config: v.cfg, Terms: v.Terms(), IDF: append([]float64(nil), v.idf...)}
}

// FromState rebuilds a Vectorizer, checking that the vocabulary is
// consistent.
func FromState(s State) (*Vectorizer, error) {
	if len(s.Terms) == 0 {
		return nil, fmt.Errorf("feature space has no terms")
	}
	if len(s.Terms) != len(s.IDF) {
		return nil, fmt.Errorf("feature space has %d terms but %d idf weights", len(s.Terms), len(s.IDF))
	}
	for i := 1; i < len(s.Terms); i++ {
		if s.Terms[i-1] >= s.Terms[i] {
			return nil, fmt.Errorf("feature space terms not strictly sorted at %d", i)
		}
	}
	for i, w := range s.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 1 {
			return nil, fmt.Errorf("invalid idf weight %v for term %q", w, s.Terms[i])
		}
	}
	v := New(s.Config)
	v.setVocabulary(append([]string(nil), s.Terms...), append([]float64(nil), s.IDF...))
	return v, nil
}
