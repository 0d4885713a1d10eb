// Package classifier holds the sentiment models trained on TF-IDF vectors:
// multinomial logistic regression and multinomial naive Bayes. Fitted
// models are immutable and safe for concurrent prediction.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

// Kind names a model family. The declaration order of Preference is the
// tie-break order when two candidates score the same accuracy.
type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindNaiveBayes         Kind = "naive_bayes"
)

// Preference lists kinds from most to least preferred.
var Preference = []Kind{KindLogisticRegression, KindNaiveBayes}

// Rank is the position of k in Preference, or len(Preference) if unknown.
func (k Kind) Rank() int {
	for i, p := range Preference {
		if p == k {
			return i
		}
	}
	return len(Preference)
}

// ParseKind accepts the names used in configuration files.
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindLogisticRegression), "logistic", "lr":
		return KindLogisticRegression, nil
	case string(KindNaiveBayes), "nb", "multinomial_nb":
		return KindNaiveBayes, nil
	}
	return "", fmt.Errorf("unknown model kind %q", s)
}

// Model maps a feature vector to a class and to a full distribution over
// its classes.
type Model interface {
	Kind() Kind
	Classes() []string
	NumFeatures() int
	Predict(x features.Vector) string
	PredictProba(x features.Vector) Distribution
	// ClassWeights returns one weight per feature describing how strongly
	// it pulls towards class; nil for an unknown class.
	ClassWeights(class string) []float64
}

// Trainer fits one model family.
type Trainer interface {
	Kind() Kind
	Fit(ctx context.Context, X []features.Vector, y []string, numFeatures int) (Model, error)
}

// ClassProbability pairs a class with its probability mass.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Distribution is an ordered class distribution. Lookups go through the
// class name, never the position.
type Distribution []ClassProbability

// Probability returns the mass assigned to class, and false if the class
// is absent.
func (d Distribution) Probability(class string) (float64, bool) {
	for _, cp := range d {
		if cp.Class == class {
			return cp.Probability, true
		}
	}
	return 0, false
}

// Best returns the most probable class; ties go to the earliest entry.
func (d Distribution) Best() ClassProbability {
	var best ClassProbability
	for i, cp := range d {
		if i == 0 || cp.Probability > best.Probability {
			best = cp
		}
	}
	return best
}

// Sum is the total mass, 1 for a well-formed distribution.
func (d Distribution) Sum() float64 {
	var s float64
	for _, cp := range d {
		s += cp.Probability
	}
	return s
}

// AsMap is used for JSON responses keyed by class.
func (d Distribution) AsMap() map[string]float64 {
	m := make(map[string]float64, len(d))
	for _, cp := range d {
		m[cp.Class] = cp.Probability
	}
	return m
}

// softmax turns joint log-likelihoods into a distribution over classes.
func softmax(classes []string, scores []float64) Distribution {
	lse := floats.LogSumExp(scores)
	d := make(Distribution, len(classes))
	for i, c := range classes {
		d[i] = ClassProbability{Class: c, Probability: math.Exp(scores[i] - lse)}
	}
	return d
}

// argmax returns the first index holding the maximum score.
func argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// uniqueClasses returns the sorted distinct labels and the index of each
// sample's label.
func uniqueClasses(y []string) ([]string, []int) {
	set := make(map[string]struct{})
	for _, label := range y {
		set[label] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for c := range set {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	pos := make(map[string]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	idx := make([]int, len(y))
	for i, label := range y {
		idx[i] = pos[label]
	}
	return classes, idx
}

func checkTrainingSet(X []features.Vector, y []string, numFeatures int) error {
	if len(X) == 0 {
		return fmt.Errorf("no training samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d samples but %d labels", len(X), len(y))
	}
	if numFeatures <= 0 {
		return fmt.Errorf("feature space is empty")
	}
	for i, x := range X {
		if x.MaxIndex() >= numFeatures {
			return fmt.Errorf("sample %d references feature %d beyond %d", i, x.MaxIndex(), numFeatures)
		}
	}
	return nil
}

// Decoder rebuilds a model from its serialized parameters.
type Decoder func(params json.RawMessage) (Model, error)

var (
	registryMu sync.RWMutex
	decoders   = map[Kind]Decoder{}
)

// Register makes a model kind decodable. It panics on duplicates, which
// only happens through a programming error at init time.
func Register(kind Kind, dec Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := decoders[kind]; dup {
		panic("classifier: duplicate decoder for " + string(kind))
	}
	decoders[kind] = dec
}

// Encoded is the serialized form of a model.
type Encoded struct {
	Kind   Kind            `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// Encode serializes m; every Model in this package marshals its
// parameters as JSON.
func Encode(m Model) (Encoded, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return Encoded{}, fmt.Errorf("encoding %s parameters: %w", m.Kind(), err)
	}
	return Encoded{Kind: m.Kind(), Params: raw}, nil
}

// Decode looks up the decoder for e.Kind.
func Decode(e Encoded) (Model, error) {
	registryMu.RLock()
	dec, ok := decoders[e.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder registered for model kind %q", e.Kind)
	}
	m, err := dec(e.Params)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", e.Kind, err)
	}
	return m, nil
}

func validateParams(kind Kind, classes []string, rows [][]float64, bias []float64) (int, error) {
	if len(classes) < 2 {
		return 0, fmt.Errorf("%s needs at least 2 classes, has %d", kind, len(classes))
	}
	if len(rows) != len(classes) || len(bias) != len(classes) {
		return 0, fmt.Errorf("%s has %d classes, %d weight rows, %d biases", kind, len(classes), len(rows), len(bias))
	}
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if _, dup := seen[c]; dup {
			return 0, fmt.Errorf("%s lists class %q twice", kind, c)
		}
		seen[c] = struct{}{}
	}
	n := len(rows[0])
	if n == 0 {
		return 0, fmt.Errorf("%s has no features", kind)
	}
	for i, r := range rows {
		if len(r) != n {
			return 0, fmt.Errorf("%s row %d has %d weights, want %d", kind, i, len(r), n)
		}
		for _, w := range r {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return 0, fmt.Errorf("%s row %d holds a non-finite weight", kind, i)
			}
		}
	}
	return n, nil
}
