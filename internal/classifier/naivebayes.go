package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

// NaiveBayesTrainer fits a multinomial naive Bayes model with additive
// (Lidstone) smoothing. Feature values are TF-IDF weights treated as
// fractional counts.
type NaiveBayesTrainer struct {
	Alpha float64
}

func DefaultNaiveBayesTrainer() NaiveBayesTrainer {
	return NaiveBayesTrainer{Alpha: 1.0}
}

func (NaiveBayesTrainer) Kind() Kind { return KindNaiveBayes }

func (t NaiveBayesTrainer) Fit(ctx context.Context, X []features.Vector, y []string, numFeatures int) (Model, error) {
	if err := checkTrainingSet(X, y, numFeatures); err != nil {
		return nil, err
	}
	if t.Alpha <= 0 {
		return nil, fmt.Errorf("naive bayes alpha must be positive, got %v", t.Alpha)
	}
	classes, yIdx := uniqueClasses(y)
	k := len(classes)
	if k < 2 {
		return nil, fmt.Errorf("naive bayes needs at least 2 classes, got %d", k)
	}

	featureCount := make([][]float64, k)
	for c := range featureCount {
		featureCount[c] = make([]float64, numFeatures)
	}
	classCount := make([]int, k)
	for i, x := range X {
		c := yIdx[i]
		classCount[c]++
		x.AddScaledTo(featureCount[c], 1)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &NaiveBayes{
		ClassList:      classes,
		ClassLogPrior:  make([]float64, k),
		FeatureLogProb: make([][]float64, k),
		Alpha:          t.Alpha,
	}
	n := float64(len(X))
	for c := 0; c < k; c++ {
		m.ClassLogPrior[c] = math.Log(float64(classCount[c]) / n)
		var total float64
		for _, v := range featureCount[c] {
			total += v + t.Alpha
		}
		logTotal := math.Log(total)
		row := make([]float64, numFeatures)
		for j, v := range featureCount[c] {
			row[j] = math.Log(v+t.Alpha) - logTotal
		}
		m.FeatureLogProb[c] = row
	}
	return m, nil
}

// NaiveBayes is a fitted multinomial naive Bayes model.
type NaiveBayes struct {
	ClassList      []string    `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
	Alpha          float64     `json:"alpha"`
}

func (m *NaiveBayes) Kind() Kind        { return KindNaiveBayes }
func (m *NaiveBayes) Classes() []string { return append([]string(nil), m.ClassList...) }
func (m *NaiveBayes) NumFeatures() int  { return len(m.FeatureLogProb[0]) }

// jointLogLikelihood is log P(c) + sum_j x_j log P(j|c).
func (m *NaiveBayes) jointLogLikelihood(x features.Vector) []float64 {
	jll := make([]float64, len(m.ClassList))
	for c := range m.ClassList {
		jll[c] = x.Dot(m.FeatureLogProb[c]) + m.ClassLogPrior[c]
	}
	return jll
}

func (m *NaiveBayes) Predict(x features.Vector) string {
	return m.ClassList[argmax(m.jointLogLikelihood(x))]
}

func (m *NaiveBayes) PredictProba(x features.Vector) Distribution {
	return softmax(m.ClassList, m.jointLogLikelihood(x))
}

// ClassWeights reports how much more likely each feature is under class
// than on average across classes.
func (m *NaiveBayes) ClassWeights(class string) []float64 {
	ci := -1
	for i, c := range m.ClassList {
		if c == class {
			ci = i
		}
	}
	if ci < 0 {
		return nil
	}
	k := float64(len(m.ClassList))
	out := make([]float64, m.NumFeatures())
	for j := range out {
		var mean float64
		for c := range m.ClassList {
			mean += m.FeatureLogProb[c][j]
		}
		out[j] = m.FeatureLogProb[ci][j] - mean/k
	}
	return out
}

func decodeNaiveBayes(raw json.RawMessage) (Model, error) {
	var m NaiveBayes
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if _, err := validateParams(KindNaiveBayes, m.ClassList, m.FeatureLogProb, m.ClassLogPrior); err != nil {
		return nil, err
	}
	for c, p := range m.ClassLogPrior {
		if math.IsNaN(p) || p > 0 {
			return nil, fmt.Errorf("class log prior %d is invalid: %v", c, p)
		}
	}
	return &m, nil
}

func init() {
	Register(KindNaiveBayes, decodeNaiveBayes)
}
