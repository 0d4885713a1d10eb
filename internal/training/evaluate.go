package training

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

// ClassMetrics is one row of a classification report.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation scores one fitted model on the held-out partition.
type Evaluation struct {
	Kind       classifier.Kind `json:"kind"`
	Accuracy   float64         `json:"accuracy"`
	MacroF1    float64         `json:"macro_f1"`
	PerClass   []ClassMetrics  `json:"per_class"`
	Classes    []string        `json:"classes"`
	Confusion  [][]int         `json:"confusion"` // rows: true class, cols: predicted
	NumSamples int             `json:"num_samples"`
}

// Evaluate predicts every sample and tabulates the results. Classes seen
// only in y or only in predictions still get a row.
func Evaluate(m classifier.Model, X []features.Vector, y []string) Evaluation {
	predicted := make([]string, len(X))
	for i, x := range X {
		predicted[i] = m.Predict(x)
	}
	return score(m.Kind(), m.Classes(), y, predicted)
}

func score(kind classifier.Kind, modelClasses, truth, predicted []string) Evaluation {
	set := make(map[string]struct{})
	for _, c := range modelClasses {
		set[c] = struct{}{}
	}
	for _, c := range truth {
		set[c] = struct{}{}
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

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}
	correct := 0
	for i := range truth {
		if truth[i] == predicted[i] {
			correct++
		}
		confusion[pos[truth[i]]][pos[predicted[i]]]++
	}

	ev := Evaluation{
		Kind:       kind,
		Classes:    classes,
		Confusion:  confusion,
		NumSamples: len(truth),
	}
	if len(truth) > 0 {
		ev.Accuracy = float64(correct) / float64(len(truth))
	}
	var f1Sum float64
	for i, c := range classes {
		tp := confusion[i][i]
		var predCount, support int
		for j := range classes {
			predCount += confusion[j][i]
			support += confusion[i][j]
		}
		cm := ClassMetrics{
			Class:     c,
			Precision: ratio(tp, predCount),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if s := cm.Precision + cm.Recall; s > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / s
		}
		f1Sum += cm.F1
		ev.PerClass = append(ev.PerClass, cm)
	}
	if len(classes) > 0 {
		ev.MacroF1 = f1Sum / float64(len(classes))
	}
	return ev
}

// ratio is a/b with 0 for an empty denominator.
func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// WeightedTerm is an n-gram with its weight toward a class.
type WeightedTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TopFeatures lists the n terms that push hardest toward each class.
func TopFeatures(m classifier.Model, vec *features.Vectorizer, n int) map[string][]WeightedTerm {
	out := make(map[string][]WeightedTerm)
	for _, class := range m.Classes() {
		weights := m.ClassWeights(class)
		if len(weights) == 0 {
			continue
		}
		idx := make([]int, len(weights))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool {
			if weights[idx[a]] != weights[idx[b]] {
				return weights[idx[a]] > weights[idx[b]]
			}
			return idx[a] < idx[b]
		})
		limit := min(n, len(idx))
		terms := make([]WeightedTerm, 0, limit)
		for _, i := range idx[:limit] {
			terms = append(terms, WeightedTerm{Term: vec.Term(i), Weight: math.Round(weights[i]*1e4) / 1e4})
		}
		out[class] = terms
	}
	return out
}
