package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

// LogisticTrainer fits an L2-regularized multinomial logistic regression
// with L-BFGS. C is the inverse regularization strength; the intercepts are
// not penalized. With Balanced set each sample is weighted by
// n/(k*count(class)).
type LogisticTrainer struct {
	C        float64
	MaxIter  int
	Tol      float64
	Balanced bool
}

func DefaultLogisticTrainer() LogisticTrainer {
	return LogisticTrainer{C: 1.0, MaxIter: 1000, Tol: 1e-4, Balanced: true}
}

func (LogisticTrainer) Kind() Kind { return KindLogisticRegression }

func (t LogisticTrainer) Fit(ctx context.Context, X []features.Vector, y []string, numFeatures int) (Model, error) {
	if err := checkTrainingSet(X, y, numFeatures); err != nil {
		return nil, err
	}
	classes, yIdx := uniqueClasses(y)
	k := len(classes)
	if k < 2 {
		return nil, fmt.Errorf("logistic regression needs at least 2 classes, got %d", k)
	}
	if t.C <= 0 {
		t.C = 1
	}
	if t.MaxIter <= 0 {
		t.MaxIter = 1000
	}
	if t.Tol <= 0 {
		t.Tol = 1e-4
	}

	sw := sampleWeights(yIdx, k, t.Balanced)
	var swSum float64
	for _, w := range sw {
		swSum += w
	}
	d := numFeatures
	obj := &softmaxObjective{X: X, y: yIdx, sw: sw, k: k, d: d, invC: 1 / t.C, scale: 1 / swSum}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			f, _ := obj.eval(ctx, w, nil)
			return f
		},
		Grad: func(grad, w []float64) {
			obj.eval(ctx, w, grad)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   t.MaxIter,
		GradientThreshold: t.Tol,
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x0 := make([]float64, k*d+k)
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if result == nil {
		return nil, fmt.Errorf("optimizing logistic loss: %w", err)
	}
	if err != nil {
		// Line search failures near the optimum still leave a usable point.
		slog.Default().With("component", "classifier").Warn("l-bfgs stopped early",
			"status", result.Status.String(), "iterations", result.Stats.MajorIterations, "error", err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, errors.New("logistic regression diverged")
	}

	m := &LogisticRegression{
		ClassList: classes,
		Coef:      make([][]float64, k),
		Intercept: make([]float64, k),
		Iter:      result.Stats.MajorIterations,
	}
	for c := 0; c < k; c++ {
		m.Coef[c] = append([]float64(nil), result.X[c*d:(c+1)*d]...)
		m.Intercept[c] = result.X[k*d+c]
	}
	return m, nil
}

func sampleWeights(y []int, k int, balanced bool) []float64 {
	sw := make([]float64, len(y))
	if !balanced {
		for i := range sw {
			sw[i] = 1
		}
		return sw
	}
	counts := make([]int, k)
	for _, c := range y {
		counts[c]++
	}
	n := float64(len(y))
	for i, c := range y {
		sw[i] = n / (float64(k) * float64(counts[c]))
	}
	return sw
}

// softmaxObjective is the weighted cross-entropy plus 1/(2C)*||W||^2, both
// divided by the total sample weight. Parameters are laid out as k rows of
// d coefficients followed by k intercepts.
type softmaxObjective struct {
	X     []features.Vector
	y     []int
	sw    []float64
	k, d  int
	invC  float64
	scale float64
}

func (o *softmaxObjective) eval(ctx context.Context, w, grad []float64) (float64, error) {
	k, d := o.k, o.d
	if grad != nil {
		clear(grad)
	}
	z := make([]float64, k)
	var loss float64
	for i, x := range o.X {
		if i%512 == 0 && ctx.Err() != nil {
			// Returning NaN makes the line search give up quickly.
			return math.NaN(), ctx.Err()
		}
		for c := 0; c < k; c++ {
			z[c] = x.Dot(w[c*d:(c+1)*d]) + w[k*d+c]
		}
		lse := floats.LogSumExp(z)
		loss += o.sw[i] * (lse - z[o.y[i]])
		if grad == nil {
			continue
		}
		for c := 0; c < k; c++ {
			g := math.Exp(z[c] - lse)
			if c == o.y[i] {
				g--
			}
			g *= o.sw[i]
			x.AddScaledTo(grad[c*d:(c+1)*d], g)
			grad[k*d+c] += g
		}
	}
	var reg float64
	for j := 0; j < k*d; j++ {
		reg += w[j] * w[j]
		if grad != nil {
			grad[j] += o.invC * w[j]
		}
	}
	loss += 0.5 * o.invC * reg
	if grad != nil {
		for j := range grad {
			grad[j] *= o.scale
		}
	}
	return loss * o.scale, nil
}

// LogisticRegression is a fitted multinomial logistic model.
type LogisticRegression struct {
	ClassList []string    `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
	Iter      int         `json:"n_iter"`
}

func (m *LogisticRegression) Kind() Kind        { return KindLogisticRegression }
func (m *LogisticRegression) Classes() []string { return append([]string(nil), m.ClassList...) }
func (m *LogisticRegression) NumFeatures() int  { return len(m.Coef[0]) }

func (m *LogisticRegression) decision(x features.Vector) []float64 {
	scores := make([]float64, len(m.ClassList))
	for c := range m.ClassList {
		scores[c] = x.Dot(m.Coef[c]) + m.Intercept[c]
	}
	return scores
}

func (m *LogisticRegression) Predict(x features.Vector) string {
	return m.ClassList[argmax(m.decision(x))]
}

func (m *LogisticRegression) PredictProba(x features.Vector) Distribution {
	return softmax(m.ClassList, m.decision(x))
}

func (m *LogisticRegression) ClassWeights(class string) []float64 {
	for i, c := range m.ClassList {
		if c == class {
			return append([]float64(nil), m.Coef[i]...)
		}
	}
	return nil
}

func decodeLogistic(raw json.RawMessage) (Model, error) {
	var m LogisticRegression
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if _, err := validateParams(KindLogisticRegression, m.ClassList, m.Coef, m.Intercept); err != nil {
		return nil, err
	}
	for c, b := range m.Intercept {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("intercept %d is not finite", c)
		}
	}
	return &m, nil
}

func init() {
	Register(KindLogisticRegression, decodeLogistic)
}
