// Package inference serves a trained artifact. A Service is built once at
// process start, loads its artifact exactly once and then answers
// predictions concurrently without locks: the loaded model is published
// through an atomic pointer and never mutated afterwards.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
)

// State is a step of the load lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// ErrAlreadyLoaded is returned by a second Load call.
var ErrAlreadyLoaded = errors.New("model load already attempted")

// Options tunes validation and output formatting.
type Options struct {
	// ExpectedClasses, when non-empty, must equal the artifact's class set.
	ExpectedClasses []dataset.Sentiment
	// ConfidenceDecimals is the rounding precision of reported
	// probabilities.
	ConfidenceDecimals int
	Metrics            *metrics.Metrics
}

func DefaultOptions() Options {
	return Options{ConfidenceDecimals: 4}
}

type snapshot struct {
	state  State
	since  time.Time
	reason string
	art    *artifact.Artifact
}

type Service struct {
	opts    Options
	started atomic.Bool
	snap    atomic.Pointer[snapshot]
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(opts Options) *Service {
	s := &Service{
		opts:   opts,
		now:    time.Now,
		logger: slog.Default().With("component", "inference"),
	}
	s.snap.Store(&snapshot{state: StateUninitialized, since: s.now().UTC()})
	return s
}

// Load reads the artifact at path. It runs at most once per Service: later
// calls return ErrAlreadyLoaded and leave the state alone. Any failure puts
// the service in StateDegraded, where it stays.
func (s *Service) Load(path string) error {
	return s.load(func() (*artifact.Artifact, error) { return artifact.Read(path) })
}

// LoadArtifact installs an already decoded artifact, under the same
// once-only rules as Load.
func (s *Service) LoadArtifact(a *artifact.Artifact) error {
	return s.load(func() (*artifact.Artifact, error) { return a, nil })
}

func (s *Service) load(get func() (*artifact.Artifact, error)) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyLoaded
	}
	s.transition(&snapshot{state: StateLoading})
	start := time.Now()

	a, err := get()
	if err == nil {
		err = s.validate(a)
	}
	if err != nil {
		s.transition(&snapshot{state: StateDegraded, reason: err.Error()})
		s.logger.Error("model load failed, serving degraded", "error", err)
		return err
	}
	s.transition(&snapshot{state: StateReady, art: a})
	m := a.Metadata
	s.logger.Info("model loaded",
		"kind", m.ModelKind,
		"accuracy", m.Accuracy,
		"classes", m.Classes,
		"n_features", m.NFeatures,
		"trained_at", m.TrainedAt,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ModelInfo.WithLabelValues(string(m.ModelKind), strconv.Itoa(m.NFeatures)).Set(m.Accuracy)
	}
	return nil
}

// validate checks the artifact's classes against the sentiment enum and,
// when configured, the exact expected set.
func (s *Service) validate(a *artifact.Artifact) error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", apperrors.ErrArtifactCorrupt)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrArtifactCorrupt, err)
	}
	classes := a.Model.Classes()
	if len(classes) < 2 {
		return fmt.Errorf("%w: model has %d classes, need at least 2", apperrors.ErrArtifactCorrupt, len(classes))
	}
	got := make([]string, 0, len(classes))
	for _, c := range classes {
		sent, err := dataset.ParseSentiment(c)
		if err != nil || string(sent) != c {
			return fmt.Errorf("%w: model class %q is not one of %v", apperrors.ErrArtifactCorrupt, c, dataset.All)
		}
		got = append(got, c)
	}
	if len(s.opts.ExpectedClasses) > 0 {
		want := make([]string, len(s.opts.ExpectedClasses))
		for i, e := range s.opts.ExpectedClasses {
			want[i] = string(e)
		}
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			return fmt.Errorf("%w: model classes %v, service expects %v", apperrors.ErrArtifactCorrupt, got, want)
		}
	}
	return nil
}

func (s *Service) transition(next *snapshot) {
	next.since = s.now().UTC()
	prev := s.snap.Swap(next)
	s.logger.Debug("state change", "from", prev.state, "to", next.state)
	if s.opts.Metrics != nil {
		loaded := 0.0
		if next.state == StateReady {
			loaded = 1
		}
		s.opts.Metrics.ModelLoaded.Set(loaded)
	}
}

// Status describes the service at the time of the call.
type Status struct {
	Ready     bool      `json:"ready"`
	State     string    `json:"state"`
	Since     time.Time `json:"since"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Status never fails and has no side effects.
func (s *Service) Status() Status {
	snap := s.snap.Load()
	return Status{
		Ready:     snap.state == StateReady,
		State:     snap.state.String(),
		Since:     snap.since,
		Timestamp: s.now().UTC(),
		Reason:    snap.reason,
	}
}

// Ready reports whether predictions can be served.
func (s *Service) Ready() bool {
	return s.snap.Load().state == StateReady
}

// Metadata returns the loaded model's metadata.
func (s *Service) Metadata() (artifact.Metadata, bool) {
	snap := s.snap.Load()
	if snap.art == nil {
		return artifact.Metadata{}, false
	}
	return snap.art.Metadata, true
}

// ModelID identifies the loaded model; it changes whenever a different
// artifact is served, so it is safe to key caches by it.
func (s *Service) ModelID() string {
	m, ok := s.Metadata()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s-%d-%d", m.ModelKind, m.TrainedAt.UnixNano(), m.NFeatures)
}

// Prediction is the result of one Predict call.
type Prediction struct {
	Label         dataset.Sentiment  `json:"label"`
	Confidence    float64            `json:"confidence"`
	Timestamp     time.Time          `json:"timestamp"`
	Probabilities map[string]float64 `json:"probabilities"`
	Model         classifier.Kind    `json:"model"`
}

var errNotLoaded = apperrors.New(apperrors.ErrServiceUnavailable, http.StatusServiceUnavailable, "model not loaded")

// Predict classifies text. The empty string is valid input. It fails with
// ErrServiceUnavailable unless the service is ready, and turns any fault
// in the transform or the model into ErrInternal.
func (s *Service) Predict(ctx context.Context, text string) (pred Prediction, err error) {
	snap := s.snap.Load()
	if snap.state != StateReady {
		return Prediction{}, errNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("prediction panicked", "panic", r, "stack", string(debug.Stack()))
			pred = Prediction{}
			err = apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError, "prediction failed: %v", r)
		}
	}()
	return s.predict(snap.art, text)
}

func (s *Service) predict(a *artifact.Artifact, text string) (Prediction, error) {
	x := a.Vectorizer.Transform(text)
	label := a.Model.Predict(x)
	dist := a.Model.PredictProba(x)

	p, ok := dist.Probability(label)
	if !ok {
		return Prediction{}, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
			"predicted class %q missing from probability distribution", label)
	}
	if math.IsNaN(p) || p < -1e-9 || p > 1+1e-9 {
		return Prediction{}, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
			"probability %v for class %q outside [0,1]", p, label)
	}
	sent, err := dataset.ParseSentiment(label)
	if err != nil {
		return Prediction{}, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError, "model emitted %v", err)
	}

	probs := make(map[string]float64, len(dist))
	for _, cp := range dist {
		probs[cp.Class] = s.round(cp.Probability)
	}
	return Prediction{
		Label:         sent,
		Confidence:    s.round(p),
		Timestamp:     s.now().UTC(),
		Probabilities: probs,
		Model:         a.Model.Kind(),
	}, nil
}

func (s *Service) round(p float64) float64 {
	p = min(max(p, 0), 1)
	scale := math.Pow10(s.opts.ConfidenceDecimals)
	return math.Round(p*scale) / scale
}
