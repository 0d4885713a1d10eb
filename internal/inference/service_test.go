package inference

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

var (
	docs = []string{
		"excelente servicio muy recomendado",
		"producto excelente y rápido",
		"me encantó, recomendado",
		"pésima experiencia nunca más",
		"horrible atención pésima",
		"terrible producto, nunca",
		"el paquete llegó el martes",
		"es un producto normal",
		"llegó el martes, normal",
	}
	labels = []string{"Positivo", "Positivo", "Positivo", "Negativo", "Negativo", "Negativo", "Neutro", "Neutro", "Neutro"}
)

func trainArtifact(t testing.TB, tr classifier.Trainer, docs, labels []string) *artifact.Artifact {
	t.Helper()
	cfg := features.DefaultConfig()
	cfg.MinDF = 1
	cfg.MaxDF = 1
	vec := features.New(cfg)
	X, err := vec.FitTransform(docs)
	if err != nil {
		t.Fatal(err)
	}
	model, err := tr.Fit(context.Background(), X, labels, vec.NumFeatures())
	if err != nil {
		t.Fatal(err)
	}
	return &artifact.Artifact{
		Metadata: artifact.Metadata{
			ModelKind: model.Kind(),
			Accuracy:  0.9,
			Classes:   model.Classes(),
			NFeatures: vec.NumFeatures(),
			TrainedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Vectorizer: vec,
		Model:      model,
	}
}

func readyService(t testing.TB) *Service {
	t.Helper()
	s := NewService(DefaultOptions())
	if err := s.LoadArtifact(trainArtifact(t, classifier.DefaultLogisticTrainer(), docs, labels)); err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	return s
}

func TestInitialStatus(t *testing.T) {
	s := NewService(DefaultOptions())
	st := s.Status()
	if st.Ready || st.State != "uninitialized" {
		t.Errorf("status = %+v", st)
	}
	_, err := s.Predict(context.Background(), "hola")
	if !errors.Is(err, apperrors.ErrServiceUnavailable) {
		t.Errorf("Predict before load: %v", err)
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.snta")
	if err := artifact.Write(path, trainArtifact(t, classifier.DefaultNaiveBayesTrainer(), docs, labels)); err != nil {
		t.Fatal(err)
	}
	s := NewService(DefaultOptions())
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st := s.Status(); !st.Ready || st.State != "ready" || st.Reason != "" {
		t.Errorf("status = %+v", st)
	}
	m, ok := s.Metadata()
	if !ok || m.ModelKind != classifier.KindNaiveBayes {
		t.Errorf("metadata = %+v, %v", m, ok)
	}
	if s.ModelID() == "" {
		t.Error("empty model id")
	}
}

func TestMissingArtifactDegrades(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	opts := DefaultOptions()
	opts.Metrics = m
	s := NewService(opts)

	err := s.Load(filepath.Join(t.TempDir(), "absent.snta"))
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	st := s.Status()
	if st.Ready || st.State != "degraded" || st.Reason == "" {
		t.Errorf("status = %+v", st)
	}
	if got := testutil.ToFloat64(m.ModelLoaded); got != 0 {
		t.Errorf("model_loaded = %v", got)
	}
	if _, err := s.Predict(context.Background(), "hola"); !errors.Is(err, apperrors.ErrServiceUnavailable) {
		t.Errorf("Predict while degraded: %v", err)
	}
}

func TestLoadRunsOnce(t *testing.T) {
	s := readyService(t)
	err := s.LoadArtifact(trainArtifact(t, classifier.DefaultNaiveBayesTrainer(), docs, labels))
	if !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("second load: %v", err)
	}
	if m, _ := s.Metadata(); m.ModelKind != classifier.KindLogisticRegression {
		t.Errorf("second load replaced the model: %s", m.ModelKind)
	}

	d := NewService(DefaultOptions())
	_ = d.Load(filepath.Join(t.TempDir(), "absent.snta"))
	if err := d.LoadArtifact(trainArtifact(t, classifier.DefaultNaiveBayesTrainer(), docs, labels)); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("degraded service accepted a reload: %v", err)
	}
	if d.Ready() {
		t.Error("degraded service became ready")
	}
}

func TestClassValidation(t *testing.T) {
	t.Run("unknown label", func(t *testing.T) {
		s := NewService(DefaultOptions())
		a := trainArtifact(t, classifier.DefaultLogisticTrainer(), docs[:6], []string{"good", "good", "good", "bad", "bad", "bad"})
		if err := s.LoadArtifact(a); !errors.Is(err, apperrors.ErrArtifactCorrupt) {
			t.Errorf("err = %v", err)
		}
		if s.Status().State != "degraded" {
			t.Errorf("state = %s", s.Status().State)
		}
	})
	t.Run("expected set mismatch", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ExpectedClasses = dataset.All
		s := NewService(opts)
		a := trainArtifact(t, classifier.DefaultLogisticTrainer(), docs[:6], labels[:6])
		if err := s.LoadArtifact(a); err == nil {
			t.Error("two-class model accepted against a three-class expectation")
		}
	})
	t.Run("expected set match", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ExpectedClasses = []dataset.Sentiment{dataset.Neutro, dataset.Positivo, dataset.Negativo}
		s := NewService(opts)
		if err := s.LoadArtifact(trainArtifact(t, classifier.DefaultLogisticTrainer(), docs, labels)); err != nil {
			t.Errorf("LoadArtifact: %v", err)
		}
	})
}

func TestPredict(t *testing.T) {
	s := readyService(t)
	fixed := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	for _, text := range []string{"Excelente servicio, muy recomendado!", "pésima experiencia", "", "xyz qwerty"} {
		p, err := s.Predict(context.Background(), text)
		if err != nil {
			t.Fatalf("Predict(%q): %v", text, err)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Errorf("%q: confidence %v out of range", text, p.Confidence)
		}
		if p.Confidence != p.Probabilities[string(p.Label)] {
			t.Errorf("%q: confidence %v is not the probability of %s (%v)", text, p.Confidence, p.Label, p.Probabilities)
		}
		if r := math.Round(p.Confidence*1e4) / 1e4; r != p.Confidence {
			t.Errorf("%q: confidence %v not rounded to 4 places", text, p.Confidence)
		}
		if !p.Timestamp.Equal(fixed) || p.Model != classifier.KindLogisticRegression {
			t.Errorf("%q: prediction = %+v", text, p)
		}
	}

	p, _ := s.Predict(context.Background(), "Excelente servicio, muy recomendado!")
	if p.Label != dataset.Positivo {
		t.Errorf("label = %s, want Positivo", p.Label)
	}
	p, _ = s.Predict(context.Background(), "pésima experiencia, nunca más")
	if p.Label != dataset.Negativo {
		t.Errorf("label = %s, want Negativo", p.Label)
	}
}

func TestPredictDeterministicAndConcurrent(t *testing.T) {
	s := readyService(t)
	want, err := s.Predict(context.Background(), "producto excelente")
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := s.Predict(context.Background(), "producto excelente")
				if err != nil || got.Label != want.Label || got.Confidence != want.Confidence {
					t.Errorf("got %+v, %v; want %+v", got, err, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

type panicModel struct{ classifier.Model }

func (panicModel) Predict(features.Vector) string { panic("corrupted coefficients") }

func TestPredictRecoversPanic(t *testing.T) {
	a := trainArtifact(t, classifier.DefaultLogisticTrainer(), docs, labels)
	a.Model = panicModel{a.Model}
	s := NewService(DefaultOptions())
	if err := s.LoadArtifact(a); err != nil {
		t.Fatal(err)
	}
	_, err := s.Predict(context.Background(), "hola")
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
	if apperrors.HTTPStatusCode(err) != 500 {
		t.Errorf("status = %d", apperrors.HTTPStatusCode(err))
	}
}

func TestPredictCancelledContext(t *testing.T) {
	s := readyService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Predict(ctx, "hola"); !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v", err)
	}
}

func TestRoundClamps(t *testing.T) {
	s := NewService(Options{ConfidenceDecimals: 2})
	cases := map[float64]float64{-1e-12: 0, 1.0000000001: 1, 0.12345: 0.12, 0.999: 1}
	for in, want := range cases {
		if got := s.round(in); got != want {
			t.Errorf("round(%v) = %v, want %v", in, got, want)
		}
	}
}

func BenchmarkPredict(b *testing.B) {
	s := readyService(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Predict(ctx, "Excelente servicio, muy recomendado!"); err != nil {
			b.Fatal(err)
		}
	}
}
