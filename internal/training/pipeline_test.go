package training

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

var (
	posAdj = []string{"excelente", "genial", "perfecto", "maravilloso", "increíble", "fantástico", "estupendo", "magnífico", "impecable", "extraordinario"}
	negAdj = []string{"pésima", "horrible", "terrible", "desastrosa", "lamentable", "espantosa", "malísima", "deficiente", "decepcionante", "penosa"}
	nouns  = []string{"servicio", "producto", "atención", "entrega", "calidad", "compra", "tienda", "envío", "soporte", "experiencia"}
)

// corpus returns 100 distinct positive and 100 distinct negative reviews.
func corpus() []dataset.Record {
	var out []dataset.Record
	for i := 0; i < 100; i++ {
		noun := nouns[i/10]
		out = append(out,
			dataset.Record{Text: fmt.Sprintf("%s %s, muy recomendado", posAdj[i%10], noun), Sentiment: dataset.Positivo},
			dataset.Record{Text: fmt.Sprintf("%s %s, nunca más", negAdj[i%10], noun), Sentiment: dataset.Negativo},
		)
	}
	return out
}

func fixedClock(p *Pipeline) {
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
}

func TestRunEndToEnd(t *testing.T) {
	records := corpus()
	p := New(DefaultOptions())
	fixedClock(p)
	res, err := p.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	meta := res.Artifact.Metadata
	if meta.Accuracy < 0 || meta.Accuracy > 1 {
		t.Errorf("accuracy = %v", meta.Accuracy)
	}
	if meta.TrainSize != 160 || meta.TestSize != 40 {
		t.Errorf("split sizes = %d/%d, want 160/40", meta.TrainSize, meta.TestSize)
	}
	if len(meta.Candidates) != 2 {
		t.Errorf("candidates = %v", meta.Candidates)
	}
	for _, c := range meta.Classes {
		if c != "Positivo" && c != "Negativo" {
			t.Errorf("class %q not in input labels", c)
		}
	}

	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "sentiment_model.snta")
	if err := Save(res, artifactPath, filepath.Join(dir, "model_metadata.json")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := artifact.Read(artifactPath)
	if err != nil {
		t.Fatalf("reading saved artifact: %v", err)
	}

	probes := []struct {
		text string
		want string
	}{
		{"Excelente servicio, muy recomendado!", "Positivo"},
		{"Pésima experiencia", "Negativo"},
	}
	for _, probe := range probes {
		x := loaded.Vectorizer.Transform(probe.text)
		got := loaded.Model.Predict(x)
		if got != probe.want {
			t.Errorf("Predict(%q) = %s, want %s", probe.text, got, probe.want)
		}
		conf, ok := loaded.Model.PredictProba(x).Probability(got)
		if !ok || conf <= 0.5 {
			t.Errorf("confidence for %q = %v, want > 0.5", probe.text, conf)
		}
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	records := corpus()
	orig := append([]dataset.Record(nil), records...)
	if _, err := New(DefaultOptions()).Run(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	for i := range records {
		if records[i] != orig[i] {
			t.Fatalf("record %d changed", i)
		}
	}
}

func TestRunRejectsBadDatasets(t *testing.T) {
	oneClass := []dataset.Record{{Text: "bueno", Sentiment: dataset.Positivo}, {Text: "muy bueno", Sentiment: dataset.Positivo}}
	for name, records := range map[string][]dataset.Record{
		"empty":        nil,
		"single class": oneClass,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(DefaultOptions()).Run(context.Background(), records)
			if !errors.Is(err, apperrors.ErrDataInvalid) {
				t.Errorf("expected ErrDataInvalid, got %v", err)
			}
		})
	}
}

func TestSaveToUnwritableLocation(t *testing.T) {
	res, err := New(DefaultOptions()).Run(context.Background(), corpus())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "models")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	err = Save(res, filepath.Join(blocker, "m.snta"), filepath.Join(blocker, "m.json"))
	if !errors.Is(err, apperrors.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

type stubModel struct {
	classifier.Model
	kind classifier.Kind
}

func (s stubModel) Kind() classifier.Kind { return s.kind }

func TestSelectBestTieBreak(t *testing.T) {
	lr := candidate{model: stubModel{kind: classifier.KindLogisticRegression}, eval: Evaluation{Accuracy: 0.9}}
	nb := candidate{model: stubModel{kind: classifier.KindNaiveBayes}, eval: Evaluation{Accuracy: 0.9}}
	if got := selectBest([]candidate{nb, lr}); got.model.Kind() != classifier.KindLogisticRegression {
		t.Errorf("tie went to %s", got.model.Kind())
	}
	nb.eval.Accuracy = 0.95
	if got := selectBest([]candidate{lr, nb}); got.model.Kind() != classifier.KindNaiveBayes {
		t.Errorf("higher accuracy lost to %s", got.model.Kind())
	}
}

func TestScore(t *testing.T) {
	truth := []string{"Positivo", "Positivo", "Negativo", "Negativo", "Neutro"}
	pred := []string{"Positivo", "Negativo", "Negativo", "Negativo", "Positivo"}
	ev := score(classifier.KindNaiveBayes, []string{"Negativo", "Positivo"}, truth, pred)
	if ev.Accuracy != 0.6 {
		t.Errorf("accuracy = %v, want 0.6", ev.Accuracy)
	}
	// classes sorted: Negativo, Neutro, Positivo
	want := [][]int{{2, 0, 0}, {0, 0, 1}, {1, 0, 1}}
	for i := range want {
		for j := range want[i] {
			if ev.Confusion[i][j] != want[i][j] {
				t.Fatalf("confusion = %v, want %v", ev.Confusion, want)
			}
		}
	}
	neg := ev.PerClass[0]
	if math.Abs(neg.Precision-2.0/3.0) > 1e-12 || neg.Recall != 1 || neg.Support != 2 {
		t.Errorf("Negativo metrics = %+v", neg)
	}
	if neu := ev.PerClass[1]; neu.Precision != 0 || neu.F1 != 0 {
		t.Errorf("Neutro metrics = %+v", neu)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	opts, err := OptionsFromConfig(cfg.Training)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Trainers) != 2 || opts.Trainers[0].Kind() != classifier.KindLogisticRegression {
		t.Errorf("trainers = %v", opts.Trainers)
	}
	if opts.Features.MaxFeatures != 5000 || opts.Features.Analyzer.NGramMax != 2 {
		t.Errorf("features = %+v", opts.Features)
	}

	cfg.Training.Candidates = []string{"svm"}
	if _, err := OptionsFromConfig(cfg.Training); err == nil {
		t.Error("expected error for unknown candidate")
	}
}

func TestReportText(t *testing.T) {
	opts := DefaultOptions()
	opts.Trainers = []classifier.Trainer{classifier.DefaultNaiveBayesTrainer()}
	res, err := New(opts).Run(context.Background(), corpus())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := res.Report.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"CANDIDATES", "naive_bayes", "CONFUSION MATRIX", "TOP FEATURES Positivo", "STAGES"} {
		if !strings.Contains(out, want) {
			t.Errorf("report lacks %q:\n%s", want, out)
		}
	}
}

func TestTopFeaturesOrdering(t *testing.T) {
	cfg := features.DefaultConfig()
	cfg.MinDF = 1
	vec := features.New(cfg)
	records := corpus()
	X, err := vec.FitTransform(dataset.Texts(records))
	if err != nil {
		t.Fatal(err)
	}
	m, err := classifier.DefaultLogisticTrainer().Fit(context.Background(), X, dataset.Labels(records), vec.NumFeatures())
	if err != nil {
		t.Fatal(err)
	}
	top := TopFeatures(m, vec, 5)
	pos := top["Positivo"]
	if len(pos) != 5 {
		t.Fatalf("top positive = %v", pos)
	}
	for i := 1; i < len(pos); i++ {
		if pos[i].Weight > pos[i-1].Weight {
			t.Errorf("weights not descending: %v", pos)
		}
	}
	if pos[0].Weight <= 0 {
		t.Errorf("strongest positive term has weight %v", pos[0].Weight)
	}
}
