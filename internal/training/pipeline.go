// Package training turns a labeled dataset into a deployable artifact: it
// splits the data, fits the TF-IDF feature space on the training half,
// fits every candidate classifier concurrently, scores them on the held-out
// half and keeps the best.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/tracing"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/textproc"
)

// Options configures a Pipeline.
type Options struct {
	Features    features.Config
	TestRatio   float64
	Seed        int64
	Trainers    []classifier.Trainer
	TopFeatures int
}

// DefaultOptions trains both model families with the production settings.
func DefaultOptions() Options {
	return Options{
		Features:    features.DefaultConfig(),
		TestRatio:   0.2,
		Seed:        42,
		Trainers:    []classifier.Trainer{classifier.DefaultLogisticTrainer(), classifier.DefaultNaiveBayesTrainer()},
		TopFeatures: 15,
	}
}

// OptionsFromConfig maps the training section of the config file.
func OptionsFromConfig(cfg config.TrainingConfig) (Options, error) {
	opts := Options{
		Features: features.Config{
			Analyzer: textproc.Analyzer{
				NGramMin:     cfg.NGramMin,
				NGramMax:     cfg.NGramMax,
				StripAccents: cfg.StripAccents,
				StopWords:    cfg.StopWords,
			},
			MaxFeatures: cfg.MaxFeatures,
			MinDF:       cfg.MinDF,
			MaxDF:       cfg.MaxDF,
		},
		TestRatio:   cfg.TestRatio,
		Seed:        cfg.Seed,
		TopFeatures: cfg.TopFeatures,
	}
	seen := make(map[classifier.Kind]bool)
	for _, name := range cfg.Candidates {
		kind, err := classifier.ParseKind(name)
		if err != nil {
			return Options{}, err
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		switch kind {
		case classifier.KindLogisticRegression:
			opts.Trainers = append(opts.Trainers, classifier.LogisticTrainer{C: cfg.C, MaxIter: cfg.MaxIter, Balanced: true})
		case classifier.KindNaiveBayes:
			opts.Trainers = append(opts.Trainers, classifier.NaiveBayesTrainer{Alpha: cfg.Alpha})
		}
	}
	if len(opts.Trainers) == 0 {
		return Options{}, fmt.Errorf("no candidate classifiers configured")
	}
	return opts, nil
}

type Pipeline struct {
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		opts:   opts,
		now:    time.Now,
		logger: slog.Default().With("component", "training"),
	}
}

// Result is the output of a successful run.
type Result struct {
	Artifact *artifact.Artifact
	Report   Report
}

// Run trains on records. It never mutates records and has no side effects
// beyond logging; see Save for persisting the result.
func (p *Pipeline) Run(ctx context.Context, records []dataset.Record) (*Result, error) {
	ctx, root := tracing.StartSpan(ctx, "training", "")
	defer func() {
		root.End()
		root.Log(p.logger)
	}()

	_, span := tracing.StartChildSpan(ctx, "split")
	if err := dataset.Validate(records); err != nil {
		span.End()
		return nil, err
	}
	split, err := dataset.StratifiedSplit(records, p.opts.TestRatio, p.opts.Seed)
	span.End()
	if err != nil {
		return nil, err
	}
	p.logger.Info("dataset split",
		"records", len(records),
		"train", len(split.Train),
		"test", len(split.Test),
		"distribution", fmt.Sprint(dataset.Distribution(records)),
	)

	_, span = tracing.StartChildSpan(ctx, "vectorize")
	vec := features.New(p.opts.Features)
	Xtrain, err := vec.FitTransform(dataset.Texts(split.Train))
	if err != nil {
		span.End()
		return nil, fmt.Errorf("fitting feature space: %w", err)
	}
	Xtest := vec.TransformAll(dataset.Texts(split.Test))
	span.SetAttr("n_features", vec.NumFeatures())
	span.End()
	p.logger.Info("feature space fitted", "n_features", vec.NumFeatures())

	ytrain, ytest := dataset.Labels(split.Train), dataset.Labels(split.Test)
	candidates, err := p.fitCandidates(ctx, Xtrain, ytrain, Xtest, ytest, vec.NumFeatures())
	if err != nil {
		return nil, err
	}

	best := selectBest(candidates)
	meta := artifact.Metadata{
		ModelKind:  best.model.Kind(),
		Accuracy:   best.eval.Accuracy,
		Classes:    best.model.Classes(),
		NFeatures:  vec.NumFeatures(),
		TrainedAt:  p.now().UTC(),
		TrainSize:  len(split.Train),
		TestSize:   len(split.Test),
		Candidates: make(map[string]float64, len(candidates)),
	}
	report := Report{Selected: best.model.Kind(), Distribution: dataset.Distribution(records)}
	for _, c := range candidates {
		meta.Candidates[string(c.model.Kind())] = c.eval.Accuracy
		report.Candidates = append(report.Candidates, c.eval)
	}
	if p.opts.TopFeatures > 0 {
		report.TopFeatures = TopFeatures(best.model, vec, p.opts.TopFeatures)
	}
	root.SetAttr("selected", string(best.model.Kind()))
	root.SetAttr("accuracy", best.eval.Accuracy)
	report.Timings = root.Timings()

	a := &artifact.Artifact{Metadata: meta, Vectorizer: vec, Model: best.model}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: trained artifact inconsistent: %v", apperrors.ErrInternal, err)
	}
	p.logger.Info("model selected", "kind", meta.ModelKind, "accuracy", meta.Accuracy, "classes", meta.Classes)
	return &Result{Artifact: a, Report: report}, nil
}

type candidate struct {
	model classifier.Model
	eval  Evaluation
}

// fitCandidates trains every configured model family in parallel. The
// feature matrices are shared read-only.
func (p *Pipeline) fitCandidates(ctx context.Context, Xtrain []features.Vector, ytrain []string, Xtest []features.Vector, ytest []string, nFeatures int) ([]candidate, error) {
	out := make([]candidate, len(p.opts.Trainers))
	g, gctx := errgroup.WithContext(ctx)
	for i, tr := range p.opts.Trainers {
		g.Go(func() error {
			_, span := tracing.StartChildSpan(gctx, "fit:"+string(tr.Kind()))
			defer span.End()
			start := time.Now()
			model, err := tr.Fit(gctx, Xtrain, ytrain, nFeatures)
			if err != nil {
				return fmt.Errorf("fitting %s: %w", tr.Kind(), err)
			}
			ev := Evaluate(model, Xtest, ytest)
			span.SetAttr("accuracy", ev.Accuracy)
			p.logger.Info("candidate evaluated",
				"kind", tr.Kind(),
				"accuracy", ev.Accuracy,
				"macro_f1", ev.MacroF1,
				"duration", time.Since(start).Round(time.Millisecond),
			)
			out[i] = candidate{model: model, eval: ev}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// selectBest picks the highest held-out accuracy; equal accuracies go to the
// kind that comes first in classifier.Preference.
func selectBest(cs []candidate) candidate {
	best := cs[0]
	for _, c := range cs[1:] {
		switch {
		case c.eval.Accuracy > best.eval.Accuracy:
			best = c
		case c.eval.Accuracy == best.eval.Accuracy && c.model.Kind().Rank() < best.model.Kind().Rank():
			best = c
		}
	}
	return best
}

// Save writes the artifact and its metadata companion atomically.
func Save(res *Result, artifactPath, metadataPath string) error {
	if err := artifact.WriteBundle(artifactPath, metadataPath, res.Artifact); err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}
