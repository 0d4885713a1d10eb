package training

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/tracing"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
)

// Report summarizes a training run for operators.
type Report struct {
	Selected     classifier.Kind           `json:"selected"`
	Candidates   []Evaluation              `json:"candidates"`
	Distribution map[dataset.Sentiment]int `json:"distribution"`
	TopFeatures  map[string][]WeightedTerm `json:"top_features,omitempty"`
	Timings      []tracing.Timing          `json:"timings,omitempty"`
}

// Winner returns the evaluation of the selected model.
func (r Report) Winner() Evaluation {
	for _, c := range r.Candidates {
		if c.Kind == r.Selected {
			return c
		}
	}
	return Evaluation{}
}

// WriteText renders the report as aligned plain-text tables.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := func(format string, args ...any) { fmt.Fprintf(tw, format, args...) }

	p("DATASET\n")
	for _, s := range dataset.All {
		if n, ok := r.Distribution[s]; ok {
			p("  %s\t%d\n", s, n)
		}
	}

	p("\nCANDIDATES\n  model\taccuracy\tmacro f1\n")
	for _, c := range r.Candidates {
		mark := ""
		if c.Kind == r.Selected {
			mark = "  *"
		}
		p("  %s\t%.4f\t%.4f%s\n", c.Kind, c.Accuracy, c.MacroF1, mark)
	}

	win := r.Winner()
	p("\nCLASSIFICATION REPORT (%s)\n  class\tprecision\trecall\tf1\tsupport\n", r.Selected)
	for _, m := range win.PerClass {
		p("  %s\t%.4f\t%.4f\t%.4f\t%d\n", m.Class, m.Precision, m.Recall, m.F1, m.Support)
	}

	p("\nCONFUSION MATRIX (rows true, cols predicted)\n  \t%s\n", strings.Join(win.Classes, "\t"))
	for i, row := range win.Confusion {
		cells := make([]string, len(row))
		for j, n := range row {
			cells[j] = fmt.Sprint(n)
		}
		p("  %s\t%s\n", win.Classes[i], strings.Join(cells, "\t"))
	}

	if len(r.TopFeatures) > 0 {
		classes := make([]string, 0, len(r.TopFeatures))
		for c := range r.TopFeatures {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, c := range classes {
			p("\nTOP FEATURES %s\n", c)
			for _, t := range r.TopFeatures[c] {
				p("  %s\t%+.4f\n", t.Term, t.Weight)
			}
		}
	}

	if len(r.Timings) > 0 {
		p("\nSTAGES\n")
		for _, t := range r.Timings {
			p("  %s\t%s\n", t.Name, t.Duration)
		}
	}
	return tw.Flush()
}
