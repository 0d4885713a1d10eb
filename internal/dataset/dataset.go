// Package dataset loads labeled review text, validates it for training and
// splits it into stratified train and test partitions.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
)

// Record is one labeled text.
type Record struct {
	Text      string
	Sentiment Sentiment
}

// CSVOptions names the columns holding the text and the label.
type CSVOptions struct {
	TextColumn  string
	LabelColumn string
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{TextColumn: "texto", LabelColumn: "sentimiento"}
}

// LoadCSV reads a headed CSV file. Rows with blank text are skipped; an
// unparsable label fails the whole load.
func LoadCSV(path string, opts CSVOptions) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Data("dataset %s does not exist", path)
		}
		return nil, apperrors.IO(err, "opening dataset %s", path)
	}
	defer f.Close()
	records, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return records, nil
}

// ReadCSV parses CSV from r; see LoadCSV.
func ReadCSV(r io.Reader, opts CSVOptions) ([]Record, error) {
	logger := slog.Default().With("component", "dataset")
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, apperrors.Data("dataset is empty")
	}
	if err != nil {
		return nil, apperrors.Data("reading header: %v", err)
	}
	textCol, labelCol := -1, -1
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(name, opts.TextColumn):
			textCol = i
		case strings.EqualFold(name, opts.LabelColumn):
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, apperrors.Data("header %v lacks columns %q and %q", header, opts.TextColumn, opts.LabelColumn)
	}

	var records []Record
	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Data("line %d: %v", line, err)
		}
		if textCol >= len(row) || labelCol >= len(row) {
			return nil, apperrors.Data("line %d: expected at least %d fields, got %d", line, max(textCol, labelCol)+1, len(row))
		}
		text := strings.TrimSpace(row[textCol])
		if text == "" {
			skipped++
			continue
		}
		s, err := ParseSentiment(row[labelCol])
		if err != nil {
			return nil, apperrors.Data("line %d: %v", line, err)
		}
		records = append(records, Record{Text: text, Sentiment: s})
	}
	if skipped > 0 {
		logger.Warn("skipped rows with blank text", "count", skipped)
	}
	return records, nil
}

// Validate checks that records can be trained on and split: at least two
// classes, each with at least two records.
func Validate(records []Record) error {
	if len(records) == 0 {
		return apperrors.Data("dataset has no records")
	}
	counts := Distribution(records)
	if len(counts) < 2 {
		return apperrors.Data("dataset has %d distinct class, need at least 2", len(counts))
	}
	for _, s := range All {
		if n, ok := counts[s]; ok && n < 2 {
			return apperrors.Data("class %s has %d record, need at least 2 to stratify", s, n)
		}
	}
	return nil
}

// Distribution counts records per sentiment.
func Distribution(records []Record) map[Sentiment]int {
	counts := make(map[Sentiment]int)
	for _, r := range records {
		counts[r.Sentiment]++
	}
	return counts
}

// Classes returns the distinct sentiments present, sorted by name.
func Classes(records []Record) []Sentiment {
	counts := Distribution(records)
	out := make([]Sentiment, 0, len(counts))
	for s := range counts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Split is a train/test partition of a dataset.
type Split struct {
	Train []Record
	Test  []Record
}

// StratifiedSplit partitions records so each class keeps its proportion in
// both halves. Every class puts round(n*testRatio) records in test, at
// least one and never all of them. The same seed yields the same split.
func StratifiedSplit(records []Record, testRatio float64, seed int64) (Split, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("test ratio must be in (0,1), got %v", testRatio)
	}
	if err := Validate(records); err != nil {
		return Split{}, err
	}
	byClass := make(map[Sentiment][]Record)
	for _, r := range records {
		byClass[r.Sentiment] = append(byClass[r.Sentiment], r)
	}
	rng := rand.New(rand.NewSource(seed))
	var split Split
	for _, class := range Classes(records) {
		group := append([]Record(nil), byClass[class]...)
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		nTest := int(math.Round(float64(len(group)) * testRatio))
		nTest = min(max(nTest, 1), len(group)-1)
		split.Test = append(split.Test, group[:nTest]...)
		split.Train = append(split.Train, group[nTest:]...)
	}
	rng.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })
	rng.Shuffle(len(split.Test), func(i, j int) { split.Test[i], split.Test[j] = split.Test[j], split.Test[i] })
	return split, nil
}

// Texts and Labels project records into the parallel slices the feature
// space and classifiers consume.
func Texts(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Text
	}
	return out
}

func Labels(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.Sentiment)
	}
	return out
}
