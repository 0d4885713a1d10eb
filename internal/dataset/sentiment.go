package dataset

import (
	"fmt"
	"strings"
)

// Sentiment is the closed set of labels a model may emit.
type Sentiment string

const (
	Positivo Sentiment = "Positivo"
	Neutro   Sentiment = "Neutro"
	Negativo Sentiment = "Negativo"
)

// All lists every sentiment in display order.
var All = []Sentiment{Positivo, Neutro, Negativo}

func (s Sentiment) String() string { return string(s) }

// ParseSentiment accepts the Spanish and English names in any case and the
// binary labels 1 and 0 used by older datasets.
func ParseSentiment(raw string) (Sentiment, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positivo", "positive", "pos", "1":
		return Positivo, nil
	case "neutro", "neutral", "neu":
		return Neutro, nil
	case "negativo", "negative", "neg", "0":
		return Negativo, nil
	}
	return "", fmt.Errorf("unknown sentiment label %q", raw)
}

// ParseSet parses every label and rejects duplicates.
func ParseSet(labels []string) ([]Sentiment, error) {
	out := make([]Sentiment, 0, len(labels))
	seen := make(map[Sentiment]struct{}, len(labels))
	for _, l := range labels {
		s, err := ParseSentiment(l)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("label %q listed twice", l)
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
