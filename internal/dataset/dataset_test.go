package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
)

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		input    string
		expected Sentiment
		wantErr  bool
	}{
		{"Positivo", Positivo, false},
		{"  negativo ", Negativo, false},
		{"NEUTRAL", Neutro, false},
		{"1", Positivo, false},
		{"0", Negativo, false},
		{"Desconocido", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSentiment(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSentiment(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.expected {
			t.Errorf("ParseSentiment(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseSetRejectsDuplicates(t *testing.T) {
	if _, err := ParseSet([]string{"Positivo", "positive"}); err == nil {
		t.Error("expected duplicate error")
	}
	got, err := ParseSet([]string{"Negativo", "Positivo"})
	if err != nil || !reflect.DeepEqual(got, []Sentiment{Negativo, Positivo}) {
		t.Errorf("ParseSet = %v, %v", got, err)
	}
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffid,texto,sentimiento,calificacion\n" +
		"1,\"Excelente servicio, muy recomendado\",Positivo,5\n" +
		"2,   ,Negativo,1\n" +
		"3,Pésima experiencia,negativo,1\n" +
		"4,Normal,Neutro,3\n"
	records, err := ReadCSV(strings.NewReader(input), DefaultCSVOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := []Record{
		{"Excelente servicio, muy recomendado", Positivo},
		{"Pésima experiencia", Negativo},
		{"Normal", Neutro},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %+v, want %+v", records, want)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "texto,label\nhola,Positivo\n",
		"bad label":      "texto,sentimiento\nhola,feliz\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(input), DefaultCSVOptions())
			if !errors.Is(err, apperrors.ErrDataInvalid) {
				t.Errorf("expected ErrDataInvalid, got %v", err)
			}
		})
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), DefaultCSVOptions())
	if !errors.Is(err, apperrors.ErrDataInvalid) {
		t.Fatalf("expected ErrDataInvalid, got %v", err)
	}
}

func TestLoadCSVCustomColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("review,label\ngreat,positive\nawful,negative\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := LoadCSV(path, CSVOptions{TextColumn: "review", LabelColumn: "label"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Sentiment != Negativo {
		t.Errorf("records = %+v", records)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		wantErr bool
	}{
		{"empty", nil, true},
		{"single class", []Record{{"a", Positivo}, {"b", Positivo}}, true},
		{"class with one record", []Record{{"a", Positivo}, {"b", Positivo}, {"c", Negativo}}, true},
		{"ok", []Record{{"a", Positivo}, {"b", Positivo}, {"c", Negativo}, {"d", Negativo}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.records)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrDataInvalid) {
				t.Errorf("expected ErrDataInvalid, got %v", err)
			}
		})
	}
}

func makeRecords(pos, neg, neu int) []Record {
	var out []Record
	for i := 0; i < pos; i++ {
		out = append(out, Record{fmt.Sprintf("bueno %d", i), Positivo})
	}
	for i := 0; i < neg; i++ {
		out = append(out, Record{fmt.Sprintf("malo %d", i), Negativo})
	}
	for i := 0; i < neu; i++ {
		out = append(out, Record{fmt.Sprintf("normal %d", i), Neutro})
	}
	return out
}

func TestStratifiedSplitPreservesProportions(t *testing.T) {
	records := makeRecords(50, 30, 20)
	split, err := StratifiedSplit(records, 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(split.Train)+len(split.Test) != len(records) {
		t.Fatalf("lost records: %d + %d", len(split.Train), len(split.Test))
	}
	test := Distribution(split.Test)
	want := map[Sentiment]int{Positivo: 10, Negativo: 6, Neutro: 4}
	if !reflect.DeepEqual(test, want) {
		t.Errorf("test distribution = %v, want %v", test, want)
	}
	seen := make(map[string]bool)
	for _, r := range append(split.Train, split.Test...) {
		if seen[r.Text] {
			t.Fatalf("record %q appears twice", r.Text)
		}
		seen[r.Text] = true
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	records := makeRecords(10, 10, 0)
	a, _ := StratifiedSplit(records, 0.2, 7)
	b, _ := StratifiedSplit(records, 0.2, 7)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different splits")
	}
}

func TestStratifiedSplitSmallClasses(t *testing.T) {
	records := makeRecords(2, 2, 0)
	split, err := StratifiedSplit(records, 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	d := Distribution(split.Test)
	if d[Positivo] != 1 || d[Negativo] != 1 {
		t.Errorf("each class should give exactly one test record, got %v", d)
	}
	if len(split.Train) != 2 {
		t.Errorf("train size = %d, want 2", len(split.Train))
	}
}

func TestStratifiedSplitDoesNotMutateInput(t *testing.T) {
	records := makeRecords(5, 5, 0)
	orig := append([]Record(nil), records...)
	if _, err := StratifiedSplit(records, 0.4, 1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(records, orig) {
		t.Error("input slice was reordered")
	}
}
