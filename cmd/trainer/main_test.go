package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/artifact"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	pos := []string{"excelente", "genial", "perfecto", "maravilloso", "fantástico"}
	neg := []string{"pésimo", "horrible", "terrible", "lamentable", "espantoso"}
	nouns := []string{"servicio", "producto", "envío", "soporte", "precio", "local"}
	var b strings.Builder
	b.WriteString("texto,sentimiento\n")
	for _, n := range nouns {
		for i := range pos {
			fmt.Fprintf(&b, "\"%s %s, muy recomendado\",Positivo\n", pos[i], n)
			fmt.Fprintf(&b, "\"%s %s, nunca más\",Negativo\n", neg[i], n)
		}
	}
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesArtifact(t *testing.T) {
	out := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-data", writeDataset(t), "-out", out}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	a, err := artifact.Read(filepath.Join(out, "sentiment_model.snta"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if a.Metadata.TrainSize+a.Metadata.TestSize != 60 {
		t.Errorf("metadata = %+v", a.Metadata)
	}
	if _, err := artifact.ReadMetadata(filepath.Join(out, "model_metadata.json")); err != nil {
		t.Errorf("metadata file: %v", err)
	}
	if !strings.Contains(stdout.String(), "artifact:") {
		t.Errorf("report missing artifact path:\n%s", stdout.String())
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	oneClass := filepath.Join(dir, "one.csv")
	os.WriteFile(oneClass, []byte("texto,sentimiento\nbueno,Positivo\nmuy bueno,Positivo\n"), 0o644)
	blocker := filepath.Join(dir, "file")
	os.WriteFile(blocker, []byte("x"), 0o644)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"missing dataset", []string{"-data", filepath.Join(dir, "absent.csv"), "-out", dir}, exitData},
		{"single class", []string{"-data", oneClass, "-out", dir}, exitData},
		{"unwritable output", []string{"-data", writeDataset(t), "-out", filepath.Join(blocker, "models")}, exitIO},
		{"bad flag", []string{"-nope"}, exitFailure},
		{"missing config", []string{"-config", filepath.Join(dir, "absent.yaml")}, exitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tc.args, &stdout, &stderr); got != tc.want {
				t.Errorf("exit = %d, want %d; stderr: %s", got, tc.want, stderr.String())
			}
		})
	}
}
