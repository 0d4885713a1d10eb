// Command trainer fits the sentiment model offline and writes the artifact
// the sentiment service loads.
//
// It reads a labeled CSV, trains every configured candidate on a stratified
// split, keeps the most accurate one and writes the artifact plus a JSON
// metadata file. A training report is printed to stdout.
//
// Exit codes: 0 success, 2 invalid dataset, 3 I/O failure, 1 anything else.
//
// Usage:
//
//	go run ./cmd/trainer [-config configs/development.yaml] [-data data.csv] [-out models]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/training"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/logger"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitData    = 2
	exitIO      = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("trainer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	dataPath := fs.String("data", "", "dataset CSV (overrides training.datasetPath)")
	outDir := fs.String("out", "", "output directory (overrides training.outputDir)")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}
	slog.SetDefault(logger.New(stderr, cfg.Logging.Level, cfg.Logging.Format))

	tc := cfg.Training
	if *dataPath != "" {
		tc.DatasetPath = *dataPath
	}
	if *outDir != "" {
		tc.OutputDir = *outDir
	}

	start := time.Now()
	records, err := dataset.LoadCSV(tc.DatasetPath, dataset.CSVOptions{TextColumn: tc.TextColumn, LabelColumn: tc.LabelColumn})
	if err != nil {
		return fail(stderr, "loading dataset", err)
	}
	opts, err := training.OptionsFromConfig(tc)
	if err != nil {
		return fail(stderr, "configuring training", err)
	}
	res, err := training.New(opts).Run(ctx, records)
	if err != nil {
		return fail(stderr, "training", err)
	}

	artifactPath, metadataPath := tc.ArtifactPath(), tc.MetadataPath()
	if err := training.Save(res, artifactPath, metadataPath); err != nil {
		return fail(stderr, "saving model", err)
	}

	if err := res.Report.WriteText(stdout); err != nil {
		return fail(stderr, "writing report", err)
	}
	fmt.Fprintf(stdout, "\nartifact: %s\nmetadata: %s\n", artifactPath, metadataPath)
	slog.Info("training finished",
		"model", res.Artifact.Metadata.ModelKind,
		"accuracy", res.Artifact.Metadata.Accuracy,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return exitOK
}

func fail(stderr io.Writer, stage string, err error) int {
	fmt.Fprintf(stderr, "%s: %v\n", stage, err)
	switch {
	case errors.Is(err, apperrors.ErrDataInvalid):
		return exitData
	case errors.Is(err, apperrors.ErrIO):
		return exitIO
	default:
		return exitFailure
	}
}
