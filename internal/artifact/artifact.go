// Package artifact persists a trained (feature space, model) pair as a
// single file. The file is a fixed 32-byte header followed by a
// zstd-compressed JSON payload:
//
//	[0:4]   magic "SNTA"
//	[4:8]   format version
//	[8:16]  compressed payload length
//	[16:20] CRC-32 (IEEE) of the compressed payload
//	[20:24] uncompressed payload length
//	[24:32] creation time, unix seconds
//
// All integers are little-endian.
package artifact

import (
	"fmt"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/features"
)

const (
	MagicBytes    uint32 = 0x41544E53 // "SNTA" little-endian
	FormatVersion uint32 = 1
	HeaderSize    int    = 32

	maxPayloadSize = 512 << 20
)

// Metadata describes how and when the model was produced. It is embedded in
// the artifact and also written beside it as JSON for operators.
type Metadata struct {
	ModelKind  classifier.Kind    `json:"model_kind"`
	Accuracy   float64            `json:"accuracy"`
	Classes    []string           `json:"classes"`
	NFeatures  int                `json:"n_features"`
	TrainedAt  time.Time          `json:"trained_at"`
	TrainSize  int                `json:"train_size,omitempty"`
	TestSize   int                `json:"test_size,omitempty"`
	Candidates map[string]float64 `json:"candidates,omitempty"`
}

// Artifact is the unit handed from training to inference.
type Artifact struct {
	Metadata   Metadata
	Vectorizer *features.Vectorizer
	Model      classifier.Model
}

// payload is the JSON document inside the compressed section.
type payload struct {
	Metadata   Metadata           `json:"metadata"`
	Vectorizer features.State     `json:"vectorizer"`
	Model      classifier.Encoded `json:"model"`
}

// Validate checks that the three parts describe the same model.
func (a *Artifact) Validate() error {
	if a.Vectorizer == nil || a.Model == nil {
		return fmt.Errorf("artifact is missing its feature space or model")
	}
	if a.Vectorizer.NumFeatures() != a.Model.NumFeatures() {
		return fmt.Errorf("feature space has %d features but model expects %d", a.Vectorizer.NumFeatures(), a.Model.NumFeatures())
	}
	if a.Metadata.NFeatures != a.Vectorizer.NumFeatures() {
		return fmt.Errorf("metadata lists %d features, feature space has %d", a.Metadata.NFeatures, a.Vectorizer.NumFeatures())
	}
	if a.Metadata.ModelKind != a.Model.Kind() {
		return fmt.Errorf("metadata kind %q does not match model kind %q", a.Metadata.ModelKind, a.Model.Kind())
	}
	metaClasses := slices.Clone(a.Metadata.Classes)
	modelClasses := a.Model.Classes()
	slices.Sort(metaClasses)
	slices.Sort(modelClasses)
	if !slices.Equal(metaClasses, modelClasses) {
		return fmt.Errorf("metadata classes %v differ from model classes %v", a.Metadata.Classes, a.Model.Classes())
	}
	if a.Metadata.Accuracy < 0 || a.Metadata.Accuracy > 1 {
		return fmt.Errorf("accuracy %v outside [0,1]", a.Metadata.Accuracy)
	}
	return nil
}
