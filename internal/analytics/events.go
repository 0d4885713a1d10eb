package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/inference"
)

// PredictionEvent is published once per served prediction.
type PredictionEvent struct {
	PredictionID string    `json:"prediction_id"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	ModelKind    string    `json:"model_kind"`
	TextLength   int       `json:"text_length"`
	LatencyUs    int64     `json:"latency_us"`
	CacheHit     bool      `json:"cache_hit"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// NewPredictionEvent describes p. The text itself is not carried, only its
// length in runes.
func NewPredictionEvent(id, requestID string, p inference.Prediction, textLen int, latency time.Duration, cacheHit bool) PredictionEvent {
	return PredictionEvent{
		PredictionID: id,
		Label:        string(p.Label),
		Confidence:   p.Confidence,
		ModelKind:    string(p.Model),
		TextLength:   textLen,
		LatencyUs:    latency.Microseconds(),
		CacheHit:     cacheHit,
		Timestamp:    p.Timestamp,
		RequestID:    requestID,
	}
}
