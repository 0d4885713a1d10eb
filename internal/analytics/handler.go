package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
)

// StatsSource is satisfied by *Aggregator.
type StatsSource interface {
	Stats() AggregatedStats
}

// LabelStats is the slice of the aggregate for one sentiment.
type LabelStats struct {
	Label            string  `json:"label"`
	Count            int64   `json:"count"`
	Share            float64 `json:"share"`
	AvgConfidence    float64 `json:"avg_confidence"`
	TotalPredictions int64   `json:"total_predictions"`
}

type Handler struct {
	source StatsSource
	now    func() time.Time
	logger *slog.Logger
}

func NewHandler(source StatsSource) *Handler {
	return &Handler{
		source: source,
		now:    time.Now,
		logger: slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves the whole aggregate, or with ?label= only that sentiment.
// The label accepts the same spellings as the training data, so
// "positive" and "Positivo" select the same bucket.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.source.Stats()
	raw := r.URL.Query().Get("label")
	if raw == "" {
		h.writeJSON(w, http.StatusOK, stats)
		return
	}
	label, err := dataset.ParseSentiment(raw)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":     err.Error(),
			"status":    http.StatusBadRequest,
			"timestamp": h.now().UTC(),
		})
		return
	}
	key := string(label)
	h.writeJSON(w, http.StatusOK, LabelStats{
		Label:            key,
		Count:            stats.ByLabel[key],
		Share:            stats.LabelShare[key],
		AvgConfidence:    stats.LabelConfidence[key],
		TotalPredictions: stats.TotalPredictions,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
