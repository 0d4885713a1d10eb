// Package server exposes the inference service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/history"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/inference"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/predictcache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"
)

const (
	serviceName     = "sentiment-analysis"
	maxBodyBytes    = 1 << 20
	predictionIDHdr = "X-Prediction-ID"
)

// Predictor is satisfied by *inference.Service.
type Predictor interface {
	Predict(ctx context.Context, text string) (inference.Prediction, error)
	Status() inference.Status
	Metadata() (artifact.Metadata, bool)
	ModelID() string
}

// HistoryStore is satisfied by *history.Store.
type HistoryStore interface {
	SaveAsync(ctx context.Context, r history.Record)
	Stats(ctx context.Context) (history.Stats, error)
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// PredictionCache is satisfied by *predictcache.Cache.
type PredictionCache interface {
	GetOrCompute(ctx context.Context, modelID, text string, compute func(context.Context) (inference.Prediction, error)) (inference.Prediction, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() predictcache.Stats
}

// EventTracker is satisfied by *analytics.Collector.
type EventTracker interface {
	Track(ev analytics.PredictionEvent)
}

// Deps wires the handler. Only Predictor is required; the rest are
// switched off when nil.
type Deps struct {
	Predictor Predictor
	History   HistoryStore
	Cache     PredictionCache
	Events    EventTracker
	Metrics   *metrics.Metrics
	Version   string
}

type Handler struct {
	deps    Deps
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Handler{
		deps:    deps,
		started: time.Now(),
		now:     time.Now,
		logger:  slog.Default().With("component", "http-handler"),
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service":         serviceName,
		"version":         h.deps.Version,
		"status":          "running",
		"model_loaded":    h.deps.Predictor.Status().Ready,
		"max_text_length": MaxTextLength,
	})
}

// Health always answers 200; a missing model shows up as "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.deps.Predictor.Status()
	status := "healthy"
	if !st.Ready {
		status = "degraded"
	}
	body := map[string]any{
		"status":       status,
		"model_loaded": st.Ready,
		"model_state":  st.State,
		"timestamp":    st.Timestamp,
		"uptime":       h.now().Sub(h.started).Round(time.Second).String(),
	}
	if st.Reason != "" {
		body["reason"] = st.Reason
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.countError("invalid")
		if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateRequest(&req); err != nil {
		h.countError("invalid")
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":     "validation failed",
				"status":    http.StatusBadRequest,
				"fields":    verr.Fields,
				"timestamp": h.now().UTC(),
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := *req.Text

	pred, cacheHit, err := h.predict(ctx, text)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		msg := "prediction failed"
		reason := "internal"
		switch {
		case errors.Is(err, apperrors.ErrServiceUnavailable):
			msg, reason = "model not loaded", "unavailable"
		case errors.Is(err, apperrors.ErrTimeout):
			msg, reason = "prediction timed out", "timeout"
		}
		h.countError(reason)
		log.Error("prediction failed", "error", err, "status_code", status)
		h.writeError(w, status, msg)
		return
	}

	latency := time.Since(start)
	id := uuid.NewString()
	h.observe(pred, cacheHit, latency)
	log.Info("prediction served",
		"prediction_id", id,
		"label", pred.Label,
		"confidence", pred.Confidence,
		"cache_hit", cacheHit,
		"latency", latency,
	)
	if h.deps.History != nil {
		h.deps.History.SaveAsync(ctx, history.Record{
			PredictionID: id,
			Text:         text,
			Label:        string(pred.Label),
			Probability:  pred.Confidence,
			ModelKind:    string(pred.Model),
			CreatedAt:    pred.Timestamp,
		})
	}
	if h.deps.Events != nil {
		h.deps.Events.Track(analytics.NewPredictionEvent(id, logger.RequestID(ctx), pred, utf8.RuneCountInString(text), latency, cacheHit))
	}
	w.Header().Set(predictionIDHdr, id)
	h.writeJSON(w, http.StatusOK, pred)
}

func (h *Handler) predict(ctx context.Context, text string) (inference.Prediction, bool, error) {
	modelID := h.deps.Predictor.ModelID()
	if h.deps.Cache == nil || modelID == "" {
		p, err := h.deps.Predictor.Predict(ctx, text)
		return p, false, err
	}
	return h.deps.Cache.GetOrCompute(ctx, modelID, text, func(ctx context.Context) (inference.Prediction, error) {
		return h.deps.Predictor.Predict(ctx, text)
	})
}

func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	m, ok := h.deps.Predictor.Metadata()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		h.writeError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}
	st, err := h.deps.History.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("history stats failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "prediction history unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		h.writeError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}
	limit := history.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = history.ClampLimit(n)
	}
	recs, err := h.deps.History.Recent(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("recent predictions failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "prediction history unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(recs),
		"predictions": recs,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.deps.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	n, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": n})
}

func (h *Handler) observe(p inference.Prediction, cacheHit bool, latency time.Duration) {
	m := h.deps.Metrics
	if m == nil {
		return
	}
	cacheStatus := "miss"
	switch {
	case h.deps.Cache == nil:
		cacheStatus = "disabled"
	case cacheHit:
		cacheStatus = "hit"
	}
	m.PredictionsTotal.WithLabelValues(string(p.Label)).Inc()
	m.PredictionLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	m.PredictionConfidence.Observe(p.Confidence)
}

func (h *Handler) countError(reason string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.PredictionErrors.WithLabelValues(reason).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{
		"error":     message,
		"status":    status,
		"timestamp": h.now().UTC(),
	})
}
