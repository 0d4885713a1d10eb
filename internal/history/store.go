// Package history records served predictions in PostgreSQL and answers
// summary queries over them. Writes are best effort: they run behind a
// circuit breaker and a deadline, and a failed write never fails the
// prediction that produced it.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/resilience"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sentiment_analysis (
		id            BIGSERIAL PRIMARY KEY,
		prediction_id UUID NOT NULL UNIQUE,
		text          TEXT NOT NULL,
		prediction    VARCHAR(20) NOT NULL,
		probability   DOUBLE PRECISION NOT NULL,
		model_kind    VARCHAR(40) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sentiment_analysis_created_at ON sentiment_analysis (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_sentiment_analysis_prediction ON sentiment_analysis (prediction)`,
}

// Record is one stored prediction.
type Record struct {
	ID           int64     `json:"id"`
	PredictionID string    `json:"prediction_id"`
	Text         string    `json:"text"`
	Label        string    `json:"prediction"`
	Probability  float64   `json:"probability"`
	ModelKind    string    `json:"model_kind"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store struct {
	db      *postgres.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
	insert  func(ctx context.Context, r Record) error
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewStore builds a store over db. m may be nil.
func NewStore(db *postgres.Client, cfg config.HistoryConfig, m *metrics.Metrics) *Store {
	s := &Store{
		db:      db,
		timeout: cfg.Timeout,
		metrics: m,
		logger:  slog.Default().With("component", "history"),
	}
	s.breaker = resilience.NewCircuitBreaker("history", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.MaxFailures,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	s.insert = s.insertRow
	return s
}

// EnsureSchema creates the table and its indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.Migrate(ctx, schema...); err != nil {
		return fmt.Errorf("ensuring history schema: %w", err)
	}
	return nil
}

// Save writes r through the circuit breaker with the configured deadline.
func (s *Store) Save(ctx context.Context, r Record) error {
	err := s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.timeout, "history-save", func(ctx context.Context) error {
			return s.insert(ctx, r)
		})
	})
	status := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = "rejected"
	case err != nil:
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.HistoryWritesTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		return fmt.Errorf("saving prediction %s: %w", r.PredictionID, err)
	}
	return nil
}

// SaveAsync runs Save in the background, detached from ctx's cancellation
// so a finished request does not abort its own history write.
func (s *Store) SaveAsync(ctx context.Context, r Record) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Save(ctx, r); err != nil {
			s.logger.Warn("history write dropped", "prediction_id", r.PredictionID, "error", err)
		}
	}()
}

// Wait blocks until every SaveAsync call has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) insertRow(ctx context.Context, r Record) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO sentiment_analysis (prediction_id, text, prediction, probability, model_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (prediction_id) DO NOTHING`,
		r.PredictionID, r.Text, r.Label, r.Probability, r.ModelKind, r.CreatedAt.UTC(),
	)
	return err
}

// LabelStats summarizes one sentiment.
type LabelStats struct {
	Count          int64   `json:"count"`
	Percentage     float64 `json:"percentage"`
	AvgProbability float64 `json:"avg_probability"`
}

type Stats struct {
	Total          int64                 `json:"total"`
	ByLabel        map[string]LabelStats `json:"by_label"`
	AvgProbability float64               `json:"avg_probability"`
}

type labelRow struct {
	label   string
	count   int64
	probSum float64
}

// Stats aggregates every stored prediction within the store deadline.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	return resilience.Call(ctx, s.timeout, "history-stats", s.queryStats)
}

func (s *Store) queryStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT prediction, COUNT(*), COALESCE(SUM(probability), 0)
		FROM sentiment_analysis GROUP BY prediction`)
	if err != nil {
		return Stats{}, fmt.Errorf("querying history stats: %w", err)
	}
	defer rows.Close()
	var groups []labelRow
	for rows.Next() {
		var g labelRow
		if err := rows.Scan(&g.label, &g.count, &g.probSum); err != nil {
			return Stats{}, fmt.Errorf("scanning stats row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterating stats rows: %w", err)
	}
	return summarize(groups), nil
}

// summarize turns per-label sums into Stats. Every known sentiment is
// present, with zeros when it has never been predicted; percentages are in
// [0,100] and rounded to two places.
func summarize(groups []labelRow) Stats {
	st := Stats{ByLabel: make(map[string]LabelStats, len(dataset.All))}
	for _, s := range dataset.All {
		st.ByLabel[string(s)] = LabelStats{}
	}
	var probSum float64
	for _, g := range groups {
		st.Total += g.count
		probSum += g.probSum
	}
	if st.Total == 0 {
		return st
	}
	st.AvgProbability = round(probSum/float64(st.Total), 4)
	for _, g := range groups {
		ls := LabelStats{Count: g.count, Percentage: round(100*float64(g.count)/float64(st.Total), 2)}
		if g.count > 0 {
			ls.AvgProbability = round(g.probSum/float64(g.count), 4)
		}
		st.ByLabel[g.label] = ls
	}
	return st
}

// Recent returns the latest predictions, newest first. limit is clamped to
// [1, MaxRecentLimit].
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	limit = ClampLimit(limit)
	return resilience.Call(ctx, s.timeout, "history-recent", func(ctx context.Context) ([]Record, error) {
		return s.queryRecent(ctx, limit)
	})
}

func (s *Store) queryRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, prediction_id, text, prediction, probability, model_kind, created_at
		FROM sentiment_analysis ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent predictions: %w", err)
	}
	defer rows.Close()
	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.PredictionID, &r.Text, &r.Label, &r.Probability, &r.ModelKind, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return min(limit, MaxRecentLimit)
}

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// BreakerState exposes the write breaker for health reporting.
func (s *Store) BreakerState() resilience.State {
	return s.breaker.GetState()
}

// WriteCheck reports whether history writes are currently flowing.
func (s *Store) WriteCheck(ctx context.Context) health.ComponentHealth {
	return s.breaker.Check(ctx)
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
