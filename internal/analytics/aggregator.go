package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/kafka"
)

const (
	maxLatencySamples   = 10000
	lowConfidenceCutoff = 0.6
)

type AggregatedStats struct {
	TotalPredictions     int64              `json:"total_predictions"`
	ByLabel              map[string]int64   `json:"by_label"`
	LabelShare           map[string]float64 `json:"label_share"`
	LabelConfidence      map[string]float64 `json:"label_avg_confidence"`
	ByModel              map[string]int64   `json:"by_model"`
	CacheHits            int64              `json:"cache_hits"`
	CacheMisses          int64              `json:"cache_misses"`
	CacheHitRate         float64            `json:"cache_hit_rate"`
	AvgConfidence        float64            `json:"avg_confidence"`
	LowConfidenceCount   int64              `json:"low_confidence_count"`
	AvgTextLength        float64            `json:"avg_text_length"`
	AvgLatencyUs         float64            `json:"avg_latency_us"`
	P50LatencyUs         int64              `json:"p50_latency_us"`
	P95LatencyUs         int64              `json:"p95_latency_us"`
	P99LatencyUs         int64              `json:"p99_latency_us"`
	PredictionsPerMinute float64            `json:"predictions_per_minute"`
	LastPredictionAt     *time.Time         `json:"last_prediction_at,omitempty"`
}

// Aggregator folds prediction events into running totals. Latency
// percentiles are computed over the most recent samples only.
type Aggregator struct {
	mu            sync.RWMutex
	total         int64
	byLabel       map[string]int64
	labelConfSum  map[string]float64
	byModel       map[string]int64
	cacheHits     int64
	confidenceSum float64
	lowConfidence int64
	textLenSum    int64
	latencies     []int64
	next          int
	last          time.Time
	startTime     time.Time
	now           func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byLabel:      make(map[string]int64),
		labelConfSum: make(map[string]float64),
		byModel:      make(map[string]int64),
		latencies:    make([]int64, 0, 1024),
		startTime:    time.Now(),
		now:          time.Now,
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages surface as kafka.ErrUndecodable and are skipped by the consumer.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return kafka.JSONHandler(func(_ context.Context, ev PredictionEvent) error {
		a.Record(ev)
		return nil
	})
}

func (a *Aggregator) Record(ev PredictionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.byLabel[ev.Label]++
	if ev.ModelKind != "" {
		a.byModel[ev.ModelKind]++
	}
	if ev.CacheHit {
		a.cacheHits++
	}
	a.confidenceSum += ev.Confidence
	a.labelConfSum[ev.Label] += ev.Confidence
	if ev.Confidence < lowConfidenceCutoff {
		a.lowConfidence++
	}
	a.textLenSum += int64(ev.TextLength)
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ev.LatencyUs)
	} else {
		a.latencies[a.next] = ev.LatencyUs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if ev.Timestamp.After(a.last) {
		a.last = ev.Timestamp
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalPredictions:   a.total,
		ByLabel:            make(map[string]int64, len(a.byLabel)),
		LabelShare:         make(map[string]float64, len(a.byLabel)),
		LabelConfidence:    make(map[string]float64, len(a.byLabel)),
		ByModel:            make(map[string]int64, len(a.byModel)),
		CacheHits:          a.cacheHits,
		CacheMisses:        a.total - a.cacheHits,
		LowConfidenceCount: a.lowConfidence,
	}
	for k, v := range a.byLabel {
		stats.ByLabel[k] = v
	}
	for k, v := range a.byModel {
		stats.ByModel[k] = v
	}
	if a.total > 0 {
		n := float64(a.total)
		for k, v := range a.byLabel {
			stats.LabelShare[k] = float64(v) / n
			stats.LabelConfidence[k] = a.labelConfSum[k] / float64(v)
		}
		stats.CacheHitRate = float64(a.cacheHits) / n
		stats.AvgConfidence = a.confidenceSum / n
		stats.AvgTextLength = float64(a.textLenSum) / n
		last := a.last
		stats.LastPredictionAt = &last
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.PredictionsPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
