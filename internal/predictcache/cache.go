// Package predictcache memoizes predictions in Redis. Keys are scoped by
// the serving model's id so a new artifact never sees stale answers, and
// concurrent misses for the same text are collapsed with singleflight.
package predictcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/inference"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/redis"
)

const keyPrefix = "sentiment:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		logger:  slog.Default().With("component", "prediction-cache"),
	}
}

func (c *Cache) get(ctx context.Context, key string) (inference.Prediction, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return inference.Prediction{}, false
	}
	var p inference.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return inference.Prediction{}, false
	}
	return p, true
}

func (c *Cache) set(ctx context.Context, key string, p inference.Prediction) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached prediction for text under modelID, or
// calls compute and stores its result. The boolean reports a cache hit.
// Errors from compute are returned as is and never cached; cache failures
// only cost a recomputation.
//
// Concurrent misses share one flight. The flight runs detached from any
// caller's cancellation and each caller waits on its own ctx, so a leader
// that times out does not fail the followers.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	modelID, text string,
	compute func(ctx context.Context) (inference.Prediction, error),
) (inference.Prediction, bool, error) {
	key := buildKey(modelID, text)
	if p, ok := c.get(ctx, key); ok {
		c.recordHit()
		p.Timestamp = c.now().UTC()
		return p, true, nil
	}
	c.recordMiss()
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		p, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.set(flightCtx, key, p)
		return p, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return inference.Prediction{}, false, res.Err
		}
		return res.Val.(inference.Prediction), false, nil
	case <-ctx.Done():
		return inference.Prediction{}, false, fmt.Errorf("%w: waiting for prediction: %v", apperrors.ErrTimeout, ctx.Err())
	}
}

// Invalidate removes every cached prediction and returns how many keys
// were deleted.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (c *Cache) Stats() Stats {
	h, m := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: h, Misses: m}
	if h+m > 0 {
		s.HitRate = float64(h) / float64(h+m)
	}
	return s
}

func (c *Cache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(modelID, text string) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fmt.Sprintf("%s%s:%x", keyPrefix, modelID, h.Sum(nil)[:16])
}
