package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/kafka"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

var _ Publisher = (*kafka.Producer)(nil)

// Collector buffers prediction events and flushes them to Kafka in batches,
// either when the buffer holds batchSize events or every flushInterval.
// Track never blocks the request path: when the buffer is at capacity the
// event is dropped.
type Collector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	capacity      int
	flushInterval time.Duration
	kick          chan struct{}
	done          chan struct{}
	dropped       int64
	logger        *slog.Logger
}

func NewCollector(pub Publisher, bufferSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	batch := min(100, bufferSize)
	return &Collector{
		publisher:     pub,
		buffer:        make([]kafka.Event, 0, batch),
		batchSize:     batch,
		capacity:      bufferSize,
		flushInterval: flushInterval,
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Start runs the flush loop until ctx is cancelled, then makes one final
// flush with a short deadline.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-c.kick:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"capacity", c.capacity,
		"flush_interval", c.flushInterval,
	)
}

// Track queues ev. Events are keyed by label.
func (c *Collector) Track(ev PredictionEvent) {
	c.mu.Lock()
	if len(c.buffer) >= c.capacity {
		c.dropped++
		c.mu.Unlock()
		c.logger.Warn("analytics event dropped (buffer full)")
		return
	}
	c.buffer = append(c.buffer, kafka.Event{Key: ev.Label, Value: ev})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to exit. The context passed to Start must
// be cancelled first.
func (c *Collector) Close() {
	<-c.done
}

// Pending returns the number of buffered events and how many have been
// dropped so far.
func (c *Collector) Pending() (buffered int, dropped int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer), c.dropped
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		// Re-queue ahead of newer events, bounded by capacity.
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if over := len(c.buffer) - c.capacity; over > 0 {
			c.buffer = c.buffer[:c.capacity]
			c.dropped += int64(over)
			c.logger.Warn("buffer overflow, events dropped", "dropped", over)
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("batch flushed", "events", len(batch))
}
