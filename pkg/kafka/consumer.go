// Package kafka carries prediction events over Kafka using segmentio/kafka-go.
// Producers publish JSON-encoded batches; consumers hand each message to a
// MessageHandler, usually built with JSONHandler.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/health"
)

// ErrUndecodable marks a message whose value is not valid JSON for the
// expected type. Such messages are committed and skipped.
var ErrUndecodable = errors.New("undecodable kafka message")

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// JSONHandler decodes every message value into T before calling fn.
func JSONHandler[T any](fn func(ctx context.Context, v T) error) MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		v, err := DecodeJSON[T](value)
		if err != nil {
			return err
		}
		return fn(ctx, v)
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return result, nil
}

// Consumer reads messages from a topic in a consumer group and dispatches
// them to a MessageHandler, committing each one after it is handled.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler

	processed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	fetchErr  error
	fetchedAt time.Time
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start consumes until ctx is cancelled. Handler failures are logged and
// the message is still committed, so one bad event cannot stall a
// partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		c.recordFetch(err)
		if err != nil {
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.failed.Add(1)
			level := slog.LevelError
			if errors.Is(err, ErrUndecodable) {
				level = slog.LevelWarn
			}
			c.logger.Log(ctx, level, "failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			c.processed.Add(1)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) recordFetch(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchErr = err
	if err == nil {
		c.fetchedAt = time.Now()
	}
}

// Check reports the consumer as degraded while its last fetch failed.
func (c *Consumer) Check(context.Context) health.ComponentHealth {
	c.mu.Lock()
	fetchErr, fetchedAt := c.fetchErr, c.fetchedAt
	c.mu.Unlock()

	msg := fmt.Sprintf("processed=%d failed=%d lag=%d", c.processed.Load(), c.failed.Load(), c.reader.Stats().Lag)
	if fetchErr != nil {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: fetchErr.Error()}
	}
	if !fetchedAt.IsZero() {
		msg += " last_message=" + fetchedAt.UTC().Format(time.RFC3339)
	}
	return health.ComponentHealth{Status: health.StatusUp, Message: msg}
}

// Close closes the underlying reader. Start closes it on return as well.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
