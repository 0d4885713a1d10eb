package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
)

// Event is one message to publish. Key picks the partition; Value is
// encoded as JSON. Prediction events are keyed by label so each label's
// stream stays ordered.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON-encoded events to a single topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		Compression:            kafka.Zstd,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch writes events in one call. Events that cannot be encoded are
// dropped and logged; the rest are still sent.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	messages, skipped := encodeBatch(events)
	if skipped > 0 {
		p.logger.Warn("dropped unencodable events", "count", skipped)
	}
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing %d events to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func encodeBatch(events []Event) ([]kafka.Message, int) {
	messages := make([]kafka.Message, 0, len(events))
	skipped := 0
	for _, ev := range events {
		value, err := json.Marshal(ev.Value)
		if err != nil {
			skipped++
			continue
		}
		messages = append(messages, kafka.Message{Key: []byte(ev.Key), Value: value})
	}
	return messages, skipped
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
