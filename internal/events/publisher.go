// Package events publishes workflow lifecycle events to Kafka so downstream
// services can react to pipeline progress without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Publisher delivers workflow lifecycle events.
type Publisher interface {
	// Publish delivers one event. Delivery is at-least-once; consumers must
	// deduplicate on EventID.
	Publish(ctx context.Context, event *domain.Event) error

	// Close flushes buffered messages and releases resources.
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher configuration.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic for lifecycle events.
	Topic string
	// BatchSize is the maximum number of messages buffered per batch.
	BatchSize int
	// BatchTimeout is the maximum time to wait before flushing a partial batch.
	BatchTimeout time.Duration
}

// KafkaPublisher publishes lifecycle events to a Kafka topic. Events are
// keyed by workflow ID so all events for one workflow land on the same
// partition in order.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// Compile-time interface verification.
var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish serializes the event and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.WorkflowID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("workflow_id", event.WorkflowID).
		Msg("event published")

	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards all events. Used when Kafka is disabled.
type NopPublisher struct{}

// Compile-time interface verification.
var _ Publisher = NopPublisher{}

// Publish discards the event.
func (NopPublisher) Publish(ctx context.Context, event *domain.Event) error { return nil }

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
