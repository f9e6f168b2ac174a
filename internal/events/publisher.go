package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/encoding/json"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig configures a KafkaPublisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives every published event.
	Topic string
	// BatchSize bounds the writer batch. Zero uses the kafka-go default.
	BatchSize int
	// BatchTimeout bounds how long a partial batch waits.
	BatchTimeout time.Duration
	// Source is stamped on every envelope.
	Source string
}

// KafkaPublisher writes analysis events to a Kafka topic.
type KafkaPublisher struct {
	writer MessageWriter
	source string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg PublisherConfig, logger zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers are required", domain.ErrInvalidInput)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka topic is required", domain.ErrInvalidInput)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(writer, cfg.Source, logger), nil
}

// NewPublisherWithWriter creates a publisher on an existing writer.
func NewPublisherWithWriter(writer MessageWriter, source string, logger zerolog.Logger) *KafkaPublisher {
	if source == "" {
		source = defaultSource
	}
	return &KafkaPublisher{
		writer: writer,
		source: source,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// PublishAnalysisCompleted emits EventAnalysisCompleted for a.
func (p *KafkaPublisher) PublishAnalysisCompleted(ctx context.Context, a *domain.Analysis) error {
	if a == nil {
		return fmt.Errorf("%w: analysis is nil", domain.ErrInvalidInput)
	}
	return p.publish(ctx, EventAnalysisCompleted, a.ID.String(), CompletedPayload(a))
}

// PublishAnalysisRequested emits EventAnalysisRequested keyed by requestID.
func (p *KafkaPublisher) PublishAnalysisRequested(ctx context.Context, requestID string, params domain.SearchParams) error {
	return p.publish(ctx, EventAnalysisRequested, requestID, AnalysisRequestedPayload{Params: params})
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, key string, payload interface{}) error {
	env, err := NewEnvelope(eventType, key, p.source, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", env.EventID).
		Str("aggregate_id", key).
		Msg("published event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
