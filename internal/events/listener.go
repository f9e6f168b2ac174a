package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/encoding/json"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// MessageReader is the subset of *kafka.Reader used by the listener.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// RunFunc runs one requested analysis.
type RunFunc func(ctx context.Context, params domain.SearchParams) error

// ListenerConfig holds configuration for the request listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic carries EventAnalysisRequested envelopes.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// RequestListener consumes analysis requests and runs them one at a time.
type RequestListener struct {
	reader MessageReader
	run    RunFunc
	logger zerolog.Logger
}

// NewRequestListener creates a listener backed by a kafka.Reader.
func NewRequestListener(cfg ListenerConfig, run RunFunc, logger zerolog.Logger) *RequestListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return NewRequestListenerWithReader(reader, run, logger)
}

// NewRequestListenerWithReader creates a listener on an existing reader.
func NewRequestListenerWithReader(reader MessageReader, run RunFunc, logger zerolog.Logger) *RequestListener {
	return &RequestListener{
		reader: reader,
		run:    run,
		logger: logger.With().Str("component", "request_listener").Logger(),
	}
}

// Run reads requests until ctx is cancelled. Malformed messages and failed
// runs are logged and skipped.
func (l *RequestListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting request listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("request listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received analysis request")

		params, ok := l.decode(msg)
		if !ok {
			continue
		}

		if err := l.run(ctx, params); err != nil && !errors.Is(err, domain.ErrNoData) {
			l.logger.Error().Err(err).
				Str("query", params.Query).
				Msg("requested analysis failed")
		}
	}
}

func (l *RequestListener) decode(msg kafka.Message) (domain.SearchParams, bool) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		l.logger.Error().Err(err).
			Str("raw_value", string(msg.Value)).
			Msg("failed to unmarshal envelope")
		return domain.SearchParams{}, false
	}
	if env.EventType != EventAnalysisRequested {
		l.logger.Debug().Str("event_type", env.EventType).Msg("ignoring event")
		return domain.SearchParams{}, false
	}

	var payload AnalysisRequestedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		l.logger.Error().Err(err).
			Str("event_id", env.EventID).
			Msg("failed to unmarshal analysis request")
		return domain.SearchParams{}, false
	}
	return payload.Params, true
}

// Close closes the Kafka reader.
func (l *RequestListener) Close() error {
	l.logger.Info().Msg("closing request listener")
	return l.reader.Close()
}
