package event

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/config"
)

// Publisher delivers one outbox entry to the outside world.
type Publisher interface {
	Publish(ctx context.Context, entry *shared.OutboxEntry) error
	Close() error
}

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message headers carried with every event.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// KafkaPublisher writes entries to one topic keyed by aggregate id, so the
// events of one payment or invoice stay ordered within a partition.
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return NewKafkaPublisherWithWriter(w), nil
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes the entry payload with its identifying headers and the
// caller's trace context.
func (p *KafkaPublisher) Publish(ctx context.Context, entry *shared.OutboxEntry) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(entry.EventID.String())},
		{Key: HeaderEventType, Value: []byte(entry.EventType)},
		{Key: HeaderAggregateType, Value: []byte(entry.AggregateType)},
	}
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(entry.AggregateID.String()),
		Value:   entry.Payload,
		Headers: headers,
		Time:    entry.CreatedAt,
	})
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher logs entries instead of shipping them. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the entry.
func (p *LogPublisher) Publish(_ context.Context, entry *shared.OutboxEntry) error {
	p.logger.Info("billing event",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_type", entry.AggregateType),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.Time("occurred_at", entry.CreatedAt),
		zap.ByteString("payload", entry.Payload),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

// NewPublisher returns a Kafka publisher when Kafka is enabled, otherwise a
// LogPublisher.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return NewLogPublisher(logger), nil
	}
	return NewKafkaPublisher(cfg)
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
	_ Writer    = (*kafka.Writer)(nil)
)

// defaultPublishTimeout bounds one publish call.
const defaultPublishTimeout = 10 * time.Second
