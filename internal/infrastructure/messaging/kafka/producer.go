package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/pkg/errors"
)

// messageWriter is the slice of kafka.Writer the producer needs.  Tests
// substitute a capturing fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes sponsorship lifecycle events.  It implements
// sponsorship.EventPublisher.
type Producer struct {
	writer messageWriter
	logger logging.Logger
}

// NewProducer builds a producer for the sponsorship events topic.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) *Producer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        TopicSponsorshipEvents,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  max(cfg.ProducerRetries, 1),
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(writer, log)
}

func newProducer(writer messageWriter, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Producer{writer: writer, logger: log}
}

// Publish writes one lifecycle event, keyed by sponsorship ID.
func (p *Producer) Publish(ctx context.Context, ev sponsorship.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode event")
	}

	msg := kafka.Message{
		Key:   []byte(ev.SponsorID),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to publish event")
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
