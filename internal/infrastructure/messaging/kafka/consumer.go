package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// PaymentEvent is the gateway's confirmation message.
type PaymentEvent struct {
	Type          string    `json:"type"` // payment.confirmed | payment.failed
	SponsorshipID common.ID `json:"sponsorship_id"`
	PaymentRef    string    `json:"payment_ref"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentConfirmer is the application-side handler for gateway
// confirmations.  The subscription service implements it.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, id common.ID, succeeded bool, paymentRef string) (*sponsorship.Sponsorship, error)
}

// messageReader is the slice of kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentConsumer reads payment confirmations and applies them to
// sponsorships.  Messages that cannot be decoded or reference unknown
// sponsorships are committed anyway; redelivery would not fix them.
type PaymentConsumer struct {
	reader    messageReader
	confirmer PaymentConfirmer
	logger    logging.Logger
}

// ConsumerConfig holds reader parameters.
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	CommitInterval time.Duration
}

// NewPaymentConsumer builds a consumer for the payment events topic.
func NewPaymentConsumer(cfg ConsumerConfig, confirmer PaymentConfirmer, log logging.Logger) *PaymentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          TopicPaymentEvents,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    kafka.FirstOffset,
	})
	return newPaymentConsumer(reader, confirmer, log)
}

func newPaymentConsumer(reader messageReader, confirmer PaymentConfirmer, log logging.Logger) *PaymentConsumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PaymentConsumer{reader: reader, confirmer: confirmer, logger: log}
}

// Run consumes until the context is canceled.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, errors.CodeMessageQueueError, "failed to fetch payment event")
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, errors.CodeMessageQueueError, "failed to commit payment event")
		}
	}
}

func (c *PaymentConsumer) handle(ctx context.Context, msg kafka.Message) {
	var ev PaymentEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("discarding unreadable payment event",
			logging.Int64("offset", msg.Offset),
			logging.Err(err),
		)
		return
	}

	var succeeded bool
	switch ev.Type {
	case PaymentConfirmed:
		succeeded = true
	case PaymentFailed:
		succeeded = false
	default:
		c.logger.Warn("discarding payment event of unknown type",
			logging.String("type", ev.Type),
		)
		return
	}

	ref := ev.PaymentRef
	if !succeeded && ev.Reason != "" {
		ref = ev.Reason
	}
	if _, err := c.confirmer.ConfirmPayment(ctx, ev.SponsorshipID, succeeded, ref); err != nil {
		// Duplicates are expected under gateway retries; anything else is a
		// real processing failure worth surfacing in the logs.
		if errors.IsCode(err, errors.CodePaymentDuplicate) {
			c.logger.Debug("ignoring duplicate payment confirmation",
				logging.String("sponsorship_id", string(ev.SponsorshipID)),
			)
			return
		}
		c.logger.Error("failed to apply payment event",
			logging.String("sponsorship_id", string(ev.SponsorshipID)),
			logging.String("type", ev.Type),
			logging.Err(err),
		)
	}
}

// Close shuts the reader down.
func (c *PaymentConsumer) Close() error {
	return c.reader.Close()
}
