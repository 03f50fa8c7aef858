package kafka

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

type fakeReader struct {
	messages  []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type confirmation struct {
	id        common.ID
	succeeded bool
	ref       string
}

type fakeConfirmer struct {
	calls []confirmation
	err   error
}

func (c *fakeConfirmer) ConfirmPayment(_ context.Context, id common.ID, succeeded bool, ref string) (*sponsorship.Sponsorship, error) {
	c.calls = append(c.calls, confirmation{id: id, succeeded: succeeded, ref: ref})
	return nil, c.err
}

func paymentMessage(t *testing.T, ev PaymentEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestPaymentConsumer_AppliesEvents(t *testing.T) {
	confirmer := &fakeConfirmer{}
	reader := &fakeReader{messages: []kafka.Message{
		paymentMessage(t, PaymentEvent{Type: PaymentConfirmed, SponsorshipID: "sp-1", PaymentRef: "pay-1"}),
		paymentMessage(t, PaymentEvent{Type: PaymentFailed, SponsorshipID: "sp-2", Reason: "card_declined"}),
	}}
	c := newPaymentConsumer(reader, confirmer, nil)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, confirmer.calls, 2)
	assert.Equal(t, confirmation{id: "sp-1", succeeded: true, ref: "pay-1"}, confirmer.calls[0])
	assert.Equal(t, confirmation{id: "sp-2", succeeded: false, ref: "card_declined"}, confirmer.calls[1])
	assert.Len(t, reader.committed, 2)
}

func TestPaymentConsumer_SkipsBadMessages(t *testing.T) {
	confirmer := &fakeConfirmer{}
	reader := &fakeReader{messages: []kafka.Message{
		{Value: []byte("{not json")},
		paymentMessage(t, PaymentEvent{Type: "payment.refunded", SponsorshipID: "sp-1"}),
	}}
	c := newPaymentConsumer(reader, confirmer, nil)

	_ = c.Run(context.Background())

	// Both poison messages are committed without reaching the confirmer.
	assert.Empty(t, confirmer.calls)
	assert.Len(t, reader.committed, 2)
}

func TestPaymentConsumer_DuplicateIsNotFatal(t *testing.T) {
	confirmer := &fakeConfirmer{err: errors.New(errors.CodePaymentDuplicate, "already settled")}
	reader := &fakeReader{messages: []kafka.Message{
		paymentMessage(t, PaymentEvent{Type: PaymentConfirmed, SponsorshipID: "sp-1", PaymentRef: "pay-1"}),
	}}
	c := newPaymentConsumer(reader, confirmer, nil)

	_ = c.Run(context.Background())
	assert.Len(t, reader.committed, 1)
}
