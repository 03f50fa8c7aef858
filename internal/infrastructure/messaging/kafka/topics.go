// Package kafka carries the engine's event plane: lifecycle events flow out
// through the producer, payment gateway confirmations flow in through the
// consumer.
package kafka

// Topic names.  Lifecycle events are partitioned by sponsorship ID so each
// sponsorship's transitions stay ordered; payment confirmations arrive on a
// separate topic written by the gateway integration.
const (
	TopicSponsorshipEvents = "territory.sponsorship-events"
	TopicPaymentEvents     = "territory.payment-events"
)

// Payment event types accepted from the gateway.
const (
	PaymentConfirmed = "payment.confirmed"
	PaymentFailed    = "payment.failed"
)
