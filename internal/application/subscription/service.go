// Package subscription drives the sponsorship lifecycle after the reserve
// commit: asynchronous payment confirmation, cancellation, and the
// period-end rollover sweep.
package subscription

import (
	"context"
	"time"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// PaymentCharger is the renewal-charge port.  Initial purchases are
// confirmed asynchronously by the gateway; renewals are charged by the
// rollover sweep through this interface.
type PaymentCharger interface {
	Charge(ctx context.Context, s *sponsorship.Sponsorship) (paymentRef string, err error)
}

// NopCharger approves every renewal without charging anything.  Used in
// tests and environments without a gateway.
type NopCharger struct{}

func (NopCharger) Charge(_ context.Context, s *sponsorship.Sponsorship) (string, error) {
	return "nop-" + string(s.ID), nil
}

// Service owns every lifecycle transition after the reserve commit.
type Service struct {
	sponsorships sponsorship.Repository
	previews     *availability.Service
	charger      PaymentCharger
	publisher    sponsorship.EventPublisher
	logger       logging.Logger
	metrics      *prometheus.AppMetrics
}

// NewService wires a subscription service.
func NewService(
	sponsorships sponsorship.Repository,
	previews *availability.Service,
	charger PaymentCharger,
	publisher sponsorship.EventPublisher,
	logger logging.Logger,
	metrics *prometheus.AppMetrics,
) *Service {
	if charger == nil {
		charger = NopCharger{}
	}
	if publisher == nil {
		publisher = sponsorship.NopPublisher{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		sponsorships: sponsorships,
		previews:     previews,
		charger:      charger,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
	}
}

// ConfirmPayment applies a gateway confirmation to a provisional
// sponsorship: success activates it, failure cancels it and releases its
// geometry.  A repeated confirmation of an already-settled sponsorship is a
// duplicate, reported as CodePaymentDuplicate so webhook retries are
// distinguishable from real state errors.
func (s *Service) ConfirmPayment(ctx context.Context, id common.ID, succeeded bool, paymentRef string) (*sponsorship.Sponsorship, error) {
	sp, err := s.sponsorships.GetByID(ctx, id)
	if err != nil {
		prometheus.RecordPaymentEvent(s.metrics, "unknown_sponsorship")
		return nil, err
	}

	if sp.Status != sponsorship.StatusProvisional {
		prometheus.RecordPaymentEvent(s.metrics, "duplicate")
		return sp, errors.New(errors.CodePaymentDuplicate, "payment already settled").
			WithDetail("sponsorship_id=" + string(sp.ID) + " status=" + string(sp.Status))
	}

	if succeeded {
		if err := sp.Activate(paymentRef, time.Now().UTC()); err != nil {
			return nil, err
		}
		if err := s.sponsorships.Update(ctx, sp); err != nil {
			return nil, err
		}
		prometheus.RecordPaymentEvent(s.metrics, "succeeded")
		s.publish(ctx, sponsorship.NewEvent(sponsorship.EventActivated, sp))
		s.logger.Info("sponsorship activated",
			logging.String("sponsorship_id", string(sp.ID)),
			logging.String("payment_ref", paymentRef),
		)
		return sp, nil
	}

	if err := sp.FailPayment(paymentRef); err != nil {
		return nil, err
	}
	if err := s.sponsorships.Update(ctx, sp); err != nil {
		return nil, err
	}
	// The geometry is back on sale.
	s.previews.Invalidate(ctx, sp.TerritoryID)
	prometheus.RecordPaymentEvent(s.metrics, "failed")
	s.publish(ctx, sponsorship.NewEvent(sponsorship.EventCanceled, sp))
	s.logger.Info("sponsorship canceled after failed payment",
		logging.String("sponsorship_id", string(sp.ID)),
		logging.String("reason", paymentRef),
	)
	return sp, nil
}

// Cancel processes a sponsor's cancellation request.  Immediate
// cancellation releases the geometry at once; otherwise the sponsorship
// lapses at the end of the paid period.
func (s *Service) Cancel(ctx context.Context, tenantID common.TenantID, id common.ID, immediate bool) (*sponsorship.Sponsorship, error) {
	sp, err := s.sponsorships.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sp.TenantID != tenantID {
		// Do not reveal other tenants' sponsorship IDs.
		return nil, errors.New(errors.CodeSponsorshipNotFound, "sponsorship not found").
			WithDetail("sponsorship_id=" + string(id))
	}

	if immediate {
		if err := sp.CancelImmediately(); err != nil {
			return nil, err
		}
	} else {
		if err := sp.CancelAtPeriodEnd(); err != nil {
			return nil, err
		}
	}
	if err := s.sponsorships.Update(ctx, sp); err != nil {
		return nil, err
	}

	if immediate {
		s.previews.Invalidate(ctx, sp.TerritoryID)
		s.publish(ctx, sponsorship.NewEvent(sponsorship.EventCanceled, sp))
	} else {
		s.publish(ctx, sponsorship.NewEvent(sponsorship.EventLapsing, sp))
	}
	s.logger.Info("sponsorship cancellation processed",
		logging.String("sponsorship_id", string(sp.ID)),
		logging.Bool("immediate", immediate),
		logging.String("status", string(sp.Status)),
	)
	return sp, nil
}

// RolloverStats summarizes one sweep.
type RolloverStats struct {
	Renewed int
	Expired int
	Failed  int
}

// Rollover sweeps sponsorships whose paid period has ended: lapsing ones
// expire, active ones are charged for another period and either renew or
// expire.  Errors on individual rows are counted and logged, never fatal to
// the sweep.
func (s *Service) Rollover(ctx context.Context, now time.Time, batch int) (RolloverStats, error) {
	var stats RolloverStats

	due, err := s.sponsorships.ListDueForRollover(ctx, now, batch)
	if err != nil {
		return stats, err
	}

	for _, sp := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		switch sp.Status {
		case sponsorship.StatusCancelAtPeriodEnd:
			if err := s.expire(ctx, sp, now); err != nil {
				stats.Failed++
				continue
			}
			stats.Expired++
		case sponsorship.StatusActive:
			renewed, err := s.renewOrExpire(ctx, sp, now)
			if err != nil {
				stats.Failed++
				continue
			}
			if renewed {
				stats.Renewed++
			} else {
				stats.Expired++
			}
		}
	}

	if stats.Renewed+stats.Expired+stats.Failed > 0 {
		s.logger.Info("rollover sweep finished",
			logging.Int("renewed", stats.Renewed),
			logging.Int("expired", stats.Expired),
			logging.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

func (s *Service) expire(ctx context.Context, sp *sponsorship.Sponsorship, now time.Time) error {
	if err := sp.Expire(now); err != nil {
		s.rolloverError(sp, err)
		return err
	}
	if err := s.sponsorships.Update(ctx, sp); err != nil {
		s.rolloverError(sp, err)
		return err
	}
	s.previews.Invalidate(ctx, sp.TerritoryID)
	prometheus.RecordRollover(s.metrics, prometheus.RolloverExpired)
	s.publish(ctx, sponsorship.NewEvent(sponsorship.EventExpired, sp))
	return nil
}

func (s *Service) renewOrExpire(ctx context.Context, sp *sponsorship.Sponsorship, now time.Time) (bool, error) {
	ref, chargeErr := s.charger.Charge(ctx, sp)
	if chargeErr != nil {
		s.logger.Warn("renewal charge failed, expiring sponsorship",
			logging.String("sponsorship_id", string(sp.ID)),
			logging.Err(chargeErr),
		)
		if err := s.expire(ctx, sp, now); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := sp.Renew(ref); err != nil {
		s.rolloverError(sp, err)
		return false, err
	}
	if err := s.sponsorships.Update(ctx, sp); err != nil {
		s.rolloverError(sp, err)
		return false, err
	}
	prometheus.RecordRollover(s.metrics, prometheus.RolloverRenewed)
	s.publish(ctx, sponsorship.NewEvent(sponsorship.EventRenewed, sp))
	return true, nil
}

func (s *Service) rolloverError(sp *sponsorship.Sponsorship, err error) {
	prometheus.RecordRollover(s.metrics, prometheus.RolloverFailed)
	s.logger.Error("rollover failed for sponsorship",
		logging.String("sponsorship_id", string(sp.ID)),
		logging.Err(err),
	)
}

func (s *Service) publish(ctx context.Context, ev sponsorship.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish lifecycle event",
			logging.String("type", string(ev.Type)),
			logging.String("sponsorship_id", string(ev.SponsorID)),
			logging.Err(err),
		)
		return
	}
	prometheus.RecordEventPublished(s.metrics, string(ev.Type))
}
