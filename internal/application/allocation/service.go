// Package allocation implements the concurrency-critical reserve path: the
// single place where a sponsorship row is created, under a transaction that
// recomputes availability against committed state.
package allocation

import (
	"context"
	"time"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// ReserveRequest carries the inputs of one reserve attempt.  There is no
// geometry parameter: the buyer purchases whatever remainder exists at
// commit time, never a client-supplied shape.
type ReserveRequest struct {
	TenantID       common.TenantID
	TerritoryID    common.ID
	Slot           common.Slot
	IdempotencyKey string
}

// ReserveResult is the outcome of a successful (or idempotently replayed)
// reserve.
type ReserveResult struct {
	Sponsorship *sponsorship.Sponsorship
	Quote       pricing.Quote
	// Idempotent is true when the request matched a prior committed
	// reservation and no new row was created.
	Idempotent bool
}

// Service is the allocation transaction coordinator.
type Service struct {
	territories  territory.Repository
	sponsorships sponsorship.TxRepository
	pricer       *pricing.Engine
	previews     *availability.Service
	publisher    sponsorship.EventPublisher
	logger       logging.Logger
	metrics      *prometheus.AppMetrics
}

// NewService wires an allocation service.
func NewService(
	territories territory.Repository,
	sponsorships sponsorship.TxRepository,
	pricer *pricing.Engine,
	previews *availability.Service,
	publisher sponsorship.EventPublisher,
	logger logging.Logger,
	metrics *prometheus.AppMetrics,
) *Service {
	if publisher == nil {
		publisher = sponsorship.NopPublisher{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		territories:  territories,
		sponsorships: sponsorships,
		pricer:       pricer,
		previews:     previews,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
	}
}

// Reserve executes the reservation protocol:
//
//  1. Validate the request and the territory (before any transaction).
//  2. Inside the slot-serialized transaction, replay idempotent retries,
//     recompute the remainder against committed state, and reject a
//     sold-out slot with a conflict.
//  3. Insert a provisional sponsorship carrying exactly the recomputed
//     remainder and its freshly computed price.
//
// First committer wins; the loser's recompute sees an empty remainder and
// gets a conflict.  Payment confirmation arrives asynchronously and is
// handled by the subscription service.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	start := time.Now()
	result, err := s.reserve(ctx, req)
	prometheus.RecordReserve(s.metrics, string(req.Slot), reserveResultLabel(result, err), time.Since(start))
	return result, err
}

func (s *Service) reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	if req.TenantID == "" {
		return nil, errors.InvalidParam("tenant id is required")
	}
	if req.IdempotencyKey == "" {
		return nil, errors.New(errors.CodeIdempotencyKeyMissing, "idempotency key is required")
	}
	policy, err := s.pricer.Policies().Get(req.Slot)
	if err != nil {
		return nil, err
	}

	ter, err := s.territories.GetByID(ctx, req.TerritoryID)
	if err != nil {
		return nil, err
	}
	if err := ter.EnsureOwnedBy(req.TenantID); err != nil {
		return nil, err
	}
	if err := geometry.Validate(ter.Geometry); err != nil {
		return nil, err
	}

	var result *ReserveResult
	txErr := s.sponsorships.WithinSlotTx(ctx, req.Slot, func(ctx context.Context, repo sponsorship.Repository) error {
		r, err := s.reserveInTx(ctx, repo, req, ter, policy)
		result = r
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	if !result.Idempotent {
		s.previews.Invalidate(ctx, ter.ID)
		s.publish(ctx, sponsorship.NewEvent(sponsorship.EventReserved, result.Sponsorship))
		s.logger.Info("sponsorship reserved",
			logging.String("sponsorship_id", string(result.Sponsorship.ID)),
			logging.String("territory_id", string(ter.ID)),
			logging.String("slot", string(req.Slot)),
			logging.Float64("area_km2", result.Sponsorship.AreaKm2),
			logging.String("price", result.Sponsorship.Price.String()),
		)
	}
	return result, nil
}

func (s *Service) reserveInTx(
	ctx context.Context,
	repo sponsorship.Repository,
	req ReserveRequest,
	ter *territory.Territory,
	policy pricing.Policy,
) (*ReserveResult, error) {
	// A retried request returns the prior reservation unchanged, whatever
	// its current lifecycle state.
	if prior, err := repo.GetByIdempotencyKey(ctx, req.TenantID, req.IdempotencyKey); err == nil {
		if prior.TerritoryID != ter.ID || prior.Slot != req.Slot {
			return nil, errors.New(errors.CodeConflict, "idempotency key was used for a different reservation").
				WithDetail("idempotency_key=" + req.IdempotencyKey)
		}
		return &ReserveResult{
			Sponsorship: prior,
			Quote: pricing.Quote{
				Slot:          prior.Slot,
				AreaKm2:       prior.AreaKm2,
				Amount:        prior.Price,
				Currency:      prior.Currency,
				BillingPeriod: prior.BillingPeriod,
			},
			Idempotent: true,
		}, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	// Commit-time recompute against committed state.  The client's preview
	// is never consulted.  Competing claims anywhere in the slot count, not
	// just those carved from this territory.
	bound, ok := ter.Geometry.Bound()
	if !ok {
		return nil, errors.New(errors.CodeGeometryInvalid, "territory has no geometry").
			WithDetail("territory_id=" + string(ter.ID))
	}
	holders, err := repo.ListHoldingInBounds(ctx, req.Slot, bound)
	if err != nil {
		return nil, err
	}
	remainder, err := availability.Compute(ter.Geometry, availability.CompetingShapes(holders, req.TenantID))
	if err != nil {
		return nil, err
	}
	if remainder.IsEmpty() {
		return nil, errors.Conflict("slot sold out since preview").
			WithDetail("territory_id=" + string(ter.ID) + " slot=" + string(req.Slot))
	}

	quote, err := s.pricer.Quote(req.Slot, geometry.Area(remainder))
	if err != nil {
		return nil, err
	}

	sp, err := sponsorship.New(sponsorship.NewParams{
		TenantID:         req.TenantID,
		TerritoryID:      ter.ID,
		TerritoryVersion: ter.Version,
		Slot:             req.Slot,
		Geometry:         remainder,
		AreaKm2:          quote.AreaKm2,
		Price:            quote.Amount,
		Currency:         quote.Currency,
		IdempotencyKey:   req.IdempotencyKey,
		BillingPeriod:    policy.BillingPeriod,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, sp); err != nil {
		return nil, err
	}
	return &ReserveResult{Sponsorship: sp, Quote: quote}, nil
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

func reserveResultLabel(result *ReserveResult, err error) string {
	switch {
	case err == nil && result != nil && result.Idempotent:
		return prometheus.ResultIdempotent
	case err == nil:
		return prometheus.ResultReserved
	case errors.IsConflict(err):
		return prometheus.ResultConflict
	case errors.IsValidation(err) || errors.IsPolicy(err) || errors.IsNotFound(err),
		errors.IsCode(err, errors.CodeTerritoryNotOwned),
		errors.IsCode(err, errors.CodeIdempotencyKeyMissing):
		return prometheus.ResultRejected
	default:
		return prometheus.ResultError
	}
}
