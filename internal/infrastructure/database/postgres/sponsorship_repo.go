package postgres

import (
	"context"
	stderrors "errors"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// SQLSTATEs that mean the transaction lost a concurrency race and is worth
// one retry.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// SponsorshipRepository persists sponsorships and serializes reservations
// per slot with transaction-scoped advisory locks.
type SponsorshipRepository struct {
	pool    *pgxpool.Pool
	q       querier
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewSponsorshipRepository creates a repository backed by the given pool.
func NewSponsorshipRepository(pool *Pool, logger logging.Logger, metrics *prometheus.AppMetrics) *SponsorshipRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SponsorshipRepository{
		pool:    pool.Pgx(),
		q:       pool.Pgx(),
		logger:  logger,
		metrics: metrics,
	}
}

// withQuerier returns a view of the repository bound to a transaction.
func (r *SponsorshipRepository) withQuerier(q querier) *SponsorshipRepository {
	return &SponsorshipRepository{pool: r.pool, q: q, logger: r.logger, metrics: r.metrics}
}

// slotLockKey hashes a slot name into the advisory-lock keyspace.  All
// reservations for one slot, across every territory and tenant, contend on
// the same key.
func slotLockKey(slot common.Slot) int64 {
	h := fnv.New64a()
	h.Write([]byte("territory-engine/slot/"))
	h.Write([]byte(slot))
	return int64(h.Sum64())
}

// WithinSlotTx runs fn inside a transaction that holds the advisory lock for
// the slot.  The lock is released on commit or rollback.  A transaction that
// fails with a serialization or deadlock SQLSTATE is retried once.
func (r *SponsorshipRepository) WithinSlotTx(ctx context.Context, slot common.Slot, fn func(ctx context.Context, repo sponsorship.Repository) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		lastErr = r.runSlotTx(ctx, slot, fn)
		if lastErr == nil {
			return nil
		}
		if !isPgCode(lastErr, serializationFailure) && !isPgCode(lastErr, deadlockDetected) {
			return lastErr
		}
		prometheus.RecordTxRetry(r.metrics, string(slot))
		r.logger.Warn("retrying slot transaction after serialization failure",
			logging.String("slot", string(slot)),
			logging.Err(lastErr),
		)
	}
	return errors.Wrap(lastErr, errors.CodeAllocationConflict, "slot transaction lost the commit race")
}

func (r *SponsorshipRepository) runSlotTx(ctx context.Context, slot common.Slot, fn func(ctx context.Context, repo sponsorship.Repository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(slot)); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to acquire slot lock")
	}

	if err := fn(ctx, r.withQuerier(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isPgCode(err, serializationFailure) || isPgCode(err, deadlockDetected) {
			return err
		}
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

const sponsorshipColumns = `id, tenant_id, territory_id, territory_version, slot, geometry,
	area_km2, price::text, currency, status, idempotency_key, payment_ref,
	period_start, period_end, billing_period_seconds, created_at, updated_at`

func scanSponsorship(row pgx.Row) (*sponsorship.Sponsorship, error) {
	var (
		s             sponsorship.Sponsorship
		geoJSON       []byte
		price         string
		periodSeconds int64
	)
	err := row.Scan(
		&s.ID, &s.TenantID, &s.TerritoryID, &s.TerritoryVersion, &s.Slot, &geoJSON,
		&s.AreaKm2, &price, &s.Currency, &s.Status, &s.IdempotencyKey, &s.PaymentRef,
		&s.PeriodStart, &s.PeriodEnd, &periodSeconds, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Geometry, err = geometry.UnmarshalGeoJSON(geoJSON)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "stored sponsorship geometry is unreadable")
	}
	s.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "stored sponsorship price is unreadable")
	}
	s.BillingPeriod = time.Duration(periodSeconds) * time.Second
	return &s, nil
}

// Create inserts a new sponsorship.  A duplicate idempotency key for the
// same tenant maps to CodeConflict.
func (r *SponsorshipRepository) Create(ctx context.Context, s *sponsorship.Sponsorship) error {
	geoJSON, err := s.Geometry.MarshalGeoJSON()
	if err != nil {
		return err
	}
	bound, _ := s.Geometry.Bound()

	_, err = r.q.Exec(ctx, `
		INSERT INTO sponsorships
			(id, tenant_id, territory_id, territory_version, slot, geometry,
			 area_km2, price, currency, status, idempotency_key, payment_ref,
			 period_start, period_end, billing_period_seconds,
			 min_lon, min_lat, max_lon, max_lat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		s.ID, s.TenantID, s.TerritoryID, s.TerritoryVersion, s.Slot, geoJSON,
		s.AreaKm2, s.Price.String(), s.Currency, s.Status, s.IdempotencyKey, s.PaymentRef,
		s.PeriodStart, s.PeriodEnd, int64(s.BillingPeriod/time.Second),
		bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1],
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isPgCode(err, uniqueViolation) {
			return errors.Conflict("sponsorship already exists").
				WithDetail("idempotency_key=" + s.IdempotencyKey)
		}
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert sponsorship")
	}
	return nil
}

// GetByID loads one sponsorship.
func (r *SponsorshipRepository) GetByID(ctx context.Context, id common.ID) (*sponsorship.Sponsorship, error) {
	row := r.q.QueryRow(ctx, `SELECT `+sponsorshipColumns+` FROM sponsorships WHERE id = $1`, id)
	s, err := scanSponsorship(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeSponsorshipNotFound, "sponsorship not found").
				WithDetail("id=" + string(id))
		}
		if errors.IsCode(err, errors.CodeDatabaseError) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load sponsorship")
	}
	return s, nil
}

// GetByIdempotencyKey looks up a prior reservation for replay.
func (r *SponsorshipRepository) GetByIdempotencyKey(ctx context.Context, tenantID common.TenantID, key string) (*sponsorship.Sponsorship, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+sponsorshipColumns+` FROM sponsorships
		WHERE tenant_id = $1 AND idempotency_key = $2`,
		tenantID, key,
	)
	s, err := scanSponsorship(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeSponsorshipNotFound, "no sponsorship for idempotency key")
		}
		if errors.IsCode(err, errors.CodeDatabaseError) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load sponsorship by key")
	}
	return s, nil
}

// Update rewrites a sponsorship's mutable lifecycle fields.
func (r *SponsorshipRepository) Update(ctx context.Context, s *sponsorship.Sponsorship) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sponsorships SET
			status = $2, payment_ref = $3, period_start = $4, period_end = $5,
			updated_at = $6
		WHERE id = $1`,
		s.ID, s.Status, s.PaymentRef, s.PeriodStart, s.PeriodEnd, s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update sponsorship")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeSponsorshipNotFound, "sponsorship not found").
			WithDetail("id=" + string(s.ID))
	}
	return nil
}

// ListHoldingInBounds returns every geometry-holding sponsorship in the slot
// whose bounding box intersects the given bound.  The bbox predicate is the
// coarse index filter; exact overlap is decided by the clipping layer.
func (r *SponsorshipRepository) ListHoldingInBounds(ctx context.Context, slot common.Slot, bound orb.Bound) ([]*sponsorship.Sponsorship, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+sponsorshipColumns+` FROM sponsorships
		WHERE slot = $1
		  AND status IN ('provisional', 'active', 'cancel_at_period_end')
		  AND max_lon >= $2 AND min_lon <= $3
		  AND max_lat >= $4 AND min_lat <= $5
		ORDER BY created_at, id`,
		slot, bound.Min[0], bound.Max[0], bound.Min[1], bound.Max[1],
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query holding sponsorships")
	}
	defer rows.Close()
	return collectSponsorships(rows)
}

// ListByTenant returns a tenant's sponsorships, newest first.
func (r *SponsorshipRepository) ListByTenant(ctx context.Context, tenantID common.TenantID, page common.Pagination) ([]*sponsorship.Sponsorship, int64, error) {
	page.Normalize()

	var total int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM sponsorships WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to count sponsorships")
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+sponsorshipColumns+` FROM sponsorships
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		tenantID, page.PageSize, page.Offset(),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to list sponsorships")
	}
	defer rows.Close()

	out, err := collectSponsorships(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListDueForRollover returns live sponsorships whose paid period ended at or
// before the cutoff, oldest first.
func (r *SponsorshipRepository) ListDueForRollover(ctx context.Context, cutoff time.Time, limit int) ([]*sponsorship.Sponsorship, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+sponsorshipColumns+` FROM sponsorships
		WHERE status IN ('active', 'cancel_at_period_end')
		  AND period_end <= $1
		ORDER BY period_end, id
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query due sponsorships")
	}
	defer rows.Close()
	return collectSponsorships(rows)
}

func collectSponsorships(rows pgx.Rows) ([]*sponsorship.Sponsorship, error) {
	var out []*sponsorship.Sponsorship
	for rows.Next() {
		s, err := scanSponsorship(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan sponsorship")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to read sponsorships")
	}
	return out, nil
}
