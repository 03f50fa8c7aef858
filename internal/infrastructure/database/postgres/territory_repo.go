package postgres

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// querier is the subset of pgx satisfied by both the pool and a transaction,
// so the same query code runs inside and outside WithinSlotTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the SQLSTATE for duplicate-key errors.
const uniqueViolation = "23505"

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == code
}

// TerritoryRepository persists territories.  Geometry is stored as GeoJSON
// with denormalized bounding-box columns for index-assisted range queries.
type TerritoryRepository struct {
	q querier
}

// NewTerritoryRepository creates a repository backed by the given pool.
func NewTerritoryRepository(pool *Pool) *TerritoryRepository {
	return &TerritoryRepository{q: pool.Pgx()}
}

const territoryColumns = `id, tenant_id, name, geometry, area_km2, version, created_at, updated_at`

func scanTerritory(row pgx.Row) (*territory.Territory, error) {
	var (
		t       territory.Territory
		geoJSON []byte
	)
	err := row.Scan(&t.ID, &t.TenantID, &t.Name, &geoJSON, &t.AreaKm2, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Geometry, err = geometry.UnmarshalGeoJSON(geoJSON)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "stored territory geometry is unreadable")
	}
	return &t, nil
}

// Create inserts a new territory.
func (r *TerritoryRepository) Create(ctx context.Context, t *territory.Territory) error {
	geoJSON, err := t.Geometry.MarshalGeoJSON()
	if err != nil {
		return err
	}
	bound, _ := t.Geometry.Bound()

	_, err = r.q.Exec(ctx, `
		INSERT INTO territories
			(id, tenant_id, name, geometry, area_km2, version,
			 min_lon, min_lat, max_lon, max_lat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.TenantID, t.Name, geoJSON, t.AreaKm2, t.Version,
		bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1],
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isPgCode(err, uniqueViolation) {
			return errors.Conflict("territory already exists").WithDetail("id=" + string(t.ID))
		}
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert territory")
	}
	return nil
}

// GetByID loads one territory.
func (r *TerritoryRepository) GetByID(ctx context.Context, id common.ID) (*territory.Territory, error) {
	row := r.q.QueryRow(ctx, `SELECT `+territoryColumns+` FROM territories WHERE id = $1`, id)
	t, err := scanTerritory(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeTerritoryNotFound, "territory not found").
				WithDetail("id=" + string(id))
		}
		if errors.IsCode(err, errors.CodeDatabaseError) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load territory")
	}
	return t, nil
}

// Update rewrites a territory, including its geometry and bbox columns.
func (r *TerritoryRepository) Update(ctx context.Context, t *territory.Territory) error {
	geoJSON, err := t.Geometry.MarshalGeoJSON()
	if err != nil {
		return err
	}
	bound, _ := t.Geometry.Bound()

	tag, err := r.q.Exec(ctx, `
		UPDATE territories SET
			name = $2, geometry = $3, area_km2 = $4, version = $5,
			min_lon = $6, min_lat = $7, max_lon = $8, max_lat = $9,
			updated_at = $10
		WHERE id = $1`,
		t.ID, t.Name, geoJSON, t.AreaKm2, t.Version,
		bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1],
		t.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update territory")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeTerritoryNotFound, "territory not found").
			WithDetail("id=" + string(t.ID))
	}
	return nil
}

// ListByTenant returns a tenant's territories, newest first.
func (r *TerritoryRepository) ListByTenant(ctx context.Context, tenantID common.TenantID, page common.Pagination) ([]*territory.Territory, int64, error) {
	page.Normalize()

	var total int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM territories WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to count territories")
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+territoryColumns+` FROM territories
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		tenantID, page.PageSize, page.Offset(),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to list territories")
	}
	defer rows.Close()

	var out []*territory.Territory
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan territory")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to read territories")
	}
	return out, total, nil
}

// Delete removes a territory.
func (r *TerritoryRepository) Delete(ctx context.Context, id common.ID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM territories WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete territory")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeTerritoryNotFound, "territory not found").
			WithDetail("id=" + string(id))
	}
	return nil
}
