// Package postgres provides the pgx connection pool, schema migrations, and
// the persistent repository implementations.  All serialization of competing
// reservations happens here, through transactions and per-slot advisory
// locks, never through in-process synchronization.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/pkg/errors"
)

// Pool wraps the pgx connection pool with lifecycle management.
type Pool struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	once   sync.Once
}

// NewPool connects to PostgreSQL and verifies the connection before
// returning.  Callers should treat any error as fatal at startup.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to parse database config")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pc.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	pool, err := newPool(ctx, pc, log)
	if err != nil {
		return nil, err
	}
	pool.logger.Info("connected to PostgreSQL",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
	)
	return pool, nil
}

// NewPoolFromDSN connects using a raw connection URL.  Used by tests and
// tooling that already hold a DSN.
func NewPoolFromDSN(ctx context.Context, dsn string, log logging.Logger) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to parse database DSN")
	}
	return newPool(ctx, pc, log)
}

func newPool(ctx context.Context, pc *pgxpool.Config, log logging.Logger) (*Pool, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "database connection failed")
	}
	return &Pool{pool: pool, logger: log}, nil
}

// Pgx returns the underlying pgx pool.
func (p *Pool) Pgx() *pgxpool.Pool {
	return p.pool
}

// HealthCheck pings the database.
func (p *Pool) HealthCheck(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "database health check failed")
	}
	return nil
}

// Close shuts the pool down.  Safe to call more than once.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.pool.Close()
		p.logger.Info("closed PostgreSQL connection pool")
	})
}

// BuildDSN constructs the connection URL from the database config.
func BuildDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}

	q := u.Query()
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)
	if cfg.StatementTimeout > 0 {
		q.Set("statement_timeout", fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds()))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
