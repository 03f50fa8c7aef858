// Package config defines all configuration structures for the territory
// allocation engine.  No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TenantHeader    string        `mapstructure:"tenant_header"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxConns         int           `mapstructure:"max_conns"`
	MinConns         int           `mapstructure:"min_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MigrationPath    string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the preview cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PreviewTTL   time.Duration `mapstructure:"preview_ttl"`
}

// KafkaConfig holds producer/consumer parameters for the event plane.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	CommitInterval  time.Duration `mapstructure:"commit_interval"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	RolloverInterval time.Duration `mapstructure:"rollover_interval"`
	RolloverBatch    int           `mapstructure:"rollover_batch"`
}

// PricingPolicyConfig configures one exclusive placement slot.  The set of
// valid slots is exactly the set of entries here; each slot independently
// enforces the non-overlap invariant.
type PricingPolicyConfig struct {
	Slot          string        `mapstructure:"slot"`
	RatePerKm2    float64       `mapstructure:"rate_per_km2"`
	FloorPrice    float64       `mapstructure:"floor_price"`
	Currency      string        `mapstructure:"currency"`
	MinAreaKm2    float64       `mapstructure:"min_area_km2"`
	BillingPeriod time.Duration `mapstructure:"billing_period"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Config is the root configuration structure for the engine.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Database DatabaseConfig        `mapstructure:"database"`
	Redis    RedisConfig           `mapstructure:"redis"`
	Kafka    KafkaConfig           `mapstructure:"kafka"`
	Worker   WorkerConfig          `mapstructure:"worker"`
	Pricing  []PricingPolicyConfig `mapstructure:"pricing"`
	Log      LogConfig             `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.TenantHeader == "" {
		return fmt.Errorf("config: server.tenant_header is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis.enabled is true")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	if c.Worker.RolloverInterval <= 0 {
		return fmt.Errorf("config: worker.rollover_interval must be positive")
	}
	if c.Worker.RolloverBatch < 1 {
		return fmt.Errorf("config: worker.rollover_batch must be ≥ 1, got %d", c.Worker.RolloverBatch)
	}

	if len(c.Pricing) == 0 {
		return fmt.Errorf("config: pricing must define at least one slot policy")
	}
	seen := make(map[string]bool, len(c.Pricing))
	for i, p := range c.Pricing {
		if p.Slot == "" {
			return fmt.Errorf("config: pricing[%d].slot is required", i)
		}
		if seen[p.Slot] {
			return fmt.Errorf("config: pricing slot %q is defined more than once", p.Slot)
		}
		seen[p.Slot] = true
		if p.RatePerKm2 < 0 {
			return fmt.Errorf("config: pricing[%d].rate_per_km2 must be ≥ 0", i)
		}
		if p.FloorPrice < 0 {
			return fmt.Errorf("config: pricing[%d].floor_price must be ≥ 0", i)
		}
		if p.Currency == "" {
			return fmt.Errorf("config: pricing[%d].currency is required", i)
		}
		if p.BillingPeriod <= 0 {
			return fmt.Errorf("config: pricing[%d].billing_period must be positive", i)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
