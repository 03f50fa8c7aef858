package config

import "time"

// ApplyDefaults fills every unset field of cfg with the platform default.
// It never overwrites a value that is already set.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.TenantHeader == "" {
		cfg.Server.TenantHeader = "X-Tenant-ID"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "territory"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "territory"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 25
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 5 * time.Minute
	}
	if cfg.Database.StatementTimeout == 0 {
		cfg.Database.StatementTimeout = 30 * time.Second
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "territory"
	}
	if cfg.Redis.PreviewTTL == 0 {
		cfg.Redis.PreviewTTL = 30 * time.Second
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "territory-engine"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.Kafka.CommitInterval == 0 {
		cfg.Kafka.CommitInterval = time.Second
	}

	if cfg.Worker.RolloverInterval == 0 {
		cfg.Worker.RolloverInterval = time.Minute
	}
	if cfg.Worker.RolloverBatch == 0 {
		cfg.Worker.RolloverBatch = 100
	}

	if len(cfg.Pricing) == 0 {
		cfg.Pricing = []PricingPolicyConfig{{
			Slot:          "featured",
			RatePerKm2:    15.0,
			FloorPrice:    1.0,
			Currency:      "USD",
			MinAreaKm2:    0,
			BillingPeriod: 30 * 24 * time.Hour,
		}}
	}
	for i := range cfg.Pricing {
		if cfg.Pricing[i].Currency == "" {
			cfg.Pricing[i].Currency = "USD"
		}
		if cfg.Pricing[i].BillingPeriod == 0 {
			cfg.Pricing[i].BillingPeriod = 30 * 24 * time.Hour
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// NewDefaultConfig returns a Config populated entirely from defaults.
// Intended for local development and tests.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
