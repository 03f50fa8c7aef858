// Background worker entry point: billing-period rollover sweeps and the
// payment event consumer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/application/subscription"
	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/postgres"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/redis"
	"github.com/mapslot/territory-engine/internal/infrastructure/messaging/kafka"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
)

const (
	defaultConfigPath    = "configs/config.yaml"
	defaultRolloverEvery = time.Minute
	defaultRolloverBatch = 100
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using default configuration: %v\n", err)
		cfg = config.NewDefaultConfig()
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace: "territory",
		Subsystem: "worker",
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	territoryRepo := postgres.NewTerritoryRepository(pool)
	sponsorshipRepo := postgres.NewSponsorshipRepository(pool, logger, metrics)

	// The worker shares the preview cache with the API server so that
	// expirations invalidate stale previews for everyone.
	var cache availability.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cache = redis.NewPreviewCache(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.PreviewTTL, logger)
	}

	var publisher sponsorship.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		publisher = producer
	}

	pricer := pricing.NewEngine(pricing.NewPolicySet(cfg.Pricing))
	previews := availability.NewService(territoryRepo, sponsorshipRepo, pricer, cache, logger, metrics)
	subscriptions := subscription.NewService(sponsorshipRepo, previews, nil, publisher, logger, metrics)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewPaymentConsumer(kafka.ConsumerConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.Kafka.GroupID,
			CommitInterval: cfg.Kafka.CommitInterval,
		}, subscriptions, logger)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("payment consumer stopped", logging.Err(err))
			}
		}()
	}

	interval := cfg.Worker.RolloverInterval
	if interval <= 0 {
		interval = defaultRolloverEvery
	}
	batch := cfg.Worker.RolloverBatch
	if batch <= 0 {
		batch = defaultRolloverBatch
	}
	logger.Info("starting rollover loop",
		logging.Duration("interval", interval),
		logging.Int("batch", batch),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down worker")
			return nil
		case <-ticker.C:
			stats, err := subscriptions.Rollover(ctx, time.Now().UTC(), batch)
			if err != nil {
				logger.Error("rollover sweep failed", logging.Err(err))
				continue
			}
			if stats.Renewed+stats.Expired+stats.Failed > 0 {
				logger.Info("rollover sweep complete",
					logging.Int("renewed", stats.Renewed),
					logging.Int("expired", stats.Expired),
					logging.Int("failed", stats.Failed),
				)
			}
		}
	}
}
