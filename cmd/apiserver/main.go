// API server entry point for the territory engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mapslot/territory-engine/internal/application/allocation"
	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/application/subscription"
	"github.com/mapslot/territory-engine/internal/application/territories"
	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/postgres"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/redis"
	"github.com/mapslot/territory-engine/internal/infrastructure/messaging/kafka"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/mapslot/territory-engine/internal/interfaces/http"
	"github.com/mapslot/territory-engine/internal/interfaces/http/handlers"
)

const (
	defaultConfigPath      = "configs/config.yaml"
	defaultShutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using default configuration: %v\n", err)
		cfg = config.NewDefaultConfig()
	}
	if *port > 0 {
		cfg.Server.Port = *port
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
		logger.Error("API server exited", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting territory engine API server",
		logging.Int("port", cfg.Server.Port),
		logging.Int("pricing_policies", len(cfg.Pricing)),
	)

	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "territory",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	territoryRepo := postgres.NewTerritoryRepository(pool)
	sponsorshipRepo := postgres.NewSponsorshipRepository(pool, logger, metrics)

	checks := map[string]handlers.HealthChecker{"postgres": pool}

	var cache availability.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cache = redis.NewPreviewCache(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.PreviewTTL, logger)
		checks["redis"] = redisClient
	}

	var publisher sponsorship.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		publisher = producer
	}

	pricer := pricing.NewEngine(pricing.NewPolicySet(cfg.Pricing))
	previews := availability.NewService(territoryRepo, sponsorshipRepo, pricer, cache, logger, metrics)
	territoryService := territories.NewService(territoryRepo, previews, logger)
	allocator := allocation.NewService(territoryRepo, sponsorshipRepo, pricer, previews, publisher, logger, metrics)
	subscriptions := subscription.NewService(sponsorshipRepo, previews, nil, publisher, logger, metrics)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Server: cfg.Server,

		TerritoryHandler:   handlers.NewTerritoryHandler(territoryService, previews),
		SponsorshipHandler: handlers.NewSponsorshipHandler(allocator, subscriptions, sponsorshipRepo),
		WebhookHandler:     handlers.NewWebhookHandler(subscriptions),
		HealthHandler:      handlers.NewHealthHandler(checks),

		Logger:    logger,
		Metrics:   metrics,
		Collector: collector,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
