// Package http assembles the gin route tree and the HTTP server.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/mapslot/territory-engine/internal/interfaces/http/handlers"
	"github.com/mapslot/territory-engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	Server config.ServerConfig

	TerritoryHandler   *handlers.TerritoryHandler
	SponsorshipHandler *handlers.SponsorshipHandler
	WebhookHandler     *handlers.WebhookHandler
	HealthHandler      *handlers.HealthHandler

	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
	Collector prometheus.MetricsCollector
}

// NewRouter builds the complete route tree.  Probes, metrics, and webhooks
// sit outside the tenant-scoped API group; everything under /api/v1 requires
// the tenant header.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(ginMode(cfg.Server.Mode))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Collector != nil {
		r.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}
	if cfg.WebhookHandler != nil {
		r.POST("/webhooks/payment", cfg.WebhookHandler.Payment)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Tenant(cfg.Server.TenantHeader))

	if th := cfg.TerritoryHandler; th != nil {
		api.POST("/territories", th.Create)
		api.GET("/territories", th.List)
		api.GET("/territories/:id", th.Get)
		api.PUT("/territories/:id", th.Rename)
		api.PUT("/territories/:id/geometry", th.Redraw)
		api.DELETE("/territories/:id", th.Delete)
		api.GET("/territories/:id/slots/:slot/preview", th.Preview)
	}
	if sh := cfg.SponsorshipHandler; sh != nil {
		api.POST("/territories/:id/slots/:slot/reserve", sh.Reserve)
		api.GET("/sponsorships", sh.List)
		api.GET("/sponsorships/:id", sh.Get)
		api.POST("/sponsorships/:id/cancel", sh.Cancel)
	}

	return r
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
