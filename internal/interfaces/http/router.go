// Package http serves the worker's ops surface: probes, metrics and scan
// reports.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dossier-engine/internal/interfaces/http/handlers"
	"github.com/turtacn/dossier-engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers mounted on the ops router.  Nil
// handlers are not mounted.
type RouterConfig struct {
	Mode             string
	HealthHandler    *handlers.HealthHandler
	ScanHandler      *handlers.ScanHandler
	MetricsCollector prometheus.MetricsCollector
	Recorder         middleware.RequestRecorder
	Logger           logging.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Recorder, middleware.DefaultLoggingConfig()))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}
	if cfg.ScanHandler != nil {
		scans := r.Group("/scans")
		scans.GET("/:tenant/last", cfg.ScanHandler.Last)
		scans.POST("/:tenant", cfg.ScanHandler.Trigger)
	}
	return r
}
