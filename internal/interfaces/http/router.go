package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deckscan/internal/interfaces/http/handlers"
	"github.com/turtacn/deckscan/internal/interfaces/http/middleware"
	"github.com/turtacn/deckscan/pkg/errors"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the route tree.
type RouterConfig struct {
	// Handlers
	ScanHandler   *handlers.ScanHandler
	HealthHandler *handlers.HealthHandler

	// Middleware
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	// Infrastructure
	Mode             string // gin mode: debug | release | test
	Logger           logging.Logger
	Metrics          *prometheus.ScanMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the gin engine: global middleware, probes, the metrics
// endpoint and the v1 scan API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: string(errors.ErrCodeNotFound), Message: "route not found"})
	})

	// --- Global middleware (applied to every request) ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))

	// --- Probes ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	// --- API v1 ---
	api := r.Group("/api/v1")
	api.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	registerScanRoutes(api, cfg.ScanHandler)

	return r
}

// registerScanRoutes mounts the scan endpoints.
func registerScanRoutes(r *gin.RouterGroup, h *handlers.ScanHandler) {
	if h == nil {
		return
	}
	r.POST("/scans", h.Scan)
	r.POST("/scans/batch", h.ScanBatch)
	r.GET("/engine", h.Engine)
	r.GET("/formats", h.Formats)
}
