// Package api is the dashboard HTTP surface: read-only snapshots of the
// monitors plus the two import mutations.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/events"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/imports"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/status"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/terms"
)

// Router holds the API dependencies.
type Router struct {
	tracker *imports.Tracker
	chart   *events.Aggregator
	terms   *terms.Monitor
	canvas  *status.Monitor
	metrics *metrics.Metrics
	log     logger.Logger
	debug   bool
}

// NewRouter creates the dashboard router.
func NewRouter(
	tracker *imports.Tracker,
	chart *events.Aggregator,
	termMonitor *terms.Monitor,
	canvasMonitor *status.Monitor,
	m *metrics.Metrics,
	log logger.Logger,
	debug bool,
) *Router {
	return &Router{
		tracker: tracker,
		chart:   chart,
		terms:   termMonitor,
		canvas:  canvasMonitor,
		metrics: m,
		log:     log,
		debug:   debug,
	}
}

// Engine builds the gin engine with all routes attached.
func (r *Router) Engine() *gin.Engine {
	if !r.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", r.healthz)
	engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	v1 := engine.Group("/api/v1")
	v1.GET("/dashboard", r.getDashboard)
	v1.GET("/dashboard/imports", r.getImports)
	v1.GET("/dashboard/events", r.getEvents)
	v1.POST("/imports/:id/requeue", r.requeueImport)
	v1.POST("/imports/group", r.startGroupImport)

	return engine
}

// healthz is the liveness probe.
// GET /healthz
func (r *Router) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
