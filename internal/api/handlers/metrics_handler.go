package handlers

import (
	"net/http"
	"runtime"

	"example.com/eventwave/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsHandler handles metrics-related HTTP requests
type MetricsHandler struct {
	metrics *metrics.Metrics
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// HandleGetHealthCheck returns the component health, 503 if any is down
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	status := http.StatusOK
	healthy := h.metrics.Healthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":         healthy,
		"details":        h.metrics.GetHealthChecks(),
		"uptime_seconds": h.metrics.GetUptimeSeconds(),
	})
}

// HandleGetMetrics serves the Prometheus exposition
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	h.metrics.SetGauge("goroutines", int64(runtime.NumGoroutine()))
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// RegisterRoutes registers the handler's routes. /metrics is skipped when
// exposeMetrics is false.
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine, exposeMetrics bool) {
	router.GET("/health", h.HandleGetHealthCheck)
	if exposeMetrics {
		router.GET("/metrics", h.HandleGetMetrics)
	}
}
