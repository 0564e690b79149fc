package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventwave"

// Well-known metric names
const (
	Refresh             = "refresh"
	RefreshSampleEvents = "refresh_sample"
	StoredEvents        = "stored_events"
	MonitorTicks        = "monitor_tick"
	NotificationsSent   = "notifications_sent"
	PoolQueued          = "pool_queued"
	HTTPRequests        = "http_requests"
)

// Metrics is the main metrics collector. Values are exported through a
// private Prometheus registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	counters  *prometheus.CounterVec
	gauges    *prometheus.GaugeVec
	timers    *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	health    *prometheus.GaugeVec
	startTime time.Time

	mu           sync.RWMutex
	healthChecks map[string]bool
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Count of application events by name",
		}, []string{"name"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gauge",
			Help:      "Point-in-time application values by name",
		}, []string{"name"}),
		timers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of timed operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Operation outcomes for error rate tracking",
		}, []string{"name", "result"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_up",
			Help:      "Health status of a component (0 = unhealthy, 1 = healthy)",
		}, []string{"component"}),
		startTime:    time.Now(),
		healthChecks: make(map[string]bool),
	}

	m.registry.MustRegister(
		m.counters,
		m.gauges,
		m.timers,
		m.outcomes,
		m.health,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	if value < 0 {
		return
	}
	m.counters.WithLabelValues(name).Add(float64(value))
}

// Counter returns the named counter
func (m *Metrics) Counter(name string) prometheus.Counter {
	return m.counters.WithLabelValues(name)
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	m.gauges.WithLabelValues(name).Set(float64(value))
}

// RecordTimer records a timing measurement
func (m *Metrics) RecordTimer(name string, duration time.Duration) {
	m.timers.WithLabelValues(name).Observe(duration.Seconds())
}

// Since records the time elapsed from start. Meant for defer.
func (m *Metrics) Since(name string, start time.Time) {
	m.RecordTimer(name, time.Since(start))
}

// RecordSuccess records a successful operation for error rate tracking
func (m *Metrics) RecordSuccess(name string) {
	m.outcomes.WithLabelValues(name, "success").Inc()
}

// RecordError records an error for error rate tracking
func (m *Metrics) RecordError(name string) {
	m.outcomes.WithLabelValues(name, "error").Inc()
}

// SetHealth sets the health status of a component
func (m *Metrics) SetHealth(component string, isHealthy bool) {
	var value float64
	if isHealthy {
		value = 1
	}
	m.health.WithLabelValues(component).Set(value)

	m.mu.Lock()
	m.healthChecks[component] = isHealthy
	m.mu.Unlock()
}

// GetHealthChecks returns all health checks
func (m *Metrics) GetHealthChecks() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checks := make(map[string]bool, len(m.healthChecks))
	for name, ok := range m.healthChecks {
		checks[name] = ok
	}
	return checks
}

// Healthy reports whether every registered component is healthy
func (m *Metrics) Healthy() bool {
	for _, ok := range m.GetHealthChecks() {
		if !ok {
			return false
		}
	}
	return true
}

// GetUptimeSeconds returns the service uptime in seconds
func (m *Metrics) GetUptimeSeconds() int64 {
	return int64(time.Since(m.startTime).Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
