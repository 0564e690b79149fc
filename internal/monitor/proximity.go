// Package monitor periodically checks for stored events near the user and
// sends a notification for each of them.
package monitor

import (
	"context"
	"sync"
	"time"

	"example.com/eventwave/internal/geo"
	"example.com/eventwave/internal/metrics"
	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/notify"
	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the period between two ticks
const DefaultInterval = 30 * time.Minute

// AreaQuery is the part of the event store the monitor reads
type AreaQuery interface {
	GetInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error)
}

// Monitor notifies about stored events within the search radius
type Monitor struct {
	events    AreaQuery
	prefs     *preferences.Preferences
	providers []LocationProvider
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
	interval  time.Duration

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// New creates a monitor. A zero interval means DefaultInterval.
func New(events AreaQuery, prefs *preferences.Preferences, providers []LocationProvider,
	notifier notify.Notifier, metricsCollector *metrics.Metrics, tracer tracing.Tracer, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetrics()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Monitor{
		events:    events,
		prefs:     prefs,
		providers: providers,
		notifier:  notifier,
		metrics:   metricsCollector,
		tracer:    tracer,
		interval:  interval,
	}
}

// Tick runs one proximity check and returns the number of notifications sent
func (m *Monitor) Tick(ctx context.Context) (int, error) {
	m.metrics.IncrementCounter(metrics.MonitorTicks)

	enabled, err := m.prefs.NotificationsEnabled(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read notification preference")
	}
	if !enabled {
		return 0, nil
	}

	fix := LastKnown(ctx, m.providers)
	if fix == nil {
		log.Debug().Msg("No location available, skipping proximity check")
		return 0, nil
	}

	radius, err := m.prefs.SearchRadius(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read search radius")
	}

	txn := m.tracer.StartTransaction("proximity-tick")
	defer m.tracer.EndTransaction(txn)

	events, err := m.events.GetInArea(ctx, geo.BoundingBoxAround(fix.Location, radius))
	if err != nil {
		m.tracer.RecordError(txn, err)
		return 0, errors.Wrap(err, "failed to query nearby events")
	}

	sent := 0
	for _, e := range events {
		d := geo.DistanceKm(fix.Location, e.Location())
		if d > radius {
			continue
		}
		if err := m.notifier.Notify(ctx, notify.NearbyAlert(e, d)); err != nil {
			m.tracer.RecordError(txn, err)
			return sent, errors.Wrapf(err, "failed to notify event %s", e.ID)
		}
		sent++
	}

	m.metrics.IncrementCounterBy(metrics.NotificationsSent, int64(sent))
	m.tracer.AddAttribute(txn, "notifications", sent)
	log.Info().
		Str("provider", fix.Provider).
		Float64("radius_km", radius).
		Int("notified", sent).
		Msg("Proximity check done")
	return sent, nil
}

// Start schedules Tick every interval, first run immediately. Ticks never
// overlap.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduler != nil {
		return errors.New("monitor already started")
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() {
			if _, err := m.Tick(ctx); err != nil {
				m.metrics.RecordError(metrics.MonitorTicks)
				log.Error().Err(err).Msg("Proximity check failed")
				return
			}
			m.metrics.RecordSuccess(metrics.MonitorTicks)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("proximity-monitor"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return errors.Wrap(err, "failed to schedule proximity check")
	}

	scheduler.Start()
	m.scheduler = scheduler
	log.Info().Dur("interval", m.interval).Msg("Proximity monitor started")
	return nil
}

// Stop removes the schedule and waits for a running tick
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduler == nil {
		return nil
	}
	err := m.scheduler.Shutdown()
	m.scheduler = nil
	return err
}
