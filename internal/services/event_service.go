package services

import (
	"context"
	"sync"
	"time"

	"example.com/eventwave/internal/geo"
	"example.com/eventwave/internal/metrics"
	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/repositories"
	"example.com/eventwave/internal/sources"
	"example.com/eventwave/internal/tracing"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Status messages surfaced to clients
const (
	MsgNoLocation    = "unable to determine your location"
	MsgRefreshFailed = "failed to refresh events: "
	MsgDemoMode      = "Demo mode: the event service is unavailable, showing sample events"
)

const defaultPoolSize = 4

// EventFetcher returns the events around a location
type EventFetcher interface {
	Fetch(ctx context.Context, loc *models.Location) ([]models.Event, error)
}

// SearchIndex is an optional full-text index over stored events
type SearchIndex interface {
	IndexEvents(ctx context.Context, events []models.Event) error
	SearchTitles(ctx context.Context, text string) ([]string, error)
	DeleteAll(ctx context.Context) error
}

// Status is the refresh state exposed to clients
type Status struct {
	Loading     bool       `json:"loading"`
	Error       string     `json:"error,omitempty"`
	Warning     string     `json:"warning,omitempty"`
	DemoMode    bool       `json:"demo_mode"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
}

// EventService coordinates remote fetches with the local store and owns
// the refresh status. All writes to the store go through it.
type EventService struct {
	repo    repositories.EventRepository
	fetcher EventFetcher
	prefs   *preferences.Preferences
	index   SearchIndex
	tracer  tracing.Tracer
	metrics *metrics.Metrics
	now     func() time.Time

	refreshes singleflight.Group
	favMu     sync.Mutex

	pool     *errgroup.Group
	poolSize int
	baseCtx  context.Context
	cancel   context.CancelFunc

	mu     sync.RWMutex
	status Status
	closed bool
}

// Option configures an EventService
type Option func(*EventService)

// WithSearchIndex enables title search and indexing on refresh
func WithSearchIndex(index SearchIndex) Option {
	return func(s *EventService) { s.index = index }
}

// WithTracer sets the tracer
func WithTracer(t tracing.Tracer) Option {
	return func(s *EventService) { s.tracer = t }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *EventService) { s.metrics = m }
}

// WithPoolSize bounds concurrent async refreshes
func WithPoolSize(n int) Option {
	return func(s *EventService) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

// NewEventService creates a new event service
func NewEventService(repo repositories.EventRepository, fetcher EventFetcher, prefs *preferences.Preferences, opts ...Option) *EventService {
	s := &EventService{
		repo:     repo,
		fetcher:  fetcher,
		prefs:    prefs,
		poolSize: defaultPoolSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = tracing.Noop()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}

	s.pool = new(errgroup.Group)
	s.pool.SetLimit(s.poolSize)
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	if at, ok, err := prefs.LastRefresh(context.Background()); err == nil && ok {
		s.status.LastRefresh = &at
	}
	return s
}

// Status returns a snapshot of the refresh state
func (s *EventService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *EventService) updateStatus(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.mu.Unlock()
}

// Refresh fetches events around loc and merges them into the store.
// Failures end up in the returned Status, never as an error. Concurrent
// calls share one in-flight refresh.
func (s *EventService) Refresh(ctx context.Context, loc *models.Location) Status {
	if loc == nil {
		s.updateStatus(func(st *Status) {
			st.Error = MsgNoLocation
		})
		return s.Status()
	}

	target := *loc
	_, _, _ = s.refreshes.Do("refresh", func() (interface{}, error) {
		s.refresh(ctx, target)
		return nil, nil
	})
	return s.Status()
}

func (s *EventService) refresh(ctx context.Context, loc models.Location) {
	start := s.now()
	txn := s.tracer.StartTransaction("event-refresh")
	defer s.tracer.EndTransaction(txn)
	ctx = tracing.WithTransaction(ctx, txn)
	defer s.metrics.Since(metrics.Refresh, time.Now())

	s.updateStatus(func(st *Status) { st.Loading = true })
	defer s.updateStatus(func(st *Status) { st.Loading = false })

	logger := log.With().Float64("lat", loc.Latitude).Float64("lon", loc.Longitude).Logger()

	seg := s.tracer.StartSpan("fetch", txn)
	events, err := s.fetcher.Fetch(ctx, &loc)
	seg.End()
	if err != nil {
		s.refreshFailed(txn, err)
		return
	}

	seg = s.tracer.StartSpan("store", txn)
	err = s.repo.ReplaceAll(ctx, events)
	seg.End()
	if err != nil {
		s.refreshFailed(txn, err)
		return
	}

	demo := sources.ContainsSample(events)
	if demo {
		s.metrics.IncrementCounter(metrics.RefreshSampleEvents)
	}

	if err := s.prefs.SetLastRefresh(ctx, start); err != nil {
		logger.Warn().Err(err).Msg("Failed to record last refresh time")
	}
	if s.index != nil {
		if err := s.index.IndexEvents(ctx, events); err != nil {
			logger.Warn().Err(err).Msg("Failed to index events, title search may be stale")
		}
	}
	if count, err := s.repo.Count(ctx); err == nil {
		s.metrics.SetGauge(metrics.StoredEvents, count)
	}

	s.tracer.AddAttribute(txn, "events", len(events))
	s.tracer.AddAttribute(txn, "demo", demo)
	s.metrics.RecordSuccess(metrics.Refresh)
	logger.Info().Int("count", len(events)).Bool("demo", demo).Msg("Events refreshed")

	refreshedAt := start
	s.updateStatus(func(st *Status) {
		st.Error = ""
		st.DemoMode = demo
		st.Warning = ""
		if demo {
			st.Warning = MsgDemoMode
		}
		st.LastRefresh = &refreshedAt
	})
}

func (s *EventService) refreshFailed(txn *newrelic.Transaction, err error) {
	log.Error().Err(err).Msg("Event refresh failed")
	s.tracer.RecordError(txn, err)
	s.metrics.RecordError(metrics.Refresh)
	s.updateStatus(func(st *Status) {
		st.Error = MsgRefreshFailed + err.Error()
	})
}

// RefreshAsync submits a refresh to the worker pool. It blocks only while
// the pool is full, and does nothing once the service is closed.
func (s *EventService) RefreshAsync(loc *models.Location) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}

	var target *models.Location
	if loc != nil {
		copied := *loc
		target = &copied
	}
	s.metrics.IncrementCounter(metrics.PoolQueued)
	s.pool.Go(func() error {
		s.Refresh(s.baseCtx, target)
		return nil
	})
}

// Close waits for queued refreshes to finish
func (s *EventService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.pool.Wait()
	s.cancel()
	return err
}

// Drain waits for queued refreshes without closing the service
func (s *EventService) Drain() {
	_ = s.pool.Wait()
}

// ToggleFavorite flips the favorite flag of one event and returns the result
func (s *EventService) ToggleFavorite(ctx context.Context, id string) (*models.Event, error) {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	event.Favorite = !event.Favorite
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to toggle favorite")
	}
	return event, nil
}

// History returns the viewing history, newest first
func (s *EventService) History(ctx context.Context) ([]models.Event, error) {
	return s.prefs.History(ctx)
}

// SaveHistory replaces the viewing history
func (s *EventService) SaveHistory(ctx context.Context, events []models.Event) error {
	return s.prefs.SaveHistory(ctx, events)
}

// AddToHistory records event as the most recently viewed
func (s *EventService) AddToHistory(ctx context.Context, event models.Event) ([]models.Event, error) {
	return s.prefs.AddToHistory(ctx, event)
}

// ViewEvent looks up an event and records it in the history
func (s *EventService) ViewEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.prefs.AddToHistory(ctx, *event); err != nil {
		return nil, err
	}
	return event, nil
}

// ClearHistory empties the viewing history
func (s *EventService) ClearHistory(ctx context.Context) error {
	return s.prefs.ClearHistory(ctx)
}

// ClearCache drops every stored event, the history and the refresh marker
func (s *EventService) ClearCache(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.prefs.ClearCacheMarkers(ctx); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteAll(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear search index")
		}
	}
	s.metrics.SetGauge(metrics.StoredEvents, 0)
	s.updateStatus(func(st *Status) {
		st.LastRefresh = nil
		st.DemoMode = false
		st.Warning = ""
	})
	return nil
}

// SearchTitles returns ids of events whose title matches text. ok is false
// when no search index is configured.
func (s *EventService) SearchTitles(ctx context.Context, text string) (ids []string, ok bool, err error) {
	if s.index == nil {
		return nil, false, nil
	}
	ids, err = s.index.SearchTitles(ctx, text)
	return ids, true, err
}

// GetAll returns every stored event
func (s *EventService) GetAll(ctx context.Context) ([]models.Event, error) {
	return s.repo.GetAll(ctx)
}

// GetFavorites returns favorite events
func (s *EventService) GetFavorites(ctx context.Context) ([]models.Event, error) {
	return s.repo.GetFavorites(ctx)
}

// GetByCategory returns events of one category
func (s *EventService) GetByCategory(ctx context.Context, category string) ([]models.Event, error) {
	return s.repo.GetByCategory(ctx, category)
}

// GetInArea returns events inside box
func (s *EventService) GetInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error) {
	return s.repo.GetInArea(ctx, box)
}

// GetFavoritesInArea returns favorite events inside box
func (s *EventService) GetFavoritesInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error) {
	return s.repo.GetFavoritesInArea(ctx, box)
}

// GetByCategoryInArea returns events of one category inside box
func (s *EventService) GetByCategoryInArea(ctx context.Context, category string, box geo.BoundingBox) ([]models.Event, error) {
	return s.repo.GetByCategoryInArea(ctx, category, box)
}

// Find runs a filtered store query
func (s *EventService) Find(ctx context.Context, filter repositories.EventFilter) ([]models.Event, error) {
	return s.repo.Find(ctx, filter)
}

// GetByID returns one event
func (s *EventService) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Watch re-runs query after every store change until ctx is done
func (s *EventService) Watch(ctx context.Context, query repositories.EventQuery) <-chan []models.Event {
	return s.repo.Watch(ctx, query)
}
