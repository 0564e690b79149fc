package preferences

import (
	"context"
	"sync"
	"time"

	"example.com/eventwave/internal/models"

	"github.com/pkg/errors"
)

// Preference keys
const (
	KeySearchRadius         = "search_radius"
	KeyNotificationsEnabled = "notifications_enabled"
	KeyHistory              = "history_events"
	KeyLastRefresh          = "last_refresh"
	KeyLastLocation         = "last_location"
)

const (
	DefaultSearchRadiusKm = 5.0
	DefaultHistorySize    = 50
)

// Preferences is the typed view over a Store
type Preferences struct {
	store      Store
	maxHistory int

	// serializes history read-modify-write
	historyMu sync.Mutex
}

// New creates typed preferences. maxHistory <= 0 selects the default.
func New(store Store, maxHistory int) *Preferences {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &Preferences{store: store, maxHistory: maxHistory}
}

// SearchRadius returns the radius in km, defaulting to 5
func (p *Preferences) SearchRadius(ctx context.Context) (float64, error) {
	radius := DefaultSearchRadiusKm
	if err := p.get(ctx, KeySearchRadius, &radius); err != nil {
		return DefaultSearchRadiusKm, err
	}
	return radius, nil
}

// SetSearchRadius persists the radius in km
func (p *Preferences) SetSearchRadius(ctx context.Context, km float64) error {
	return p.store.Set(ctx, KeySearchRadius, km)
}

// NotificationsEnabled defaults to false
func (p *Preferences) NotificationsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	if err := p.get(ctx, KeyNotificationsEnabled, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetNotificationsEnabled persists the notification switch
func (p *Preferences) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	return p.store.Set(ctx, KeyNotificationsEnabled, enabled)
}

// History returns the viewing history, newest first
func (p *Preferences) History(ctx context.Context) ([]models.Event, error) {
	history := []models.Event{}
	if err := p.get(ctx, KeyHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// SaveHistory replaces the history, keeping at most the configured number of entries
func (p *Preferences) SaveHistory(ctx context.Context, events []models.Event) error {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	return p.saveHistory(ctx, events)
}

// AddToHistory puts event at the front. An entry with the same id moves
// instead of duplicating; the oldest entries fall off past the cap.
func (p *Preferences) AddToHistory(ctx context.Context, event models.Event) ([]models.Event, error) {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	current, err := p.History(ctx)
	if err != nil {
		return nil, err
	}

	event.Distance = 0
	next := make([]models.Event, 0, len(current)+1)
	next = append(next, event)
	for _, e := range current {
		if !e.SameEvent(event) {
			next = append(next, e)
		}
	}

	if err := p.saveHistory(ctx, next); err != nil {
		return nil, err
	}
	return p.truncate(next), nil
}

// ClearHistory removes every history entry
func (p *Preferences) ClearHistory(ctx context.Context) error {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	return p.store.Delete(ctx, KeyHistory)
}

// LastRefresh returns the time of the last successful refresh, if any
func (p *Preferences) LastRefresh(ctx context.Context) (time.Time, bool, error) {
	var at time.Time
	err := p.store.Get(ctx, KeyLastRefresh, &at)
	if errors.Is(err, ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// SetLastRefresh records a successful refresh
func (p *Preferences) SetLastRefresh(ctx context.Context, at time.Time) error {
	return p.store.Set(ctx, KeyLastRefresh, at.UTC())
}

// LastLocation returns the last reported fix, or nil
func (p *Preferences) LastLocation(ctx context.Context) (*models.Fix, error) {
	var fix models.Fix
	err := p.store.Get(ctx, KeyLastLocation, &fix)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fix, nil
}

// SetLastLocation records a reported fix
func (p *Preferences) SetLastLocation(ctx context.Context, fix models.Fix) error {
	return p.store.Set(ctx, KeyLastLocation, fix)
}

// ClearCacheMarkers drops the history and the last refresh time
func (p *Preferences) ClearCacheMarkers(ctx context.Context) error {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	return p.store.Delete(ctx, KeyHistory, KeyLastRefresh)
}

// get treats a missing key as "keep the default already in value"
func (p *Preferences) get(ctx context.Context, key string, value interface{}) error {
	err := p.store.Get(ctx, key, value)
	if err == nil || errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return errors.Wrapf(err, "failed to read preference %s", key)
}

func (p *Preferences) saveHistory(ctx context.Context, events []models.Event) error {
	return p.store.Set(ctx, KeyHistory, p.truncate(events))
}

func (p *Preferences) truncate(events []models.Event) []models.Event {
	if events == nil {
		return []models.Event{}
	}
	if len(events) > p.maxHistory {
		return events[:p.maxHistory]
	}
	return events
}
