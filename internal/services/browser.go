package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/eventwave/internal/geo"
	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/repositories"
	"example.com/eventwave/internal/validation"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidRadius is returned for a radius outside (0, 500] km
	ErrInvalidRadius = errors.New("search radius must be greater than 0 and at most 500 km")
	// ErrUnknownCategory is returned for a category filter that is not offered
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidLocation is returned for coordinates out of range
	ErrInvalidLocation = errors.New("invalid location")
)

// ProviderReported names fixes reported by clients
const ProviderReported = "reported"

// BrowserState is what the client currently looks at
type BrowserState struct {
	Location      *models.Location `json:"location,omitempty"`
	RadiusKm      float64          `json:"radius_km"`
	Category      string           `json:"category"`
	FavoritesOnly bool             `json:"favorites_only"`
	Query         string           `json:"query,omitempty"`
}

// Browser holds the presentation state and derives the visible event list
type Browser struct {
	svc   *EventService
	prefs *preferences.Preferences
	now   func() time.Time

	mu    sync.RWMutex
	state BrowserState
}

// NewBrowser restores the radius and last reported location from preferences
func NewBrowser(ctx context.Context, svc *EventService, prefs *preferences.Preferences) (*Browser, error) {
	radius, err := prefs.SearchRadius(ctx)
	if err != nil {
		return nil, err
	}
	fix, err := prefs.LastLocation(ctx)
	if err != nil {
		return nil, err
	}

	b := &Browser{
		svc:   svc,
		prefs: prefs,
		now:   time.Now,
		state: BrowserState{
			RadiusKm: radius,
			Category: models.CategoryAll,
		},
	}
	if fix != nil {
		loc := fix.Location
		b.state.Location = &loc
	}
	return b, nil
}

// State returns a copy of the current state
func (b *Browser) State() BrowserState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := b.state
	if st.Location != nil {
		loc := *st.Location
		st.Location = &loc
	}
	return st
}

// SetLocation records the user position and refreshes around it
func (b *Browser) SetLocation(ctx context.Context, loc models.Location) error {
	if err := validation.ValidateLocation(loc); err != nil {
		return errors.Wrap(ErrInvalidLocation, err.Error())
	}

	b.mu.Lock()
	b.state.Location = &loc
	b.mu.Unlock()

	fix := models.Fix{Location: loc, Provider: ProviderReported, Time: b.now().UTC()}
	if err := b.prefs.SetLastLocation(ctx, fix); err != nil {
		return err
	}

	b.triggerRefresh()
	return nil
}

// ClearLocation forgets the position, as when permission is revoked
func (b *Browser) ClearLocation() {
	b.mu.Lock()
	b.state.Location = nil
	b.mu.Unlock()
}

// SetSearchRadius validates, persists and refreshes
func (b *Browser) SetSearchRadius(ctx context.Context, km float64) error {
	if km <= 0 || km > validation.MaxSearchRadiusKm {
		return ErrInvalidRadius
	}
	if err := b.prefs.SetSearchRadius(ctx, km); err != nil {
		return err
	}

	b.mu.Lock()
	b.state.RadiusKm = km
	b.mu.Unlock()

	b.triggerRefresh()
	return nil
}

// SetCategory changes the category filter and refreshes
func (b *Browser) SetCategory(category string) error {
	if !validation.IsKnownCategory(category) {
		return errors.Wrap(ErrUnknownCategory, category)
	}
	if category == "" {
		category = models.CategoryAll
	}

	b.mu.Lock()
	b.state.Category = category
	b.mu.Unlock()

	b.triggerRefresh()
	return nil
}

// SetFavoritesOnly switches the favorites filter and refreshes
func (b *Browser) SetFavoritesOnly(on bool) {
	b.mu.Lock()
	b.state.FavoritesOnly = on
	b.mu.Unlock()

	b.triggerRefresh()
}

// ToggleFavoritesOnly flips the favorites filter and returns the new value
func (b *Browser) ToggleFavoritesOnly() bool {
	b.mu.Lock()
	b.state.FavoritesOnly = !b.state.FavoritesOnly
	on := b.state.FavoritesOnly
	b.mu.Unlock()

	b.triggerRefresh()
	return on
}

// SetQuery sets the title filter. It does not refresh.
func (b *Browser) SetQuery(query string) {
	b.mu.Lock()
	b.state.Query = strings.TrimSpace(query)
	b.mu.Unlock()
}

// Refresh runs a synchronous refresh around the current location
func (b *Browser) Refresh(ctx context.Context) Status {
	return b.svc.Refresh(ctx, b.State().Location)
}

func (b *Browser) triggerRefresh() {
	b.svc.RefreshAsync(b.State().Location)
}

// Visible returns the events the client should display: the base
// selection inside the search radius, nearest first, then the title filter.
func (b *Browser) Visible(ctx context.Context) ([]models.Event, error) {
	st := b.State()

	filter := repositories.EventFilter{FavoritesOnly: st.FavoritesOnly}
	if !st.FavoritesOnly && !models.IsAllCategories(st.Category) {
		filter.Category = st.Category
	}
	if st.Location != nil {
		box := geo.BoundingBoxAround(*st.Location, st.RadiusKm)
		filter.Area = &box
	}

	events, err := b.svc.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	if st.Location != nil {
		events = withinRadius(events, *st.Location, st.RadiusKm)
	}

	if st.Query != "" {
		events = b.matchQuery(ctx, events, st.Query)
	}
	return events, nil
}

// Watch emits the visible list now and after every store change
func (b *Browser) Watch(ctx context.Context) <-chan []models.Event {
	return b.svc.Watch(ctx, b.Visible)
}

func (b *Browser) matchQuery(ctx context.Context, events []models.Event, query string) []models.Event {
	ids, ok, err := b.svc.SearchTitles(ctx, query)
	if ok && err == nil {
		hits := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			hits[id] = struct{}{}
		}
		matched := events[:0]
		for _, e := range events {
			if _, hit := hits[e.ID]; hit {
				matched = append(matched, e)
			}
		}
		return matched
	}
	if err != nil {
		log.Warn().Err(err).Msg("Title search failed, falling back to substring match")
	}

	matched := events[:0]
	for _, e := range events {
		if e.MatchesQuery(query) {
			matched = append(matched, e)
		}
	}
	return matched
}

// withinRadius keeps events no farther than radiusKm, sets their distance
// and sorts them nearest first
func withinRadius(events []models.Event, center models.Location, radiusKm float64) []models.Event {
	kept := events[:0]
	for _, e := range events {
		d := geo.DistanceKm(center, e.Location())
		if d <= radiusKm {
			e.Distance = d
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Distance < kept[j].Distance
	})
	return kept
}

// ToggleFavorite flips one event's favorite flag
func (b *Browser) ToggleFavorite(ctx context.Context, id string) (*models.Event, error) {
	return b.svc.ToggleFavorite(ctx, id)
}

// View records an event in the history and returns it
func (b *Browser) View(ctx context.Context, id string) (*models.Event, error) {
	return b.svc.ViewEvent(ctx, id)
}

// History returns the viewing history
func (b *Browser) History(ctx context.Context) ([]models.Event, error) {
	return b.svc.History(ctx)
}

// ClearHistory empties the viewing history
func (b *Browser) ClearHistory(ctx context.Context) error {
	return b.svc.ClearHistory(ctx)
}

// ClearCache drops stored events and cache markers
func (b *Browser) ClearCache(ctx context.Context) error {
	return b.svc.ClearCache(ctx)
}

// Status returns the refresh status
func (b *Browser) Status() Status {
	return b.svc.Status()
}
