package services

import (
	"context"
	"testing"
	"time"

	"example.com/eventwave/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeIndex answers title searches from a fixed id list
type fakeIndex struct {
	ids     []string
	indexed int
	cleared bool
}

func (f *fakeIndex) IndexEvents(_ context.Context, events []models.Event) error {
	f.indexed += len(events)
	return nil
}

func (f *fakeIndex) SearchTitles(context.Context, string) ([]string, error) {
	return f.ids, nil
}

func (f *fakeIndex) DeleteAll(context.Context) error {
	f.cleared = true
	return nil
}

func newBrowser(t *testing.T, f *fixture) *Browser {
	b, err := NewBrowser(context.Background(), f.svc, f.prefs)
	require.NoError(t, err)
	return b
}

func seedAroundParis(t *testing.T, f *fixture) {
	near := models.Location{Latitude: 48.8600, Longitude: 2.3500}   // ~0.4 km
	mid := models.Location{Latitude: 48.8800, Longitude: 2.3522}    // ~2.6 km
	corner := models.Location{Latitude: 48.8966, Longitude: 2.4122} // inside the 5 km box, ~6 km away
	far := models.Location{Latitude: 45.7640, Longitude: 4.8357}    // Lyon

	jazz := event("jazz", models.CategoryMusic, mid)
	jazz.Title = "Jazz Night"
	rock := event("rock", models.CategoryMusic, near)
	rock.Title = "Rock Festival"
	rock.Favorite = true
	match := event("match", models.CategorySport, near)
	match.Title = "Football Match"

	require.NoError(t, f.repo.InsertAll(context.Background(), []models.Event{
		jazz,
		rock,
		match,
		event("corner", models.CategoryMusic, corner),
		event("lyon", models.CategoryMusic, far),
	}))
}

func TestNewBrowserRestoresPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.SetSearchRadius(ctx, 12))
	require.NoError(t, f.prefs.SetLastLocation(ctx, models.Fix{Location: paris, Provider: ProviderReported, Time: time.Now()}))

	st := newBrowser(t, f).State()

	assert.Equal(t, 12.0, st.RadiusKm)
	require.NotNil(t, st.Location)
	assert.Equal(t, paris, *st.Location)
	assert.Equal(t, models.CategoryAll, st.Category)
}

func TestVisibleFiltersByRadiusAndSortsByDistance(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	b := newBrowser(t, f)
	b.state.Location = &paris

	events, err := b.Visible(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"rock", "match", "jazz"}, models.IDs(events))
	assert.Equal(t, "jazz", events[2].ID)
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Distance, events[i].Distance)
	}
	assert.InDelta(t, 2.6, events[2].Distance, 0.1)
}

func TestVisibleWithoutLocationReturnsEverything(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	b := newBrowser(t, f)

	events, err := b.Visible(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 5)
	for _, e := range events {
		assert.Zero(t, e.Distance)
	}
}

func TestVisibleFavoritesOnlyBeatsCategory(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	b := newBrowser(t, f)
	b.state.Location = &paris
	// filter changes must not trigger a refresh here
	require.NoError(t, f.svc.Close())

	require.NoError(t, b.SetCategory(models.CategorySport))
	events, err := b.Visible(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"match"}, models.IDs(events))

	assert.True(t, b.ToggleFavoritesOnly())
	events, err = b.Visible(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rock"}, models.IDs(events))
}

func TestVisibleQueryFallsBackToSubstring(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	b := newBrowser(t, f)
	b.state.Location = &paris

	b.SetQuery("  JAZZ ")
	events, err := b.Visible(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz"}, models.IDs(events))
}

func TestVisibleQueryUsesIndex(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	index := &fakeIndex{ids: []string{"match", "lyon"}}
	svc := NewEventService(f.repo, f.fetcher, f.prefs, WithSearchIndex(index))
	defer svc.Close()
	b, err := NewBrowser(context.Background(), svc, f.prefs)
	require.NoError(t, err)
	b.state.Location = &paris

	b.SetQuery("anything")
	events, err := b.Visible(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"match"}, models.IDs(events))
}

func TestSetSearchRadiusValidates(t *testing.T) {
	f := newFixture(t)
	b := newBrowser(t, f)
	ctx := context.Background()

	assert.ErrorIs(t, b.SetSearchRadius(ctx, 0), ErrInvalidRadius)
	assert.ErrorIs(t, b.SetSearchRadius(ctx, 501), ErrInvalidRadius)

	require.NoError(t, b.SetSearchRadius(ctx, 500))
	assert.Equal(t, 500.0, b.State().RadiusKm)

	saved, err := f.prefs.SearchRadius(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500.0, saved)
}

func TestSetCategoryRejectsUnknown(t *testing.T) {
	f := newFixture(t)
	b := newBrowser(t, f)

	assert.ErrorIs(t, b.SetCategory("Opéra"), ErrUnknownCategory)
	assert.Equal(t, models.CategoryAll, b.State().Category)

	require.NoError(t, b.SetCategory(""))
	assert.Equal(t, models.CategoryAll, b.State().Category)
}

func TestSetLocationPersistsAndRefreshes(t *testing.T) {
	f := newFixture(t)
	f.fetcher.On("Fetch", mock.Anything, mock.MatchedBy(func(loc *models.Location) bool {
		return loc != nil && *loc == paris
	})).Return([]models.Event{event("a", models.CategoryMusic, paris)}, nil).Once()
	b := newBrowser(t, f)
	ctx := context.Background()

	require.NoError(t, b.SetLocation(ctx, paris))
	f.svc.Drain()

	fix, err := f.prefs.LastLocation(ctx)
	require.NoError(t, err)
	require.NotNil(t, fix)
	assert.Equal(t, ProviderReported, fix.Provider)
	assert.Equal(t, paris, fix.Location)

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	f.fetcher.AssertExpectations(t)

	err = b.SetLocation(ctx, models.Location{Latitude: 91})
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestViewAddsToHistory(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	b := newBrowser(t, f)
	ctx := context.Background()

	_, err := b.View(ctx, "jazz")
	require.NoError(t, err)
	_, err = b.View(ctx, "rock")
	require.NoError(t, err)
	_, err = b.View(ctx, "jazz")
	require.NoError(t, err)

	history, err := b.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz", "rock"}, models.IDs(history))
}

func TestWatchEmitsVisibleList(t *testing.T) {
	f := newFixture(t)
	seedAroundParis(t, f)
	b := newBrowser(t, f)
	b.state.Location = &paris

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := b.Watch(ctx)

	select {
	case events := <-updates:
		assert.Len(t, events, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial emission")
	}

	_, err := b.ToggleFavorite(context.Background(), "jazz")
	require.NoError(t, err)

	select {
	case events := <-updates:
		require.Len(t, events, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("no emission after change")
	}
}
