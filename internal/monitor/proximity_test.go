package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/database/databasetest"
	"example.com/eventwave/internal/metrics"
	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/notify"
	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/repositories"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

var paris = models.Location{Latitude: 48.8566, Longitude: 2.3522}

type fixture struct {
	repo     repositories.EventRepository
	prefs    *preferences.Preferences
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	db := databasetest.Open(t)
	f := &fixture{
		repo:     repositories.NewEventRepository(db),
		prefs:    preferences.New(preferences.NewDatabaseStore(repositories.NewSettingRepository(db)), 0),
		notifier: &recordingNotifier{},
		metrics:  metrics.NewMetrics(),
	}

	at := func(id string, lat, lon float64) models.Event {
		return models.Event{ID: id, Title: "Event " + id, VenueName: "Venue", Latitude: lat, Longitude: lon}
	}
	require.NoError(t, f.repo.InsertAll(context.Background(), []models.Event{
		at("near", 48.8600, 2.3500),
		at("mid", 48.8800, 2.3522),
		at("corner", 48.8966, 2.4122), // in the box, outside the circle
		at("lyon", 45.7640, 4.8357),
	}))
	return f
}

func (f *fixture) monitor(providers ...LocationProvider) *Monitor {
	return New(f.repo, f.prefs, providers, f.notifier, f.metrics, nil, time.Hour)
}

func TestTickDoesNothingWhenNotificationsDisabled(t *testing.T) {
	f := newFixture(t)
	m := f.monitor(NewStaticProvider(paris))

	n, err := m.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.notifier.count())
}

func TestTickWithoutLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.SetNotificationsEnabled(ctx, true))
	m := f.monitor(NewReportedProvider(f.prefs))

	n, err := m.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTickNotifiesEventsWithinRadius(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.SetNotificationsEnabled(ctx, true))
	m := f.monitor(NewStaticProvider(paris))

	n, err := m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids := []string{f.notifier.sent[0].EventID, f.notifier.sent[1].EventID}
	assert.ElementsMatch(t, []string{"near", "mid"}, ids)
	for _, sent := range f.notifier.sent {
		assert.Equal(t, notify.TemplateNearby, sent.Template)
		assert.Equal(t, notify.Key(sent.EventID), sent.Key)
		assert.LessOrEqual(t, sent.Distance, preferences.DefaultSearchRadiusKm)
	}

	// repeat ticks reuse the same keys
	_, err = m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.notifier.sent[0].Key, f.notifier.sent[2].Key)

	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Counter(metrics.NotificationsSent)))
}

func TestTickHonoursSearchRadius(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.SetNotificationsEnabled(ctx, true))
	require.NoError(t, f.prefs.SetSearchRadius(ctx, 1))

	n, err := f.monitor(NewStaticProvider(paris)).Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "near", f.notifier.sent[0].EventID)
}

func TestTickStopsOnNotifierError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.SetNotificationsEnabled(ctx, true))
	f.notifier.err = errors.New("queue unavailable")

	n, err := f.monitor(NewStaticProvider(paris)).Tick(ctx)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestLastKnownPicksMostRecentFix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	static := NewStaticProvider(models.Location{Latitude: 40.71, Longitude: -74.0})
	reported := NewReportedProvider(f.prefs)

	fix := LastKnown(ctx, []LocationProvider{reported, static})
	require.NotNil(t, fix)
	assert.Equal(t, ProviderStatic, fix.Provider)

	require.NoError(t, f.prefs.SetLastLocation(ctx, models.Fix{
		Location: paris,
		Provider: ProviderReported,
		Time:     time.Now().Add(time.Minute),
	}))
	fix = LastKnown(ctx, []LocationProvider{static, reported})
	require.NotNil(t, fix)
	assert.Equal(t, ProviderReported, fix.Provider)
	assert.Equal(t, paris, fix.Location)

	assert.Nil(t, LastKnown(ctx, nil))
}

func TestNewProvidersFromConfig(t *testing.T) {
	f := newFixture(t)

	providers, err := NewProvidersFromConfig(config.MonitorConfig{
		LocationProviders: []string{ProviderReported, ProviderStatic},
		StaticLatitude:    paris.Latitude,
		StaticLongitude:   paris.Longitude,
	}, f.prefs)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, ProviderReported, providers[0].Name())
	assert.Equal(t, ProviderStatic, providers[1].Name())

	_, err = NewProvidersFromConfig(config.MonitorConfig{LocationProviders: []string{"gps"}}, f.prefs)
	assert.Error(t, err)
}

func TestStartRunsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.SetNotificationsEnabled(ctx, true))
	m := f.monitor(NewStaticProvider(paris))

	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx))

	assert.Eventually(t, func() bool { return f.notifier.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
}
