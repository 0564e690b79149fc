package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configWithProvider(provider string) config.SourcesConfig {
	return config.SourcesConfig{Provider: provider, Timeout: time.Second}
}

const tmPayload = `{
  "_embedded": {
    "events": [
      {
        "id": "G5vYZ9ZQ1f",
        "name": "Daft Punk Live",
        "images": [
          {"url": "https://img/small.jpg", "width": 100, "height": 56},
          {"url": "https://img/large.jpg", "width": 1024, "height": 576}
        ],
        "dates": {"start": {"dateTime": "2025-07-14T19:30:00Z"}},
        "classifications": [{"segment": {"name": "Music"}}],
        "_embedded": {
          "venues": [{
            "name": "Accor Arena",
            "city": {"name": "Paris"},
            "location": {"latitude": "48.8386", "longitude": "2.3786"}
          }]
        }
      },
      {
        "id": "bare",
        "name": "No details",
        "images": [{"url": "https://img/only.jpg", "width": 10, "height": 10}],
        "_embedded": {"venues": [{"name": "Somewhere", "location": {"latitude": "n/a", "longitude": ""}}]}
      }
    ]
  }
}`

func TestTicketmasterSearch(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tmPayload))
	}))
	defer srv.Close()

	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	src := newTicketmasterSource(config.TicketmasterConfig{BaseURL: srv.URL, APIKey: "secret"}, srv.Client())
	src.now = func() time.Time { return now }

	events, err := src.Search(context.Background(), Query{
		Location:    models.Location{Latitude: 48.85, Longitude: 2.35},
		CountryCode: "FR",
		Start:       now,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.NotNil(t, got)
	assert.Equal(t, "/discovery/v2/events.json", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "secret", q.Get("apikey"))
	assert.Equal(t, "48.85,2.35", q.Get("latlong"))
	assert.Equal(t, "50", q.Get("radius"))
	assert.Equal(t, "miles", q.Get("unit"))
	assert.Equal(t, "20", q.Get("size"))
	assert.Equal(t, "0", q.Get("page"))
	assert.Equal(t, "date,asc", q.Get("sort"))
	assert.Equal(t, "FR", q.Get("countryCode"))
	assert.Equal(t, "2025-07-01T08:00:00Z", q.Get("startDateTime"))

	full := events[0]
	assert.Equal(t, "G5vYZ9ZQ1f", full.ID)
	assert.Equal(t, "Daft Punk Live", full.Title)
	assert.Equal(t, "Event Music in Paris", full.Description)
	assert.Equal(t, "https://img/large.jpg", full.ImageURL)
	assert.Equal(t, models.CategoryMusic, full.Category)
	assert.Equal(t, "Accor Arena, Paris", full.VenueName)
	assert.InDelta(t, 48.8386, full.Latitude, 1e-9)
	assert.InDelta(t, 2.3786, full.Longitude, 1e-9)
	assert.Equal(t, time.Date(2025, 7, 14, 19, 30, 0, 0, time.UTC).UnixMilli(), full.StartDate)
	assert.False(t, full.Favorite)

	bare := events[1]
	assert.Equal(t, "https://img/only.jpg", bare.ImageURL)
	assert.Equal(t, models.CategoryEvent, bare.Category)
	assert.Zero(t, bare.Latitude)
	assert.Zero(t, bare.Longitude)
	assert.Equal(t, now.UnixMilli(), bare.StartDate)
}

func TestTicketmasterOmitsCountryWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["countryCode"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src := newTicketmasterSource(config.TicketmasterConfig{BaseURL: srv.URL}, srv.Client())
	events, err := src.Search(context.Background(), Query{Location: models.Location{Latitude: 1, Longitude: 1}})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTicketmasterNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := newTicketmasterSource(config.TicketmasterConfig{BaseURL: srv.URL}, srv.Client())
	_, err := src.Search(context.Background(), Query{})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestFetcherServesSamplesWhenServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	src := newTicketmasterSource(config.TicketmasterConfig{BaseURL: baseURL}, NewHTTPClient(time.Second))
	events, err := NewFetcher(src).Fetch(context.Background(), &models.Location{Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.True(t, ContainsSample(events))
}
