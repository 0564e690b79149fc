package sources

import (
	"context"
	"time"

	"example.com/eventwave/internal/models"

	"github.com/rs/zerolog/log"
)

// Fetcher wraps a Source with the broadening and demo fallbacks. Apart from
// a missing location it always returns a usable list.
type Fetcher struct {
	source Source
	now    func() time.Time
}

// NewFetcher creates a fetcher over src
func NewFetcher(src Source) *Fetcher {
	return &Fetcher{source: src, now: time.Now}
}

// Source returns the underlying backend
func (f *Fetcher) Source() Source {
	return f.source
}

// Fetch returns events near loc. The guessed country is tried first, then
// US, then no country; the sample catalog is returned when the backend
// fails or every attempt comes back empty.
func (f *Fetcher) Fetch(ctx context.Context, loc *models.Location) ([]models.Event, error) {
	if loc == nil {
		return nil, ErrNoLocation
	}

	now := f.now()
	country := GuessCountry(*loc)
	logger := log.With().
		Str("source", f.source.Name()).
		Float64("lat", loc.Latitude).
		Float64("lon", loc.Longitude).
		Logger()

	events, err := f.source.Search(ctx, Query{Location: *loc, CountryCode: country, Start: now})
	if err != nil {
		logger.Warn().Err(err).Str("country", country).Msg("Event source failed, serving sample events")
		return SampleEvents(*loc, now), nil
	}
	if len(events) > 0 {
		logger.Debug().Int("count", len(events)).Str("country", country).Msg("Fetched events")
		return events, nil
	}

	var fallbacks []string
	if country != "US" {
		fallbacks = append(fallbacks, "US")
	}
	fallbacks = append(fallbacks, "")

	for _, c := range fallbacks {
		events, err := f.source.Search(ctx, Query{Location: *loc, CountryCode: c, Start: now})
		if err != nil {
			logger.Warn().Err(err).Str("country", c).Msg("Broadened search failed")
			continue
		}
		if len(events) > 0 {
			logger.Info().Int("count", len(events)).Str("country", c).Msg("Fetched events with broadened search")
			return events, nil
		}
	}

	logger.Warn().Msg("No events found, serving sample events")
	return SampleEvents(*loc, now), nil
}
