package sources

import (
	"time"

	"example.com/eventwave/internal/models"
)

type sampleEntry struct {
	id          string
	title       string
	description string
	category    string
	venue       string
	dLat, dLon  float64
	daysAhead   int
}

// sampleCatalog is served whenever no backend answers. Positions are
// offsets from the requested location.
var sampleCatalog = []sampleEntry{
	{
		id:          "tm1",
		title:       "Jazz Concert - Miles Davis Tribute",
		description: "An exceptional tribute to the legendary Miles Davis with the best French jazz musicians.",
		category:    models.CategoryMusic,
		venue:       "Olympia",
		dLat:        0.005,
		dLon:        0.005,
		daysAhead:   1,
	},
	{
		id:          "tm2",
		title:       "Rock Festival - The Legends",
		description: "Three days of rock with the biggest French and international bands.",
		category:    models.CategoryMusic,
		venue:       "Stade de France",
		dLat:        -0.01,
		dLon:        0.01,
		daysAhead:   2,
	},
	{
		id:          "tm3",
		title:       "Football Match - PSG vs OM",
		description: "The classic of French football in an electric atmosphere.",
		category:    models.CategorySport,
		venue:       "Parc des Princes",
		dLat:        0.02,
		dLon:        0.02,
		daysAhead:   3,
	},
	{
		id:          "tm4",
		title:       "Tennis Tournament - Masters 1000",
		description: "The best players in the world compete in this prestigious tournament.",
		category:    models.CategorySport,
		venue:       "AccorHotels Arena",
		dLat:        -0.02,
		dLon:        -0.02,
		daysAhead:   4,
	},
	{
		id:          "tm5",
		title:       "Play - Cyrano de Bergerac",
		description: "Edmond Rostand's famous play in a modern and captivating staging.",
		category:    models.CategoryTheatre,
		venue:       "Comédie-Française",
		dLat:        0.015,
		dLon:        -0.015,
		daysAhead:   5,
	},
}

var sampleIDs = func() map[string]struct{} {
	ids := make(map[string]struct{}, len(sampleCatalog))
	for _, s := range sampleCatalog {
		ids[s.id] = struct{}{}
	}
	return ids
}()

// SampleEvents builds the demo catalog around loc
func SampleEvents(loc models.Location, now time.Time) []models.Event {
	events := make([]models.Event, 0, len(sampleCatalog))
	for _, s := range sampleCatalog {
		events = append(events, models.Event{
			ID:          s.id,
			Title:       s.title,
			Description: s.description,
			Category:    s.category,
			VenueName:   s.venue,
			Latitude:    loc.Latitude + s.dLat,
			Longitude:   loc.Longitude + s.dLon,
			StartDate:   now.Add(time.Duration(s.daysAhead) * 24 * time.Hour).UnixMilli(),
		})
	}
	return events
}

// IsSampleID reports whether id belongs to the demo catalog
func IsSampleID(id string) bool {
	_, ok := sampleIDs[id]
	return ok
}

// ContainsSample reports whether any event came from the demo catalog
func ContainsSample(events []models.Event) bool {
	for _, e := range events {
		if IsSampleID(e.ID) {
			return true
		}
	}
	return false
}
