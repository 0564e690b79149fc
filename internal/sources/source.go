// Package sources fetches events near a location from remote event APIs.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"

	"github.com/pkg/errors"
)

// ErrNoLocation is returned when a fetch is attempted without a location
var ErrNoLocation = errors.New("location unavailable")

// startDateLayout is the UTC timestamp format event APIs accept for startDateTime
const startDateLayout = "2006-01-02T15:04:05Z"

// Query describes one search against a backend
type Query struct {
	Location models.Location
	// CountryCode restricts results to one ISO country. Empty means anywhere.
	CountryCode string
	Start       time.Time
}

// Source is a remote event API
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]models.Event, error)
}

// NewFromConfig builds the backend named by c.Provider
func NewFromConfig(c config.SourcesConfig) (Source, error) {
	switch c.Provider {
	case "", "ticketmaster":
		return NewTicketmasterSource(c.Ticketmaster, c.Timeout), nil
	case "openagenda":
		return NewOpenAgendaSource(c.OpenAgenda, c.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown source provider: %s", c.Provider)
	}
}

// StatusError is a non-2xx answer from a backend
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.Code)
}

type countryBox struct {
	code                           string
	minLat, maxLat, minLon, maxLon float64
}

// First match wins, so the order matters.
var countryBoxes = []countryBox{
	{"US", 24, 71, -180, -66},
	{"CA", 41, 84, -141, -52},
	{"GB", 49, 61, -8, 2},
	{"FR", 41, 51, -5, 10},
	{"FR", 35, 71, -10, 40}, // rest of western Europe
}

// GuessCountry maps a location to a country code with coarse boxes, US otherwise
func GuessCountry(loc models.Location) string {
	for _, b := range countryBoxes {
		if loc.Latitude >= b.minLat && loc.Latitude <= b.maxLat &&
			loc.Longitude >= b.minLon && loc.Longitude <= b.maxLon {
			return b.code
		}
	}
	return "US"
}

type categoryRule struct {
	keywords []string
	category string
}

var categoryRules = []categoryRule{
	{[]string{"music", "concert"}, models.CategoryMusic},
	{[]string{"sports", "sport"}, models.CategorySport},
	{[]string{"arts", "theatre", "theater"}, models.CategoryTheatre},
	{[]string{"family", "miscellaneous"}, models.CategoryFamily},
	{[]string{"gaming", "game", "esport"}, models.CategoryGaming},
	{[]string{"conference", "conférence", "seminar"}, models.CategoryConference},
}

// MapCategory turns a backend classification into one of the app categories
func MapCategory(raw string) string {
	lower := strings.ToLower(raw)
	if lower == "" {
		return models.CategoryEvent
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return models.CategoryEvent
}
