package models

import (
	"fmt"
	"strings"
	"time"
)

// Event categories. The set is open: anything a source maps to is stored as is.
const (
	CategoryMusic      = "Musique"
	CategorySport      = "Sport"
	CategoryTheatre    = "Théâtre"
	CategoryFamily     = "Famille"
	CategoryGaming     = "Jeux"
	CategoryConference = "Conférence"
	CategoryEvent      = "Événement"

	// CategoryAll is the filter value meaning "no category restriction"
	CategoryAll = "Tous"
)

// Categories lists the fixed categories offered as filters, "All" first
var Categories = []string{
	CategoryAll,
	CategoryMusic,
	CategorySport,
	CategoryTheatre,
	CategoryFamily,
	CategoryGaming,
	CategoryConference,
	CategoryEvent,
}

// IsAllCategories reports whether a category filter means no restriction
func IsAllCategories(category string) bool {
	return category == "" || category == CategoryAll
}

// Event is a single discoverable happening with a place, time and category
type Event struct {
	ID          string  `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `gorm:"column:image_url" json:"image_url"`
	Category    string  `gorm:"index" json:"category"`
	VenueName   string  `gorm:"column:venue_name" json:"venue_name"`
	Latitude    float64 `gorm:"index:idx_events_position" json:"latitude"`
	Longitude   float64 `gorm:"index:idx_events_position" json:"longitude"`
	StartDate   int64   `gorm:"column:start_date" json:"start_date"` // epoch milliseconds
	Favorite    bool    `gorm:"not null" json:"favorite"`

	// Distance from the user in km, computed per query and never persisted
	Distance float64 `gorm:"-" json:"distance,omitempty"`
}

// TableName overrides the default table name
func (Event) TableName() string {
	return "events"
}

// SameEvent reports whether both values describe the same event.
// Identity is the id alone; mutable fields such as Favorite do not matter.
func (e Event) SameEvent(other Event) bool {
	return e.ID == other.ID
}

// Equal compares every persisted field, for change detection only
func (e Event) Equal(other Event) bool {
	return e.ID == other.ID &&
		e.Title == other.Title &&
		e.Description == other.Description &&
		e.ImageURL == other.ImageURL &&
		e.Category == other.Category &&
		e.VenueName == other.VenueName &&
		e.Latitude == other.Latitude &&
		e.Longitude == other.Longitude &&
		e.StartDate == other.StartDate &&
		e.Favorite == other.Favorite
}

// Location returns the venue position
func (e Event) Location() Location {
	return Location{Latitude: e.Latitude, Longitude: e.Longitude}
}

// StartTime converts StartDate to a time.Time
func (e Event) StartTime() time.Time {
	return time.UnixMilli(e.StartDate)
}

// FormattedStartDate renders the start for display, e.g. "25 December 2025 at 20:30"
func (e Event) FormattedStartDate() string {
	return e.StartTime().Format("02 January 2006 at 15:04")
}

// MatchesQuery reports whether the title contains the query, ignoring case
func (e Event) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), strings.ToLower(query))
}

// String implements fmt.Stringer
func (e Event) String() string {
	return fmt.Sprintf("%s (%s) @ %s", e.Title, e.ID, e.VenueName)
}

// IDs extracts the ids of events, in order
func IDs(events []Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
