// Package notify builds user notifications and delivers them through a
// pluggable transport.
package notify

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"example.com/eventwave/internal/models"

	"github.com/rs/zerolog/log"
)

// Template names
const (
	TemplateEvent  = "event"
	TemplateNearby = "nearby"
)

// Notification is one user-facing alert
type Notification struct {
	// Key is stable per event so repeated alerts replace each other
	Key      uint32    `json:"key"`
	Template string    `json:"template"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	EventID  string    `json:"event_id"`
	Distance float64   `json:"distance_km,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Key derives the notification key of an event id (FNV-1a, 32 bit)
func Key(eventID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(eventID))
	return h.Sum32()
}

// EventAlert announces an event
func EventAlert(e models.Event) Notification {
	return Notification{
		Key:      Key(e.ID),
		Template: TemplateEvent,
		Title:    e.Title,
		Body:     fmt.Sprintf("At %s - %s", e.VenueName, e.FormattedStartDate()),
		EventID:  e.ID,
	}
}

// NearbyAlert announces an event distanceKm away from the user
func NearbyAlert(e models.Event, distanceKm float64) Notification {
	return Notification{
		Key:      Key(e.ID),
		Template: TemplateNearby,
		Title:    "Nearby event",
		Body:     fmt.Sprintf("%s at %.1f km - %s", e.Title, distanceKm, e.VenueName),
		EventID:  e.ID,
		Distance: distanceKm,
	}
}

// LogNotifier writes notifications to the application log
type LogNotifier struct{}

// NewLogNotifier creates a notifier backed by zerolog
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify implements Notifier
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Info().
		Uint32("key", n.Key).
		Str("template", n.Template).
		Str("event_id", n.EventID).
		Str("title", n.Title).
		Msg(n.Body)
	return nil
}
