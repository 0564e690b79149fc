package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ticketmasterSource struct {
	cfg    config.TicketmasterConfig
	client *http.Client
	now    func() time.Time
}

// NewTicketmasterSource queries the Ticketmaster Discovery v2 API
func NewTicketmasterSource(cfg config.TicketmasterConfig, timeout time.Duration) Source {
	return newTicketmasterSource(cfg, NewHTTPClient(timeout))
}

func newTicketmasterSource(cfg config.TicketmasterConfig, client *http.Client) *ticketmasterSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://app.ticketmaster.com/"
	}
	if cfg.Radius <= 0 {
		cfg.Radius = 50
	}
	if cfg.Unit == "" {
		cfg.Unit = "miles"
	}
	if cfg.Size <= 0 {
		cfg.Size = 20
	}
	if cfg.Sort == "" {
		cfg.Sort = "date,asc"
	}
	return &ticketmasterSource{cfg: cfg, client: client, now: time.Now}
}

func (s *ticketmasterSource) Name() string { return "ticketmaster" }

func (s *ticketmasterSource) Search(ctx context.Context, q Query) ([]models.Event, error) {
	u, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/") + "/discovery/v2/events.json")
	if err != nil {
		return nil, errors.Wrap(err, "invalid ticketmaster base url")
	}

	params := u.Query()
	params.Set("apikey", s.cfg.APIKey)
	params.Set("latlong", fmt.Sprintf("%v,%v", q.Location.Latitude, q.Location.Longitude))
	params.Set("radius", strconv.Itoa(s.cfg.Radius))
	params.Set("unit", s.cfg.Unit)
	params.Set("size", strconv.Itoa(s.cfg.Size))
	params.Set("page", "0")
	params.Set("sort", s.cfg.Sort)
	if q.CountryCode != "" {
		params.Set("countryCode", q.CountryCode)
	}
	start := q.Start
	if start.IsZero() {
		start = s.now()
	}
	params.Set("startDateTime", start.UTC().Format(startDateLayout))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "ticketmaster request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Source: s.Name(), Code: resp.StatusCode}
	}

	var body tmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode ticketmaster response")
	}

	events := make([]models.Event, 0, len(body.Embedded.Events))
	for _, raw := range body.Embedded.Events {
		events = append(events, s.toEvent(raw))
	}
	return events, nil
}

func (s *ticketmasterSource) toEvent(e tmEvent) models.Event {
	segment := e.segment()
	city := e.city()

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	return models.Event{
		ID:          id,
		Title:       e.Name,
		Description: fmt.Sprintf("Event %s in %s", segment, city),
		ImageURL:    e.imageURL(),
		Category:    MapCategory(segment),
		VenueName:   fmt.Sprintf("%s, %s", e.venueName(), city),
		Latitude:    e.coordinate(func(l tmLocation) string { return l.Latitude }),
		Longitude:   e.coordinate(func(l tmLocation) string { return l.Longitude }),
		StartDate:   e.startMillis(s.now()),
	}
}

type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
	Dates struct {
		Start struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
	} `json:"dates"`
	Classifications []struct {
		Segment *struct {
			Name string `json:"name"`
		} `json:"segment"`
	} `json:"classifications"`
	Embedded struct {
		Venues []tmVenue `json:"venues"`
	} `json:"_embedded"`
}

type tmVenue struct {
	Name string `json:"name"`
	City *struct {
		Name string `json:"name"`
	} `json:"city"`
	Location *tmLocation `json:"location"`
}

type tmLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

func (e tmEvent) venue() *tmVenue {
	if len(e.Embedded.Venues) == 0 {
		return nil
	}
	return &e.Embedded.Venues[0]
}

func (e tmEvent) venueName() string {
	if v := e.venue(); v != nil {
		return v.Name
	}
	return "Unknown venue"
}

func (e tmEvent) city() string {
	if v := e.venue(); v != nil && v.City != nil {
		return v.City.Name
	}
	return "Unknown city"
}

func (e tmEvent) coordinate(pick func(tmLocation) string) float64 {
	v := e.venue()
	if v == nil || v.Location == nil {
		return 0
	}
	f, err := strconv.ParseFloat(pick(*v.Location), 64)
	if err != nil {
		return 0
	}
	return f
}

func (e tmEvent) segment() string {
	if len(e.Classifications) > 0 && e.Classifications[0].Segment != nil {
		return e.Classifications[0].Segment.Name
	}
	return models.CategoryEvent
}

// imageURL prefers the first image of at least 640x360
func (e tmEvent) imageURL() string {
	if len(e.Images) == 0 {
		return ""
	}
	for _, img := range e.Images {
		if img.Width >= 640 && img.Height >= 360 {
			return img.URL
		}
	}
	return e.Images[0].URL
}

func (e tmEvent) startMillis(now time.Time) int64 {
	if raw := e.Dates.Start.DateTime; raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err == nil {
			return t.UnixMilli()
		}
		log.Debug().Str("event_id", e.ID).Str("date_time", raw).Msg("Unparseable start date, using now")
	}
	return now.UnixMilli()
}
