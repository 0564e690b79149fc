package sources

import (
	"bytes"
	"context"
	"encoding/json"
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
)

type openAgendaSource struct {
	cfg    config.OpenAgendaConfig
	client *http.Client
	now    func() time.Time
}

// NewOpenAgendaSource queries the OpenAgenda events endpoint
func NewOpenAgendaSource(cfg config.OpenAgendaConfig, timeout time.Duration) Source {
	return newOpenAgendaSource(cfg, NewHTTPClient(timeout))
}

func newOpenAgendaSource(cfg config.OpenAgendaConfig, client *http.Client) *openAgendaSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openagenda.com/"
	}
	if cfg.Radius <= 0 {
		cfg.Radius = 50
	}
	if cfg.Size <= 0 {
		cfg.Size = 20
	}
	return &openAgendaSource{cfg: cfg, client: client, now: time.Now}
}

func (s *openAgendaSource) Name() string { return "openagenda" }

func (s *openAgendaSource) Search(ctx context.Context, q Query) ([]models.Event, error) {
	u, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/") + "/events.json")
	if err != nil {
		return nil, errors.Wrap(err, "invalid openagenda base url")
	}

	params := u.Query()
	if q.CountryCode != "" {
		params.Set("country", q.CountryCode)
	}
	params.Set("latitude", strconv.FormatFloat(q.Location.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Location.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(s.cfg.Radius))
	params.Set("size", strconv.Itoa(s.cfg.Size))
	if s.cfg.APIKey != "" {
		params.Set("key", s.cfg.APIKey)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "openagenda request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Source: s.Name(), Code: resp.StatusCode}
	}

	var body oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode openagenda response")
	}

	now := s.now()
	events := make([]models.Event, 0, len(body.Events))
	for _, raw := range body.Events {
		events = append(events, raw.toEvent(now))
	}
	return events, nil
}

type oaResponse struct {
	Events []oaEvent `json:"events"`
	Total  int       `json:"total"`
}

type oaEvent struct {
	UID             flexibleID `json:"uid"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	LongDescription string     `json:"longDescription"`
	Image           *struct {
		Base string `json:"base"`
	} `json:"image"`
	LocationName string `json:"locationName"`
	Location     *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Timings []struct {
		Begin int64 `json:"begin"`
		End   int64 `json:"end"`
	} `json:"timings"`
	Keywords []string `json:"keywords"`
}

func (e oaEvent) toEvent(now time.Time) models.Event {
	event := models.Event{
		ID:          string(e.UID),
		Title:       e.Title,
		Description: e.Description,
		VenueName:   e.LocationName,
		Category:    MapCategory(strings.Join(append(append([]string{}, e.Keywords...), e.Title), " ")),
		StartDate:   now.UnixMilli(),
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Description == "" {
		event.Description = e.LongDescription
	}
	if event.VenueName == "" {
		event.VenueName = "Unknown venue"
	}
	if e.Image != nil {
		event.ImageURL = e.Image.Base
	}
	if e.Location != nil {
		event.Latitude = e.Location.Latitude
		event.Longitude = e.Location.Longitude
	}
	if len(e.Timings) > 0 {
		event.StartDate = e.Timings[0].Begin
	}
	return event
}

// flexibleID accepts an id encoded as either a JSON string or number
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}
