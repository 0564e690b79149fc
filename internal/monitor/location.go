package monitor

import (
	"context"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/preferences"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Provider names accepted in monitor.location_providers
const (
	ProviderReported = "reported"
	ProviderStatic   = "static"
)

// LocationProvider reports the last known position, or nil if it has none
type LocationProvider interface {
	Name() string
	LastFix(ctx context.Context) (*models.Fix, error)
}

// ReportedProvider serves the last location a client reported
type ReportedProvider struct {
	prefs *preferences.Preferences
}

// NewReportedProvider creates a provider backed by preferences
func NewReportedProvider(prefs *preferences.Preferences) *ReportedProvider {
	return &ReportedProvider{prefs: prefs}
}

func (p *ReportedProvider) Name() string { return ProviderReported }

func (p *ReportedProvider) LastFix(ctx context.Context) (*models.Fix, error) {
	return p.prefs.LastLocation(ctx)
}

// StaticProvider always reports the same configured coordinates, stamped
// with its creation time. A client report made after startup wins over it.
type StaticProvider struct {
	loc models.Location
	at  time.Time
}

// NewStaticProvider creates a provider at loc
func NewStaticProvider(loc models.Location) *StaticProvider {
	return &StaticProvider{loc: loc, at: time.Now().UTC()}
}

func (p *StaticProvider) Name() string { return ProviderStatic }

func (p *StaticProvider) LastFix(context.Context) (*models.Fix, error) {
	return &models.Fix{Location: p.loc, Provider: ProviderStatic, Time: p.at}, nil
}

// NewProvidersFromConfig builds the enabled providers in configured order
func NewProvidersFromConfig(cfg config.MonitorConfig, prefs *preferences.Preferences) ([]LocationProvider, error) {
	providers := make([]LocationProvider, 0, len(cfg.LocationProviders))
	for _, name := range cfg.LocationProviders {
		switch name {
		case ProviderReported:
			providers = append(providers, NewReportedProvider(prefs))
		case ProviderStatic:
			providers = append(providers, NewStaticProvider(models.Location{
				Latitude:  cfg.StaticLatitude,
				Longitude: cfg.StaticLongitude,
			}))
		default:
			return nil, errors.Errorf("unknown location provider %q", name)
		}
	}
	return providers, nil
}

// LastKnown asks every provider and keeps the most recent fix. A failing
// provider is skipped.
func LastKnown(ctx context.Context, providers []LocationProvider) *models.Fix {
	var best *models.Fix
	for _, p := range providers {
		fix, err := p.LastFix(ctx)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("Location provider failed")
			continue
		}
		if fix.NewerThan(best) {
			best = fix
		}
	}
	return best
}
