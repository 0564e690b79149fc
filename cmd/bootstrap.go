package cmd

import (
	"context"
	"os"
	"strings"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/cache"
	"example.com/eventwave/internal/database"
	"example.com/eventwave/internal/messaging"
	"example.com/eventwave/internal/metrics"
	"example.com/eventwave/internal/notify"
	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/repositories"
	"example.com/eventwave/internal/search"
	"example.com/eventwave/internal/services"
	"example.com/eventwave/internal/sources"
	"example.com/eventwave/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      config.Config
	db       *gorm.DB
	cache    *cache.RedisCache
	tracer   tracing.Tracer
	metrics  *metrics.Metrics
	prefs    *preferences.Preferences
	events   repositories.EventRepository
	service  *services.EventService
	notifier notify.Notifier

	closers []func() error
}

func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.LoadConfig(".")
}

// configureLogging applies logging.level and the console writer in development
func configureLogging(cfg config.Config) {
	if cfg.Environment == "development" || cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if os.Getenv("LOG_LEVEL") != "" {
		return
	}
	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
}

// bootstrap connects storage and optional infrastructure. Redis,
// Elasticsearch, New Relic and Service Bus failures only disable the
// corresponding feature.
func bootstrap() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	configureLogging(cfg)

	a := &app{cfg: cfg, metrics: metrics.NewMetrics()}

	// Initialize database
	a.db, err = database.ConnectAndMigrate(cfg.DB)
	if err != nil {
		a.metrics.SetHealth("database", false)
		return nil, err
	}
	a.metrics.SetHealth("database", true)
	a.closers = append(a.closers, func() error { return database.Close(a.db) })

	// Initialize cache
	a.cache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without it")
		a.cache = nil
		a.metrics.SetHealth("redis", false)
	} else if a.cache.Enabled() {
		a.metrics.SetHealth("redis", true)
		a.closers = append(a.closers, a.cache.Close)
	}

	// Initialize tracer
	a.tracer, err = tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		a.tracer = tracing.Noop()
	}
	a.closers = append(a.closers, func() error { a.tracer.Close(); return nil })

	// Preferences
	settings := repositories.NewSettingRepository(a.db)
	store, err := preferences.NewStore(cfg.Preferences, a.cache, settings)
	if err != nil {
		log.Warn().Err(err).Msg("Preference backend unavailable, falling back to the database")
		store = preferences.NewDatabaseStore(settings)
	}
	a.prefs = preferences.New(store, cfg.History.MaxEntries)

	// Event source
	src, err := sources.NewFromConfig(cfg.Sources)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "failed to create event source")
	}

	opts := []services.Option{
		services.WithTracer(a.tracer),
		services.WithMetrics(a.metrics),
		services.WithPoolSize(cfg.Workers.PoolSize),
	}

	// Initialize Elasticsearch client
	if cfg.Elastic.Enabled {
		elasticClient, err := search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search index")
			a.metrics.SetHealth("elasticsearch", false)
		} else {
			a.metrics.SetHealth("elasticsearch", true)
			opts = append(opts, services.WithSearchIndex(elasticClient))
		}
	}

	a.events = repositories.NewEventRepository(a.db)
	a.service = services.NewEventService(a.events, sources.NewFetcher(src), a.prefs, opts...)
	a.closers = append(a.closers, a.service.Close)

	a.notifier = a.newNotifier()

	log.Info().
		Str("environment", cfg.Environment).
		Str("source", src.Name()).
		Str("database", cfg.DB.Driver).
		Msg("Application initialized")
	return a, nil
}

func (a *app) newNotifier() notify.Notifier {
	switch a.cfg.Notifications.Transport {
	case "servicebus":
		sb, err := messaging.NewServiceBusNotifier(a.cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus, notifications will be logged")
			a.metrics.SetHealth("servicebus", false)
			return notify.NewLogNotifier()
		}
		a.metrics.SetHealth("servicebus", true)
		a.closers = append(a.closers, sb.Close)
		return sb
	case "", "log":
		return notify.NewLogNotifier()
	default:
		log.Warn().Str("transport", a.cfg.Notifications.Transport).Msg("Unknown notification transport, notifications will be logged")
		return notify.NewLogNotifier()
	}
}

func (a *app) newBrowser(ctx context.Context) (*services.Browser, error) {
	return services.NewBrowser(ctx, a.service, a.prefs)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Error().Err(err).Msg("Failed to release resource")
		}
	}
	a.closers = nil
}
