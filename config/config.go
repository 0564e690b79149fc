package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	DB            DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Preferences   PreferencesConfig   `mapstructure:"preferences"`
	Sources       SourcesConfig       `mapstructure:"sources"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Azure         AzureConfig         `mapstructure:"azure"`
	Elastic       ElasticConfig       `mapstructure:"elastic"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
	Workers       WorkersConfig       `mapstructure:"workers"`
	History       HistoryConfig       `mapstructure:"history"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Enabled   bool   `mapstructure:"enabled"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PreferencesConfig selects where the key-value preferences live
type PreferencesConfig struct {
	// Backend is either "redis" or "database"
	Backend string `mapstructure:"backend"`
}

// SourcesConfig holds remote event API configuration
type SourcesConfig struct {
	Provider     string             `mapstructure:"provider"`
	Timeout      time.Duration      `mapstructure:"timeout"`
	Ticketmaster TicketmasterConfig `mapstructure:"ticketmaster"`
	OpenAgenda   OpenAgendaConfig   `mapstructure:"openagenda"`
}

// TicketmasterConfig holds Ticketmaster Discovery API configuration
type TicketmasterConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Radius  int    `mapstructure:"radius"`
	Unit    string `mapstructure:"unit"`
	Size    int    `mapstructure:"size"`
	Sort    string `mapstructure:"sort"`
}

// OpenAgendaConfig holds OpenAgenda API configuration
type OpenAgendaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Radius  int    `mapstructure:"radius"`
	Size    int    `mapstructure:"size"`
}

// MonitorConfig holds proximity monitor configuration
type MonitorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	LocationProviders []string      `mapstructure:"location_providers"`
	StaticLatitude    float64       `mapstructure:"static_latitude"`
	StaticLongitude   float64       `mapstructure:"static_longitude"`
}

// NotificationsConfig selects the notification transport
type NotificationsConfig struct {
	// Transport is either "log" or "servicebus"
	Transport string `mapstructure:"transport"`
}

// AzureConfig holds Azure Service Bus configuration
type AzureConfig struct {
	QueueConnStr string `mapstructure:"queue_conn_str"`
	QueueName    string `mapstructure:"queue_name"`
}

// ElasticConfig holds Elasticsearch configuration
type ElasticConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	Index    string `mapstructure:"index"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"license_key"`
	AppName        string `mapstructure:"app_name"`
	LogEnabled     bool   `mapstructure:"log_enabled"`
	DistribTracing bool   `mapstructure:"distributed_tracing_enabled"`
}

// WorkersConfig sizes the background worker pool
type WorkersConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// HistoryConfig bounds the viewing history
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Try to read the YAML config first
	if err := v.ReadInConfig(); err != nil {
		// If YAML not found, try ENV file
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			v.SetConfigName("app")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				// Continue even if no config file is found - we'll use ENV vars and defaults
				fmt.Printf("Warning: No configuration file found: %v\n", err)
			}
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFile reads configuration from an explicit file path
func LoadFile(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("error reading config file %s: %w", file, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (Config, error) {
	// Enable environment variables to override config
	v.SetEnvPrefix("EVENTWAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.metrics_enabled", true)

	// Database settings
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "eventwave.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	// Redis settings
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.key_prefix", "eventwave")

	v.SetDefault("preferences.backend", "database")

	// Remote event sources
	v.SetDefault("sources.provider", "ticketmaster")
	v.SetDefault("sources.timeout", "30s")
	v.SetDefault("sources.ticketmaster.base_url", "https://app.ticketmaster.com/")
	v.SetDefault("sources.ticketmaster.radius", 50)
	v.SetDefault("sources.ticketmaster.unit", "miles")
	v.SetDefault("sources.ticketmaster.size", 20)
	v.SetDefault("sources.ticketmaster.sort", "date,asc")
	v.SetDefault("sources.openagenda.base_url", "https://openagenda.com/")
	v.SetDefault("sources.openagenda.radius", 50)
	v.SetDefault("sources.openagenda.size", 20)

	// Proximity monitor
	v.SetDefault("monitor.interval", "30m")
	v.SetDefault("monitor.location_providers", []string{"reported"})

	v.SetDefault("notifications.transport", "log")

	// Azure settings
	v.SetDefault("azure.queue_name", "event-notifications")

	// Elasticsearch settings
	v.SetDefault("elastic.enabled", false)
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.prefix", "eventwave")
	v.SetDefault("elastic.index", "events")

	// Tracing settings
	v.SetDefault("tracing.app_name", "EventWave")
	v.SetDefault("tracing.log_enabled", true)
	v.SetDefault("tracing.distributed_tracing_enabled", true)

	v.SetDefault("workers.pool_size", 4)
	v.SetDefault("history.max_entries", 50)

	// Logging settings
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// FormatIndex formats an Elasticsearch index name with the configured prefix
func FormatIndex(cfg ElasticConfig, index string) string {
	return cfg.Prefix + "-" + index
}
