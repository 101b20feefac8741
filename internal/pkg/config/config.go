package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Location  LocationConfig  `mapstructure:"location"`
	Collector CollectorConfig `mapstructure:"collector"`
	Session   SessionConfig   `mapstructure:"session"`
	ShopAPI   ShopAPIConfig   `mapstructure:"shop_api"`
	Device    DeviceConfig    `mapstructure:"device"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// LocationConfig tunes the location acquisition controller.
type LocationConfig struct {
	FallbackLat         float64       `mapstructure:"fallback_lat"`
	FallbackLng         float64       `mapstructure:"fallback_lng"`
	ReentryDelay        time.Duration `mapstructure:"reentry_delay"`
	LastKnownMaxAge     time.Duration `mapstructure:"last_known_max_age"`
	LastKnownAccuracyM  float64       `mapstructure:"last_known_accuracy_m"`
	CurrentTimeInterval time.Duration `mapstructure:"current_time_interval"`
}

// CollectorConfig tunes the viewport shop collector.
type CollectorConfig struct {
	SearchLimit int `mapstructure:"search_limit"`
}

// SessionConfig tunes the nearby and all-shops datasets of a map session.
type SessionConfig struct {
	NearbyRadiusKm float64 `mapstructure:"nearby_radius_km"`
	NearbyLimit    int     `mapstructure:"nearby_limit"`
	AllLimit       int     `mapstructure:"all_limit"`
}

// ShopAPIConfig points the locator at the shop query API.
type ShopAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DeviceConfig drives the simulated device location provider.
type DeviceConfig struct {
	Permission   string        `mapstructure:"permission"`
	CanAskAgain  bool          `mapstructure:"can_ask_again"`
	PromptResult string        `mapstructure:"prompt_result"`
	LastKnownLat float64       `mapstructure:"last_known_lat"`
	LastKnownLng float64       `mapstructure:"last_known_lng"`
	LastKnownAge time.Duration `mapstructure:"last_known_age"`
	HasLastKnown bool          `mapstructure:"has_last_known"`
	CurrentLat   float64       `mapstructure:"current_lat"`
	CurrentLng   float64       `mapstructure:"current_lng"`
	CurrentDelay time.Duration `mapstructure:"current_delay"`
	CurrentFails bool          `mapstructure:"current_fails"`
	// SettingsGrants makes opening the settings screen grant permission.
	SettingsGrants bool `mapstructure:"settings_grants"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// Local development: pick up a .env file if present.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "shopradar")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "shopradar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("location.fallback_lat", 35.681236)
	v.SetDefault("location.fallback_lng", 139.767125)
	v.SetDefault("location.reentry_delay", 500*time.Millisecond)
	v.SetDefault("location.last_known_max_age", 5*time.Minute)
	v.SetDefault("location.last_known_accuracy_m", 5000.0)
	v.SetDefault("location.current_time_interval", 5*time.Second)
	v.SetDefault("collector.search_limit", 100)
	v.SetDefault("session.nearby_radius_km", 10.0)
	v.SetDefault("session.nearby_limit", 50)
	v.SetDefault("session.all_limit", 100)
	v.SetDefault("shop_api.base_url", "http://localhost:8080")
	v.SetDefault("shop_api.timeout", 10*time.Second)
	v.SetDefault("device.permission", "undetermined")
	v.SetDefault("device.can_ask_again", true)
	v.SetDefault("device.prompt_result", "granted")
	v.SetDefault("device.current_lat", 35.658034)
	v.SetDefault("device.current_lng", 139.701636)
	v.SetDefault("device.current_delay", 1500*time.Millisecond)
	v.SetDefault("device.settings_grants", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SHOPRADAR_DATABASE_HOST → database.host
	v.SetEnvPrefix("SHOPRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Location.FallbackLat < -90 || c.Location.FallbackLat > 90 {
		errs = append(errs, fmt.Sprintf("location.fallback_lat must be -90..90, got %f", c.Location.FallbackLat))
	}
	if c.Location.FallbackLng < -180 || c.Location.FallbackLng > 180 {
		errs = append(errs, fmt.Sprintf("location.fallback_lng must be -180..180, got %f", c.Location.FallbackLng))
	}
	if c.Location.ReentryDelay < 0 {
		errs = append(errs, "location.reentry_delay must not be negative")
	}
	if c.Collector.SearchLimit <= 0 {
		errs = append(errs, "collector.search_limit must be positive")
	}
	if c.Session.NearbyRadiusKm <= 0 {
		errs = append(errs, "session.nearby_radius_km must be positive")
	}
	if c.ShopAPI.BaseURL == "" {
		errs = append(errs, "shop_api.base_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
