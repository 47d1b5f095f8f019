package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Database  DatabaseConfig        `mapstructure:"database"`
	NATS      NATSConfig            `mapstructure:"nats"`
	Valkey    ValkeyConfig          `mapstructure:"valkey"`
	Telemetry TelemetryConfig       `mapstructure:"telemetry"`
	Log       LogConfig             `mapstructure:"log"`
	Raster    RasterConfig          `mapstructure:"raster"`
	Layers    LayersConfig          `mapstructure:"layers"`
	Query     QueryConfig           `mapstructure:"query"`
	Elevation UpstreamConfig        `mapstructure:"elevation"`
	Geocoder  UpstreamConfig        `mapstructure:"geocoder"`
	Palette   []domain.PaletteEntry `mapstructure:"palette"`
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
	// LocalSize is the entry cap of the in-process cache used when valkey is unreachable.
	LocalSize int64 `mapstructure:"local_size"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RasterSource is one light-pollution image and the geographic box it covers.
// Sources are consulted in declaration order.
type RasterSource struct {
	Name       string  `mapstructure:"name"`
	URL        string  `mapstructure:"url"`
	Projection string  `mapstructure:"projection"`
	LatMin     float64 `mapstructure:"lat_min"`
	LatMax     float64 `mapstructure:"lat_max"`
	LngMin     float64 `mapstructure:"lng_min"`
	LngMax     float64 `mapstructure:"lng_max"`
}

// Bounds returns the normalized sampling domain of the source.
func (r RasterSource) Bounds() domain.RasterBounds {
	return domain.RasterBounds{
		Projection: domain.Projection(r.Projection),
		LatMin:     r.LatMin,
		LatMax:     r.LatMax,
		LngMin:     r.LngMin,
		LngMax:     r.LngMax,
	}.Normalized()
}

type RasterConfig struct {
	Sources      []RasterSource `mapstructure:"sources"`
	FetchTimeout time.Duration  `mapstructure:"fetch_timeout"`
	WarmOnStart  bool           `mapstructure:"warm_on_start"`
}

type LayersConfig struct {
	DetailZoom       int     `mapstructure:"detail_zoom"`
	SatelliteZoom    int     `mapstructure:"satellite_zoom"`
	OverviewOpacity  float64 `mapstructure:"overview_opacity"`
	DetailOpacity    float64 `mapstructure:"detail_opacity"`
	SatelliteOpacity float64 `mapstructure:"satellite_opacity"`
}

type QueryConfig struct {
	SearchDebounce    time.Duration `mapstructure:"search_debounce"`
	ElevationDebounce time.Duration `mapstructure:"elevation_debounce"`
	SampleDebounce    time.Duration `mapstructure:"sample_debounce"`
	SearchLimit       int           `mapstructure:"search_limit"`
}

// UpstreamConfig describes a third-party HTTP lookup service.
type UpstreamConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL int           `mapstructure:"cache_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "darkhorizon")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "darkhorizon")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.local_size", 10000)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("raster.sources", []map[string]any{{
		"name":       "world",
		"url":        "https://djlorenz.github.io/astronomy/lp2024/world2024_low3.png",
		"projection": string(domain.WebMercator),
		"lat_min":    -65.0,
		"lat_max":    75.0,
		"lng_min":    -180.0,
		"lng_max":    180.0,
	}})
	v.SetDefault("raster.fetch_timeout", 60*time.Second)
	v.SetDefault("raster.warm_on_start", false)
	v.SetDefault("layers.detail_zoom", 4)
	v.SetDefault("layers.satellite_zoom", 12)
	v.SetDefault("layers.overview_opacity", 0.75)
	v.SetDefault("layers.detail_opacity", 0.6)
	v.SetDefault("layers.satellite_opacity", 0.45)
	v.SetDefault("query.search_debounce", 300*time.Millisecond)
	v.SetDefault("query.elevation_debounce", 5*time.Second)
	v.SetDefault("query.sample_debounce", time.Second)
	v.SetDefault("query.search_limit", 5)
	v.SetDefault("elevation.base_url", "https://api.open-meteo.com")
	v.SetDefault("elevation.timeout", 10*time.Second)
	v.SetDefault("elevation.cache_ttl", 86400)
	v.SetDefault("geocoder.base_url", "https://photon.komoot.io")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.cache_ttl", 3600)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: DARKHORIZON_DATABASE_HOST → database.host
	v.SetEnvPrefix("DARKHORIZON")
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

	if len(c.Raster.Sources) == 0 {
		errs = append(errs, "raster.sources must list at least one raster")
	}
	for i, src := range c.Raster.Sources {
		if src.URL == "" {
			errs = append(errs, fmt.Sprintf("raster.sources[%d].url is required", i))
		}
		switch domain.Projection(src.Projection) {
		case "", domain.WebMercator, domain.PlateCarree:
		default:
			errs = append(errs, fmt.Sprintf("raster.sources[%d].projection %q is unknown", i, src.Projection))
		}
		if src.LatMin >= src.LatMax || src.LatMin < -90 || src.LatMax > 90 {
			errs = append(errs, fmt.Sprintf("raster.sources[%d] latitude range %g..%g is invalid", i, src.LatMin, src.LatMax))
		}
		if src.Projection != string(domain.PlateCarree) && (src.LatMin <= -90 || src.LatMax >= 90) {
			errs = append(errs, fmt.Sprintf("raster.sources[%d] mercator raster cannot reach the poles", i))
		}
		if (src.LngMin != 0 || src.LngMax != 0) && (src.LngMin >= src.LngMax || src.LngMin < -180 || src.LngMax > 180) {
			errs = append(errs, fmt.Sprintf("raster.sources[%d] longitude range %g..%g is invalid", i, src.LngMin, src.LngMax))
		}
	}
	if c.Raster.FetchTimeout <= 0 {
		errs = append(errs, "raster.fetch_timeout must be positive")
	}

	if c.Layers.DetailZoom >= c.Layers.SatelliteZoom {
		errs = append(errs, fmt.Sprintf("layers.detail_zoom (%d) must be below layers.satellite_zoom (%d)",
			c.Layers.DetailZoom, c.Layers.SatelliteZoom))
	}
	opacities := []struct {
		key string
		v   float64
	}{
		{"layers.overview_opacity", c.Layers.OverviewOpacity},
		{"layers.detail_opacity", c.Layers.DetailOpacity},
		{"layers.satellite_opacity", c.Layers.SatelliteOpacity},
	}
	for _, op := range opacities {
		if op.v < 0 || op.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be within 0..1, got %g", op.key, op.v))
		}
	}

	if c.Query.SearchDebounce < 0 || c.Query.ElevationDebounce < 0 || c.Query.SampleDebounce < 0 {
		errs = append(errs, "query debounce delays must not be negative")
	}
	if c.Query.SearchLimit <= 0 {
		errs = append(errs, "query.search_limit must be positive")
	}
	if c.Elevation.BaseURL == "" {
		errs = append(errs, "elevation.base_url is required")
	}
	if c.Geocoder.BaseURL == "" {
		errs = append(errs, "geocoder.base_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
