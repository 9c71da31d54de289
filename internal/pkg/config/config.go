package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// DefaultInitialPath is the triangle a new edit session starts from.
const DefaultInitialPath = "40.631275905646774,-73.9760493565738;" +
	"40.63074665412933,-73.97716511994669;" +
	"40.629871496125375,-73.97699848928193"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Map       MapConfig       `mapstructure:"map"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
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

// EditorConfig seeds and sizes edit sessions. InitialPath is a list of
// "lat,lng" pairs separated by semicolons.
type EditorConfig struct {
	InitialPath string `mapstructure:"initial_path"`
	QueueSize   int    `mapstructure:"queue_size"`
}

// Path parses InitialPath.
func (e EditorConfig) Path() (domain.Path, error) {
	return ParsePath(e.InitialPath)
}

type MapConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLng float64 `mapstructure:"center_lng"`
	Zoom      int     `mapstructure:"zoom"`
}

// Center returns the map center as a vertex.
func (m MapConfig) Center() domain.Vertex {
	return domain.Vertex{Lat: m.CenterLat, Lng: m.CenterLng}
}

// DatasetConfig selects where reference boundaries come from: "file" reads
// a GeoJSON FeatureCollection at Path, "postgres" reads the boundaries
// table, "none" disables them.
type DatasetConfig struct {
	Source       string `mapstructure:"source"`
	Path         string `mapstructure:"path"`
	IDProperty   string `mapstructure:"id_property"`
	NameProperty string `mapstructure:"name_property"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load(".env") // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "polysync")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "polysync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("editor.initial_path", DefaultInitialPath)
	v.SetDefault("editor.queue_size", 64)
	v.SetDefault("map.center_lat", 40.730610)
	v.SetDefault("map.center_lng", -73.935242)
	v.SetDefault("map.zoom", 12)
	v.SetDefault("dataset.source", "file")
	v.SetDefault("dataset.path", "data/NTA.geojson")
	v.SetDefault("dataset.id_property", "BK88")
	v.SetDefault("dataset.name_property", "NTAName")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: POLYSYNC_DATABASE_HOST → database.host
	v.SetEnvPrefix("POLYSYNC")
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
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, "database.max_conns must not be negative")
	}
	if c.Editor.QueueSize <= 0 {
		errs = append(errs, "editor.queue_size must be positive")
	}
	if _, err := c.Editor.Path(); err != nil {
		errs = append(errs, fmt.Sprintf("editor.initial_path: %v", err))
	}
	if !c.Map.Center().Valid() {
		errs = append(errs, fmt.Sprintf("map center (%f, %f) is out of range", c.Map.CenterLat, c.Map.CenterLng))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("map.zoom must be 0-22, got %d", c.Map.Zoom))
	}

	switch c.Dataset.Source {
	case "none":
	case "file":
		if c.Dataset.Path == "" {
			errs = append(errs, "dataset.path is required for the file source")
		}
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for the postgres source")
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for the postgres source")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required for the postgres source")
		}
	default:
		errs = append(errs, fmt.Sprintf("dataset.source must be file, postgres or none, got %q", c.Dataset.Source))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParsePath reads "lat,lng;lat,lng;..." into a path. Empty input yields an
// empty path.
func ParsePath(s string) (domain.Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Path{}, nil
	}

	pairs := strings.Split(s, ";")
	vs := make([]domain.Vertex, 0, len(pairs))
	for i, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return domain.Path{}, fmt.Errorf("vertex %d: want lat,lng, got %q", i, pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return domain.Path{}, fmt.Errorf("vertex %d lat: %w", i, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return domain.Path{}, fmt.Errorf("vertex %d lng: %w", i, err)
		}
		v := domain.Vertex{Lat: lat, Lng: lng}
		if !v.Valid() {
			return domain.Path{}, fmt.Errorf("vertex %d: (%f, %f) out of range", i, lat, lng)
		}
		vs = append(vs, v)
	}
	return domain.NewPath(vs), nil
}
