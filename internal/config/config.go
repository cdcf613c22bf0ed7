package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // site timezone must resolve on minimal images

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/punchclock/internal/geofence"
	"github.com/kozaktomas/punchclock/internal/rules"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Rules    RulesConfig    `yaml:"rules"`
	Face     FaceConfig     `yaml:"face"`
	Database DatabaseConfig `yaml:"database"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

type SiteConfig struct {
	Lat          float64 `yaml:"lat"`
	Lng          float64 `yaml:"lng"`
	RadiusMeters float64 `yaml:"radius_meters"`
	Timezone     string  `yaml:"timezone"` // IANA name, e.g. Asia/Kolkata
}

type RulesConfig struct {
	OfficeStart  string `yaml:"office_start"`
	LateAfter    string `yaml:"late_after"`
	HalfDayAfter string `yaml:"half_day_after"`
}

type FaceConfig struct {
	MatchThreshold   float64 `yaml:"match_threshold"`
	DescriptorLength int     `yaml:"descriptor_length"`
	IndexPath        string  `yaml:"index_path"` // Path to persist the face HNSW index (optional)
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver"` // postgres or mysql
	URL           string `yaml:"url"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	MaxIdleConns  int    `yaml:"max_idle_conns"`
	SnowflakeNode int64  `yaml:"snowflake_node"`
}

type WebConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins string        `yaml:"allowed_origins"` // comma-separated
	JWTSecret      string        `yaml:"-"`
	AttemptTTL     time.Duration `yaml:"attempt_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
	File  string `yaml:"file"`
}

// FileEnv names the environment variable holding the optional YAML config path.
const FileEnv = "PUNCHCLOCK_CONFIG"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is like envInt but accepts zero.
func envInt64(key string, defaultVal int64) int64 {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float. Returns the default value
// if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from embedded defaults, the optional YAML file
// named by PUNCHCLOCK_CONFIG, and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(FileEnv); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is from trusted env
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Site.Lat = envFloat("SITE_LAT", c.Site.Lat)
	c.Site.Lng = envFloat("SITE_LNG", c.Site.Lng)
	c.Site.RadiusMeters = envFloat("SITE_RADIUS_METERS", c.Site.RadiusMeters)
	c.Site.Timezone = envString("SITE_TIMEZONE", c.Site.Timezone)

	c.Rules.OfficeStart = envString("OFFICE_START", c.Rules.OfficeStart)
	c.Rules.LateAfter = envString("LATE_AFTER", c.Rules.LateAfter)
	c.Rules.HalfDayAfter = envString("HALF_DAY_AFTER", c.Rules.HalfDayAfter)

	c.Face.MatchThreshold = envFloat("FACE_MATCH_THRESHOLD", c.Face.MatchThreshold)
	c.Face.DescriptorLength = envInt("FACE_DESCRIPTOR_LENGTH", c.Face.DescriptorLength)
	c.Face.IndexPath = envString("HNSW_INDEX_PATH", c.Face.IndexPath)

	c.Database.Driver = envString("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.SnowflakeNode = envInt64("SNOWFLAKE_NODE", c.Database.SnowflakeNode)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	c.Web.AllowedOrigins = envString("WEB_ALLOWED_ORIGINS", c.Web.AllowedOrigins)
	c.Web.JWTSecret = envString("AUTH_JWT_SECRET", c.Web.JWTSecret)
	c.Web.AttemptTTL = envDuration("ATTEMPT_TTL", c.Web.AttemptTTL)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Dev = envBool("LOG_DEV", c.Log.Dev)
	c.Log.File = envString("LOG_FILE", c.Log.File)
}

// Location returns the site time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown site timezone %q: %w", c.Site.Timezone, err)
	}
	return loc, nil
}

// Geofence returns the configured site.
func (c *Config) Geofence() geofence.Site {
	return geofence.Site{
		Center:       geofence.Coordinates{Lat: c.Site.Lat, Lng: c.Site.Lng},
		RadiusMeters: c.Site.RadiusMeters,
	}
}

// RuleSet parses the attendance boundaries in the site time zone.
func (c *Config) RuleSet() (*rules.RuleSet, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return rules.ParseRuleSet(c.Rules.OfficeStart, c.Rules.LateAfter, c.Rules.HalfDayAfter, loc)
}

// Validate returns all configuration errors that would make punching fail.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Geofence().Center.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("site: %w", err))
	}
	if !(c.Site.RadiusMeters > 0) {
		errs = append(errs, fmt.Errorf("site radius must be positive, got %v", c.Site.RadiusMeters))
	}
	if _, err := c.RuleSet(); err != nil {
		errs = append(errs, err)
	}
	if !(c.Face.MatchThreshold > 0) {
		errs = append(errs, fmt.Errorf("face match threshold must be positive, got %v", c.Face.MatchThreshold))
	}
	if c.Face.DescriptorLength <= 0 {
		errs = append(errs, fmt.Errorf("face descriptor length must be positive, got %d", c.Face.DescriptorLength))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.SnowflakeNode < 0 || c.Database.SnowflakeNode > 1023 {
		errs = append(errs, fmt.Errorf("snowflake node must be within 0-1023, got %d", c.Database.SnowflakeNode))
	}

	return errors.Join(errs...)
}
