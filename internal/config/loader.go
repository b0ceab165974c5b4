// Package config loads pocketcal settings from a YAML file with an
// environment overlay.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. POCKETCAL_HTTP_ADDR.
const EnvPrefix = "POCKETCAL"

// DefaultPath is read when no explicit file is given.
const DefaultPath = "pocketcal.yaml"

// Config captures every tunable of the process.
type Config struct {
	HTTP         HTTP         `yaml:"http" split_words:"true"`
	Storage      Storage      `yaml:"storage" split_words:"true"`
	Remote       Remote       `yaml:"remote" split_words:"true"`
	Sync         Sync         `yaml:"sync" split_words:"true"`
	Connectivity Connectivity `yaml:"connectivity" split_words:"true"`
	Extraction   Extraction   `yaml:"extraction" split_words:"true"`
	Instances    Instances    `yaml:"instances" split_words:"true"`
	Timezone     string       `yaml:"timezone" split_words:"true"`
	Log          Log          `yaml:"log" split_words:"true"`
}

type HTTP struct {
	Addr         string        `yaml:"addr" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
}

type Storage struct {
	Driver string `yaml:"driver" split_words:"true"`
	Path   string `yaml:"path" split_words:"true"`
}

type Remote struct {
	Driver  string        `yaml:"driver" split_words:"true"`
	BaseURL string        `yaml:"base_url" split_words:"true"`
	APIKey  string        `yaml:"api_key" split_words:"true"`
	DSN     string        `yaml:"dsn" split_words:"true"`
	Timeout time.Duration `yaml:"timeout" split_words:"true"`
}

type Sync struct {
	Schedule   string        `yaml:"schedule" split_words:"true"`
	UserID     string        `yaml:"user_id" split_words:"true"`
	MaxBackoff time.Duration `yaml:"max_backoff" split_words:"true"`
}

type Connectivity struct {
	ProbeURL string        `yaml:"probe_url" split_words:"true"`
	Interval time.Duration `yaml:"interval" split_words:"true"`
}

type Extraction struct {
	BaseURL string `yaml:"base_url" split_words:"true"`
	APIKey  string `yaml:"api_key" split_words:"true"`
	Model   string `yaml:"model" split_words:"true"`
}

type Instances struct {
	MaxPerEvent int `yaml:"max_per_event" split_words:"true"`
	CacheSize   int `yaml:"cache_size" split_words:"true"`
}

type Log struct {
	Level string `yaml:"level" split_words:"true"`
}

// Storage and remote drivers.
const (
	StorageMemory  = "memory"
	StorageSQLite  = "sqlite"
	RemoteNone     = "none"
	RemoteREST     = "rest"
	RemotePostgres = "postgres"
)

// Load reads path (DefaultPath when empty), overlays POCKETCAL_* variables,
// fills defaults and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	c.HTTP.Addr = defaultString(c.HTTP.Addr, "127.0.0.1:8080")
	c.HTTP.ReadTimeout = defaultDuration(c.HTTP.ReadTimeout, 15*time.Second)
	c.HTTP.WriteTimeout = defaultDuration(c.HTTP.WriteTimeout, 30*time.Second)

	c.Storage.Driver = strings.ToLower(defaultString(c.Storage.Driver, StorageSQLite))
	c.Storage.Path = defaultString(c.Storage.Path, "pocketcal.db")

	c.Remote.Driver = strings.ToLower(defaultString(c.Remote.Driver, RemoteNone))
	c.Remote.Timeout = defaultDuration(c.Remote.Timeout, 30*time.Second)

	c.Sync.Schedule = defaultString(c.Sync.Schedule, "*/15 * * * *")
	c.Sync.MaxBackoff = defaultDuration(c.Sync.MaxBackoff, time.Hour)

	c.Connectivity.Interval = defaultDuration(c.Connectivity.Interval, 30*time.Second)

	c.Instances.MaxPerEvent = defaultInt(c.Instances.MaxPerEvent, 500)
	c.Instances.CacheSize = defaultInt(c.Instances.CacheSize, 64)

	c.Timezone = defaultString(c.Timezone, "Local")
	c.Log.Level = strings.ToLower(defaultString(c.Log.Level, "info"))
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	default:
		add("storage.driver %q must be memory or sqlite", c.Storage.Driver)
	}

	switch c.Remote.Driver {
	case RemoteNone:
	case RemoteREST:
		if err := checkURL(c.Remote.BaseURL); err != nil {
			add("remote.base_url: %v", err)
		}
	case RemotePostgres:
		if strings.TrimSpace(c.Remote.DSN) == "" {
			add("remote.dsn is required for the postgres driver")
		}
	default:
		add("remote.driver %q must be none, rest or postgres", c.Remote.Driver)
	}

	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		add("sync.schedule %q: %v", c.Sync.Schedule, err)
	}
	if c.Remote.Driver != RemoteNone && c.Sync.UserID == "" {
		add("sync.user_id is required when a remote is configured")
	}
	if c.Connectivity.ProbeURL != "" {
		if err := checkURL(c.Connectivity.ProbeURL); err != nil {
			add("connectivity.probe_url: %v", err)
		}
	}
	if c.Extraction.BaseURL != "" {
		if err := checkURL(c.Extraction.BaseURL); err != nil {
			add("extraction.base_url: %v", err)
		}
	}
	if c.Instances.MaxPerEvent < 0 {
		add("instances.max_per_event must not be negative")
	}
	if c.Instances.CacheSize < 0 {
		add("instances.cache_size must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		add("timezone %q: %v", c.Timezone, err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q must be debug, info, warn or error", c.Log.Level)
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves Timezone. Call after Validate.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is missing")
	}
	return nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func defaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
