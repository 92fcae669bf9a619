// Package config loads the YAML configuration and its environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"gamecal/internal/classify"
	"gamecal/internal/model"
)

const (
	FeedGoogle  = "google"
	FeedICS     = "ics"
	FeedRecords = "records"

	SourceWebhook  = "webhook"
	SourceDatabase = "database"
	SourceNone     = "none"

	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "GAMECAL_"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type GoogleConfig struct {
	APIKey     string `yaml:"api_key" json:"-"`
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// Endpoint overrides the API base URL; empty means Google.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// FeedConfig selects where raw calendar events come from.
type FeedConfig struct {
	// Kind is one of "google", "ics" or "records".
	Kind   string       `yaml:"kind" json:"kind"`
	Google GoogleConfig `yaml:"google" json:"google"`
	ICS    []ICSConfig  `yaml:"ics" json:"ics"`
}

// SourceConfig selects where the authoritative record list comes from.
type SourceConfig struct {
	// Kind is one of "webhook", "database" or "none".
	Kind        string `yaml:"kind" json:"kind"`
	WebhookURL  string `yaml:"webhook_url" json:"-"`
	DatabaseDSN string `yaml:"database_dsn" json:"-"`
}

type CacheConfig struct {
	// Kind is one of "file", "sqlite" or "memory".
	Kind string `yaml:"kind" json:"kind"`
	// Path is a directory for "file" and a database file for "sqlite".
	Path string `yaml:"path" json:"path"`
	// TTL accepts Go durations plus day and week units ("2h", "1d").
	TTL string `yaml:"ttl" json:"ttl"`
}

// CategoryConfig is one row of the classification table.
type CategoryConfig struct {
	ID       string   `yaml:"id" json:"id"`
	Label    string   `yaml:"label" json:"label"`
	Color    string   `yaml:"color" json:"color"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// FallbackRecord is served when the record source is unreachable.
type FallbackRecord struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Link        string `yaml:"link,omitempty" json:"link,omitempty"`
	Image       string `yaml:"image,omitempty" json:"image,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone events are reported in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the robfig/cron spec of the forced record refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the default number of future days served.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Feed   FeedConfig   `yaml:"feed" json:"feed"`
	Source SourceConfig `yaml:"source" json:"source"`
	Cache  CacheConfig  `yaml:"cache" json:"cache"`

	Fallback        []FallbackRecord `yaml:"fallback" json:"fallback"`
	Categories      []CategoryConfig `yaml:"categories" json:"categories"`
	GeneralKeywords []string         `yaml:"general_keywords" json:"general_keywords"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	SentryDSN string `yaml:"sentry_dsn,omitempty" json:"-"`
	Env       string `yaml:"env" json:"env"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing or invalid values with defaults so that
// partially filled files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "@every 2h"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 42
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	switch c.Feed.Kind {
	case FeedGoogle, FeedICS, FeedRecords:
	default:
		c.Feed.Kind = FeedGoogle
	}
	if c.Feed.ICS == nil {
		c.Feed.ICS = []ICSConfig{}
	}

	switch c.Source.Kind {
	case SourceWebhook, SourceDatabase, SourceNone:
	default:
		c.Source.Kind = SourceWebhook
	}

	switch c.Cache.Kind {
	case CacheFile, CacheSQLite, CacheMemory:
	default:
		c.Cache.Kind = CacheFile
	}
	if c.Cache.Path == "" {
		if c.Cache.Kind == CacheSQLite {
			c.Cache.Path = "./var/gamecal.db"
		} else {
			c.Cache.Path = "./var/cache"
		}
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "2h"
	}

	if c.Fallback == nil {
		c.Fallback = []FallbackRecord{
			{Name: "Steam Racing Fest", Description: "Fallback event description", Link: "https://store.steampowered.com/"},
			{Name: "Steam 4X Fest", Description: "Fallback event description", Link: "https://store.steampowered.com/"},
		}
	}

	if len(c.Categories) == 0 {
		def := classify.DefaultTable()
		c.Categories = make([]CategoryConfig, 0, len(def.Rules))
		for _, r := range def.Rules {
			c.Categories = append(c.Categories, CategoryConfig{
				ID:       r.Category.ID,
				Label:    r.Category.Label,
				Color:    r.Category.Color,
				Keywords: r.Keywords,
			})
		}
		if c.GeneralKeywords == nil {
			c.GeneralKeywords = def.General
		}
	}
	if c.GeneralKeywords == nil {
		c.GeneralKeywords = []string{}
	}

	if c.Env == "" {
		c.Env = "production"
	}
}

// CacheTTL parses Cache.TTL.
func (c *Config) CacheTTL() (time.Duration, error) {
	d, err := str2duration.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("cache.ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("cache.ttl must be positive, got %q", c.Cache.TTL)
	}
	return d, nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ClassifierTable turns the configured categories into a classify.Table.
func (c *Config) ClassifierTable() classify.Table {
	def := classify.DefaultTable()
	t := classify.Table{
		General:         c.GeneralKeywords,
		GeneralCategory: def.GeneralCategory,
		DefaultCategory: def.DefaultCategory,
	}
	for _, cat := range c.Categories {
		t.Rules = append(t.Rules, classify.Rule{
			Category: model.Category{ID: cat.ID, Label: cat.Label, Color: cat.Color},
			Keywords: cat.Keywords,
		})
	}
	return t
}

// FallbackRecords converts Fallback to records. All of them are visible.
func (c *Config) FallbackRecords() []model.Record {
	out := make([]model.Record, 0, len(c.Fallback))
	for _, f := range c.Fallback {
		out = append(out, model.Record{
			Name:        f.Name,
			Show:        model.Bool(true),
			Description: f.Description,
			Link:        f.Link,
			Image:       f.Image,
		})
	}
	return out
}

// ApplyEnv overrides fields from GAMECAL_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := map[string]*string{
		"LISTEN":             &c.Listen,
		"TIMEZONE":           &c.Timezone,
		"LOG_LEVEL":          &c.LogLevel,
		"GOOGLE_API_KEY":     &c.Feed.Google.APIKey,
		"GOOGLE_CALENDAR_ID": &c.Feed.Google.CalendarID,
		"WEBHOOK_URL":        &c.Source.WebhookURL,
		"DATABASE_DSN":       &c.Source.DatabaseDSN,
		"SENTRY_DSN":         &c.SentryDSN,
		"CACHE_TTL":          &c.Cache.TTL,
		"ENV":                &c.Env,
	}
	for name, dst := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("%sCACHE_TTL: %w", EnvPrefix, err)
	}
	return nil
}

// Load reads the YAML file at path and applies environment overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and used.
//   - Environment overrides are applied after the file and never saved.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gamecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
