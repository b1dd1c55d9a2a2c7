// Package config loads the YAML configuration file and applies environment
// overrides on top of it.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"spothunter/feeds"
	"spothunter/filter"
	"spothunter/geocache"
	"spothunter/spot"
)

// DefaultPath is the config file read when no -config flag or
// SPOTHUNTER_CONFIG is given.
const DefaultPath = "spothunter.yaml"

// Config is the full process configuration.
type Config struct {
	Home     spot.Point            `yaml:"home"`
	Poll     PollConfig            `yaml:"poll"`
	Feeds    map[string]FeedConfig `yaml:"feeds"`
	Filter   FilterConfig          `yaml:"filter"`
	GeoCache GeoCacheConfig        `yaml:"geo_cache"`
	Logging  LoggingConfig         `yaml:"logging"`
	HTTP     HTTPConfig            `yaml:"http"`
	UI       UIConfig              `yaml:"ui"`
}

// PollConfig controls the fetch cadence.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Debounce time.Duration `yaml:"debounce"`
}

// FeedConfig configures one feed. A nil Enabled means enabled; an empty URL
// means the built-in endpoint.
type FeedConfig struct {
	Enabled *bool  `yaml:"enabled"`
	URL     string `yaml:"url"`
	Strict  bool   `yaml:"strict"`
}

// FilterConfig holds the startup filter and where the applied one is saved.
type FilterConfig struct {
	Bands     []string `yaml:"bands"`
	Modes     []string `yaml:"modes"`
	StateFile string   `yaml:"state_file"`
}

// GeoCacheConfig selects and tunes the summit location cache.
type GeoCacheConfig struct {
	Backend   string        `yaml:"backend"` // pebble or sqlite
	Path      string        `yaml:"path"`
	RegionURL string        `yaml:"region_url"`
	LRUSize   int           `yaml:"lru_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LoggingConfig controls the root logger and its sinks.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // console or json
	Dir           string `yaml:"dir"`    // empty disables the daily file sink
	RetentionDays int    `yaml:"retention_days"`
	BufferLines   int    `yaml:"buffer_lines"`
}

// HTTPConfig controls the JSON/metrics server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// UIConfig selects the display.
type UIConfig struct {
	Mode string `yaml:"mode"` // auto, tview or headless
}

// FeedSpec is an enabled feed resolved against defaults.
type FeedSpec struct {
	Source spot.Source
	URL    string
	Strict bool
}

// Default returns the built-in configuration.
func Default() *Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = cacheDir
	}
	return &Config{
		Poll: PollConfig{
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
			Debounce: 10 * time.Second,
		},
		Feeds: map[string]FeedConfig{},
		Filter: FilterConfig{
			Bands:     []string{"20m", "15m"},
			Modes:     []string{"SSB"},
			StateFile: filepath.Join(configDir, "spothunter", "filter.yaml"),
		},
		GeoCache: GeoCacheConfig{
			Backend:   "pebble",
			Path:      filepath.Join(cacheDir, "spothunter", "geocache"),
			RegionURL: geocache.DefaultRegionURL,
			LRUSize:   4096,
			Timeout:   5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "console",
			RetentionDays: 7,
			BufferLines:   1000,
		},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8073"},
		UI:   UIConfig{Mode: "auto"},
	}
}

// Load reads filename over the defaults. An empty filename returns the
// defaults. A missing file is reported wrapping os.ErrNotExist.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// envOverrides mirrors the variables the tool has always honoured plus a few
// process-level ones. Numbers stay strings so "unset" and "zero" differ.
type envOverrides struct {
	UpdatePeriod string   `env:"SPOT_UPDATE_PERIOD"` // seconds
	Bands        []string `env:"PREFERRED_BANDS"`
	Modes        []string `env:"PREFERRED_MODES"`
	Latitude     string   `env:"MY_LATITUDE"`
	Longitude    string   `env:"MY_LONGITUDE"`
	LogLevel     string   `env:"SPOTHUNTER_LOG_LEVEL"`
	HTTPAddr     string   `env:"SPOTHUNTER_HTTP_ADDR"`
	UIMode       string   `env:"SPOTHUNTER_UI"`
}

// ApplyEnv overlays environment variables read through lookuper. A nil
// lookuper reads the process environment.
func (c *Config) ApplyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: lookuper}); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}
	if env.UpdatePeriod != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(env.UpdatePeriod))
		if err != nil {
			return fmt.Errorf("SPOT_UPDATE_PERIOD: %w", err)
		}
		c.Poll.Interval = time.Duration(secs) * time.Second
	}
	if len(env.Bands) > 0 {
		c.Filter.Bands = trimAll(env.Bands)
	}
	if len(env.Modes) > 0 {
		c.Filter.Modes = trimAll(env.Modes)
	}
	if env.Latitude != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(env.Latitude), 64)
		if err != nil {
			return fmt.Errorf("MY_LATITUDE: %w", err)
		}
		c.Home.Lat = v
	}
	if env.Longitude != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(env.Longitude), 64)
		if err != nil {
			return fmt.Errorf("MY_LONGITUDE: %w", err)
		}
		c.Home.Lon = v
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.HTTPAddr != "" {
		c.HTTP.Addr = env.HTTPAddr
	}
	if env.UIMode != "" {
		c.UI.Mode = env.UIMode
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// Validate reports every configuration error found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive"))
	}
	if c.Poll.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("poll.timeout must be positive"))
	}
	if c.Poll.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("poll.debounce must be positive"))
	}
	if c.Home.Lat < -90 || c.Home.Lat > 90 || c.Home.Lon < -180 || c.Home.Lon > 180 {
		errs = append(errs, fmt.Errorf("home %.4f,%.4f is out of range", c.Home.Lat, c.Home.Lon))
	}
	for key := range c.Feeds {
		if _, ok := spot.ParseSource(key); !ok {
			errs = append(errs, fmt.Errorf("feeds: unknown feed %q", key))
		}
	}
	switch c.GeoCache.Backend {
	case "pebble", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("geo_cache.backend %q is not pebble or sqlite", c.GeoCache.Backend))
	}
	if c.GeoCache.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("geo_cache.timeout must be positive"))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not console or json", c.Logging.Format))
	}
	switch c.UI.Mode {
	case "auto", "tview", "headless":
	default:
		errs = append(errs, fmt.Errorf("ui.mode %q is not auto, tview or headless", c.UI.Mode))
	}
	if _, err := c.BuildFilter(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BuildFilter validates the configured bands and modes.
func (c *Config) BuildFilter() (*filter.Filter, error) {
	return filter.New(c.Filter.Bands, c.Filter.Modes)
}

// EnabledFeeds returns the feeds to poll in a stable order.
func (c *Config) EnabledFeeds() []FeedSpec {
	var out []FeedSpec
	for _, src := range spot.Sources() {
		fc := c.Feeds[src.Key()]
		if fc.Enabled != nil && !*fc.Enabled {
			continue
		}
		url := fc.URL
		if url == "" {
			url = feeds.DefaultURLs[src]
		}
		out = append(out, FeedSpec{Source: src, URL: url, Strict: fc.Strict})
	}
	return out
}

// Lines summarizes the configuration for the startup log.
func (c *Config) Lines() []string {
	lines := []string{
		fmt.Sprintf("Home: %.4f, %.4f", c.Home.Lat, c.Home.Lon),
		fmt.Sprintf("Poll: every %s (timeout %s, debounce %s)", c.Poll.Interval, c.Poll.Timeout, c.Poll.Debounce),
	}
	var names []string
	for _, f := range c.EnabledFeeds() {
		name := string(f.Source)
		if f.Strict {
			name += " (strict)"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	lines = append(lines, "Feeds: "+strings.Join(names, ", "))
	lines = append(lines, fmt.Sprintf("Filter: bands=%s modes=%s",
		strings.Join(c.Filter.Bands, ","), strings.Join(c.Filter.Modes, ",")))
	lines = append(lines, fmt.Sprintf("Geo cache: %s at %s", c.GeoCache.Backend, c.GeoCache.Path))
	if c.HTTP.Addr != "" {
		lines = append(lines, "HTTP: "+c.HTTP.Addr)
	}
	return lines
}
