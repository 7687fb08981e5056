package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	// Embedded zone database so the reference zone resolves on hosts
	// without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// ErrConfiguration marks a missing or invalid required setting. The
// pipeline never reaches the network when Resolve returns it.
var ErrConfiguration = errors.New("configuration error")

// Environment variables consulted by ApplyEnv.
const (
	EnvFeedURL  = "GOOGLE_CALENDAR_FEED"
	EnvTimezone = "MEALCAL_TIMEZONE"
	EnvOutput   = "MEALCAL_OUTPUT"
)

const (
	defaultTimezone    = "America/Los_Angeles"
	defaultOutput      = "meal.json"
	defaultRefreshCron = "0 * * * *"
	defaultHTTPTimeout = 15 * time.Second
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the watch-mode API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// FeedURL is the iCalendar subscription endpoint. Usually supplied via
	// GOOGLE_CALENDAR_FEED rather than written to disk, since it embeds a
	// private token.
	FeedURL string `yaml:"feed_url" json:"feed_url"`

	// Timezone is the IANA reference zone every event start is normalized
	// into before its time of day is classified.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Output is the path of the schedule file, fully replaced on each run.
	Output string `yaml:"output" json:"output"`

	// IncludeToday adds the "today" convenience entry to the output.
	IncludeToday *bool `yaml:"include_today,omitempty" json:"include_today,omitempty"`

	// ExpandRecurrence expands RRULE events into their occurrences within
	// the current week. When false only each VEVENT's own DTSTART counts.
	ExpandRecurrence *bool `yaml:"expand_recurrence,omitempty" json:"expand_recurrence,omitempty"`

	// HTTPTimeout bounds the feed request.
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`

	// RefreshCron is a cron-style schedule string used by watch mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen is the HTTP listen address for watch mode. Empty disables the
	// HTTP API.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:         defaultTimezone,
		Output:           defaultOutput,
		IncludeToday:     boolPtr(true),
		ExpandRecurrence: boolPtr(true),
		HTTPTimeout:      defaultHTTPTimeout,
		RefreshCron:      defaultRefreshCron,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.FeedURL = strings.TrimSpace(c.FeedURL)
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.IncludeToday == nil {
		c.IncludeToday = boolPtr(true)
	}
	if c.ExpandRecurrence == nil {
		c.ExpandRecurrence = boolPtr(true)
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
}

// ApplyEnv overrides file values with the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvFeedURL); v != "" {
		c.FeedURL = v
	}
	if v := getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := getenv(EnvOutput); v != "" {
		c.Output = v
	}
}

// Validate checks every setting the pipeline depends on. All failures wrap
// ErrConfiguration.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("%w: %s environment variable not set", ErrConfiguration, EnvFeedURL)
	}
	u, err := url.Parse(c.FeedURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: feed url is not an absolute URL", ErrConfiguration)
	}
	// webcal:// is what most calendar apps hand out for the same resource.
	switch u.Scheme {
	case "http", "https", "webcal":
	default:
		return fmt.Errorf("%w: unsupported feed url scheme %q", ErrConfiguration, u.Scheme)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrConfiguration, c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("%w: refresh %q: %v", ErrConfiguration, c.RefreshCron, err)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return fmt.Errorf("%w: basic_auth needs both username and password", ErrConfiguration)
	}
	return nil
}

// Location returns the reference zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FetchURL returns FeedURL with webcal:// rewritten to https://.
func (c *Config) FetchURL() string {
	if rest, ok := strings.CutPrefix(c.FeedURL, "webcal://"); ok {
		return "https://" + rest
	}
	return c.FeedURL
}

// ShouldIncludeToday reports the effective include_today setting.
func (c *Config) ShouldIncludeToday() bool {
	return c.IncludeToday == nil || *c.IncludeToday
}

// ShouldExpandRecurrence reports the effective expand_recurrence setting.
func (c *Config) ShouldExpandRecurrence() bool {
	return c.ExpandRecurrence == nil || *c.ExpandRecurrence
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Resolve builds the effective configuration: YAML file (if path is set),
// then environment overrides, then defaults, then validation.
func Resolve(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if getenv != nil {
		cfg.ApplyEnv(getenv)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".mealcal-config-*.tmp")
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

func boolPtr(b bool) *bool { return &b }
