package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"weekcal/internal/render"
	"weekcal/internal/weekly"
)

// FetchConfig tunes the outbound calendar request.
type FetchConfig struct {
	// Timeout bounds a single fetch, e.g. "15s".
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MaxBytes caps the calendar payload size.
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
	// UserAgent is sent with every fetch.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// ScheduleConfig controls the weekly image.
type ScheduleConfig struct {
	Title string `yaml:"title" json:"title"`
	// Theme is "light" or "dark".
	Theme string `yaml:"theme" json:"theme"`
	// BackgroundImage is an optional PNG/JPEG drawn behind the schedule.
	BackgroundImage string `yaml:"background_image" json:"background_image"`
	// PrimaryLocation is listed first in grouped text output.
	PrimaryLocation string `yaml:"primary_location" json:"primary_location"`

	// Styles maps a location tag (case-insensitive) onto a slot style.
	Styles       map[string]weekly.Style `yaml:"styles" json:"styles"`
	DefaultStyle weekly.Style            `yaml:"default_style" json:"default_style"`
}

// RasterConfig controls SVG to PNG conversion.
type RasterConfig struct {
	Width   int           `yaml:"width" json:"width"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RemoteURL points at a running Chromium DevTools endpoint. Empty means
	// launch a local headless browser.
	RemoteURL string `yaml:"remote_url" json:"remote_url"`
}

// ExportConfig describes the scheduled export of the current week.
type ExportConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Refresh is a cron expression, e.g. "0 8 * * MON".
	Refresh string `yaml:"refresh" json:"refresh"`
	// URL is the calendar feed to export.
	URL string `yaml:"url" json:"url"`
	// OutputDir receives schedule.svg, schedule.png and schedule.txt.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// Format is the text line pattern; empty uses the default.
	Format string `yaml:"format" json:"format"`
	// Theme overrides schedule.theme for exported images.
	Theme string `yaml:"theme" json:"theme"`
	// Grouped writes text grouped by location.
	Grouped bool `yaml:"grouped" json:"grouped"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to align request dates to day
	// boundaries (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" json:"log_format"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// ExpandRecurring turns RRULE events into concrete occurrences.
	ExpandRecurring *bool `yaml:"expand_recurring" json:"expand_recurring"`
	// MaxOccurrences caps the occurrences of a single recurring event.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Raster   RasterConfig   `yaml:"raster" json:"raster"`
	Export   ExportConfig   `yaml:"export" json:"export"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	styles := weekly.DefaultStyles()
	expand := true
	return &Config{
		Listen:    "127.0.0.1:8080",
		Timezone:  "UTC",
		LogLevel:  "info",
		LogFormat: "text",
		Fetch: FetchConfig{
			Timeout:   15 * time.Second,
			MaxBytes:  10 << 20,
			UserAgent: "weekcal/1.0",
		},
		ExpandRecurring: &expand,
		MaxOccurrences:  500,
		Schedule: ScheduleConfig{
			Title:           weekly.DefaultWeekTitle,
			Theme:           "light",
			BackgroundImage: "",
			PrimaryLocation: "twitch",
			Styles:          styles.ByLocation,
			DefaultStyle:    styles.Default,
		},
		Raster: RasterConfig{
			Width:   800,
			Timeout: 30 * time.Second,
		},
		Export: ExportConfig{
			Enabled:   false,
			Refresh:   "0 8 * * MON",
			OutputDir: "./out",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = def.LogFormat
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = def.Fetch.Timeout
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = def.Fetch.MaxBytes
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = def.Fetch.UserAgent
	}

	if c.ExpandRecurring == nil {
		c.ExpandRecurring = def.ExpandRecurring
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = def.MaxOccurrences
	}

	if c.Schedule.Title == "" {
		c.Schedule.Title = def.Schedule.Title
	}
	if c.Schedule.Theme == "" {
		c.Schedule.Theme = def.Schedule.Theme
	}
	if c.Schedule.PrimaryLocation == "" {
		c.Schedule.PrimaryLocation = def.Schedule.PrimaryLocation
	}
	if c.Schedule.Styles == nil {
		c.Schedule.Styles = def.Schedule.Styles
	} else {
		// Keys are matched lower-case.
		lowered := make(map[string]weekly.Style, len(c.Schedule.Styles))
		for k, v := range c.Schedule.Styles {
			lowered[strings.ToLower(strings.TrimSpace(k))] = v
		}
		c.Schedule.Styles = lowered
	}
	if c.Schedule.DefaultStyle.Background == "" {
		c.Schedule.DefaultStyle.Background = def.Schedule.DefaultStyle.Background
	}

	if c.Raster.Width <= 0 {
		c.Raster.Width = def.Raster.Width
	}
	if c.Raster.Timeout <= 0 {
		c.Raster.Timeout = def.Raster.Timeout
	}

	if c.Export.Refresh == "" {
		c.Export.Refresh = def.Export.Refresh
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = def.Export.OutputDir
	}
	if c.Export.Theme == "" {
		c.Export.Theme = c.Schedule.Theme
	}
}

// Styles returns the slot styles in the shape the layout engine expects.
func (c *Config) Styles() weekly.Styles {
	return weekly.Styles{
		ByLocation: c.Schedule.Styles,
		Default:    c.Schedule.DefaultStyle,
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, errors.New("timezone: "+err.Error()))
	}
	for _, th := range []struct{ field, name string }{
		{"schedule.theme", c.Schedule.Theme},
		{"export.theme", c.Export.Theme},
	} {
		if th.name == "" {
			continue
		}
		if _, ok := render.ThemeByName(th.name); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown theme %q (available: %s)",
				th.field, th.name, strings.Join(render.ThemeNames(), ", ")))
		}
	}
	if c.Export.Enabled && c.Export.URL == "" {
		errs = append(errs, errors.New("export.url is required when export is enabled"))
	}
	return errors.Join(errs...)
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
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
