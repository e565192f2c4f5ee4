package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractorConfig configures the optional text-model source adapter.
type ExtractorConfig struct {
	// Model is the generative model name, e.g. "gemini-2.0-flash".
	Model string `yaml:"model" json:"model"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	// Pages are site paths whose markup defeats the DOM extractor and are
	// instead run through the text model.
	Pages []string `yaml:"pages" json:"pages"`
}

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the festival site root, without a trailing slash.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// VenuePathPrefix is joined with each venue key to form a listing page
	// path, e.g. "/2025-all-events-" + "bearsville".
	VenuePathPrefix string `yaml:"venue_path_prefix" json:"venue_path_prefix"`

	// Venues maps a listing-page URL suffix to the proper venue name. The
	// mapping is also used to infer a venue for observations that carry none.
	Venues map[string]string `yaml:"venues" json:"venues"`

	// ExtraPages are listing page paths that do not follow the venue pattern.
	ExtraPages []string `yaml:"extra_pages" json:"extra_pages"`

	// OverridesPath points at a YAML file of manually curated events.
	// Empty disables the override source.
	OverridesPath string `yaml:"overrides_path" json:"overrides_path"`

	// OutputPath is where the ICS feed is written.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// CacheDir is the base directory for the HTTP page cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogFile, if set, tees log output to this file in addition to stderr.
	LogFile string `yaml:"log_file" json:"log_file"`

	// Timezone is the IANA timezone the festival schedule is published in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ReferenceYear is injected into every parsed date; listing pages never
	// carry a year.
	ReferenceYear int `yaml:"reference_year" json:"reference_year"`

	// DefaultDurationMinutes is applied to every event's start to compute an
	// end time; the source pages publish no end times.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// RefreshCron is a cron-style schedule string used by --schedule mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MinRecords is the smallest record count considered a plausible full
	// harvest; used only for a warning, the run still succeeds above zero.
	MinRecords int `yaml:"min_records" json:"min_records"`

	// MaxDetailFetches caps how many event detail pages are fetched per run
	// for description/venue enrichment.
	MaxDetailFetches int `yaml:"max_detail_fetches" json:"max_detail_fetches"`

	// Extractor, if non-nil, enables the text-model source adapter.
	Extractor *ExtractorConfig `yaml:"extractor,omitempty" json:"extractor,omitempty"`
}

// DefaultConfig returns an in-memory default configuration matching the 2025
// Woodstock Film Festival site layout.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://woodstockfilmfestival.org",
		VenuePathPrefix: "/2025-all-events-",
		Venues: map[string]string{
			"bearsville":           "Bearsville Theater",
			"woodstock-playhouse":  "Woodstock Playhouse",
			"tinker-street-cinema": "Tinker Street Cinema",
			"orpheum":              "Orpheum Theatre",
			"upstate-midtown":      "Upstate Midtown",
			"rosendale":            "Rosendale Theatre",
			"assembly":             "Assembly",
			"wcc":                  "Woodstock Community Center [SHORTS]",
			"colony":               "Colony",
			"hvlgbtq":              "Hudson Valley LGBTQ+ Community Center",
		},
		ExtraPages: []string{
			"/2025-panels",
			"/2025-shorts",
			"/2025-special-events",
			"/2025-all-white-feather-farm",
		},
		OverridesPath:          "",
		OutputPath:             "festival.ics",
		CacheDir:               "./var/page-cache",
		Timezone:               "America/New_York",
		ReferenceYear:          2025,
		DefaultDurationMinutes: 120,
		RefreshCron:            "0 * * * *",
		MinRecords:             10,
		MaxDetailFetches:       50,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.VenuePathPrefix == "" {
		c.VenuePathPrefix = def.VenuePathPrefix
	}
	if c.Venues == nil {
		c.Venues = def.Venues
	}
	if c.ExtraPages == nil {
		c.ExtraPages = def.ExtraPages
	}
	if c.OutputPath == "" {
		c.OutputPath = def.OutputPath
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.ReferenceYear <= 0 {
		c.ReferenceYear = def.ReferenceYear
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = def.DefaultDurationMinutes
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.MinRecords <= 0 {
		c.MinRecords = def.MinRecords
	}
	if c.MaxDetailFetches <= 0 {
		c.MaxDetailFetches = def.MaxDetailFetches
	}
}

// PageURLs returns the full set of listing page URLs to traverse: one per
// venue key (in sorted key order for deterministic traversal) plus the extra
// pages verbatim.
func (c *Config) PageURLs() []string {
	keys := make([]string, 0, len(c.Venues))
	for k := range c.Venues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	urls := make([]string, 0, len(keys)+len(c.ExtraPages))
	for _, k := range keys {
		urls = append(urls, c.BaseURL+c.VenuePathPrefix+k)
	}
	for _, p := range c.ExtraPages {
		urls = append(urls, c.BaseURL+p)
	}
	return urls
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

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".festcal-config-*.tmp")
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

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
