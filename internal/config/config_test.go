package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FillsDefaults(t *testing.T) {
	c := &Config{BaseURL: "https://example.org/"}
	c.Normalize()

	assert.Equal(t, "https://example.org", c.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, "/2025-all-events-", c.VenuePathPrefix)
	assert.NotEmpty(t, c.Venues)
	assert.Equal(t, "America/New_York", c.Timezone)
	assert.Equal(t, 2025, c.ReferenceYear)
	assert.Equal(t, 120, c.DefaultDurationMinutes)
	assert.Equal(t, "0 * * * *", c.RefreshCron)
	assert.Equal(t, 10, c.MinRecords)
	assert.Equal(t, 50, c.MaxDetailFetches)
	assert.Nil(t, c.Extractor, "the text-model source stays opt-in")
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	c := &Config{
		Timezone:      "UTC",
		ReferenceYear: 2026,
		MinRecords:    3,
		Venues:        map[string]string{"x": "X"},
	}
	c.Normalize()

	assert.Equal(t, "UTC", c.Timezone)
	assert.Equal(t, 2026, c.ReferenceYear)
	assert.Equal(t, 3, c.MinRecords)
	assert.Equal(t, map[string]string{"x": "X"}, c.Venues)
}

func TestPageURLs_Deterministic(t *testing.T) {
	c := &Config{
		BaseURL:         "https://example.org",
		VenuePathPrefix: "/2025-all-events-",
		Venues: map[string]string{
			"colony":     "Colony",
			"bearsville": "Bearsville Theater",
			"assembly":   "Assembly",
		},
		ExtraPages: []string{"/2025-panels"},
	}

	want := []string{
		"https://example.org/2025-all-events-assembly",
		"https://example.org/2025-all-events-bearsville",
		"https://example.org/2025-all-events-colony",
		"https://example.org/2025-panels",
	}
	assert.Equal(t, want, c.PageURLs())
	assert.Equal(t, want, c.PageURLs(), "repeat traversal order is identical")
}

func TestLoad_FirstRunCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "festcal.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().BaseURL, cfg.BaseURL)

	info, err := os.Stat(path)
	require.NoError(t, err, "default config file is written on first run")
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_PartialFileNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "festcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://example.org/\nmin_records: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org", cfg.BaseURL)
	assert.Equal(t, 2, cfg.MinRecords)
	assert.Equal(t, "America/New_York", cfg.Timezone, "missing fields get defaults")
}

func TestLoad_MalformedFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "festcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "festcal.yaml")

	in := DefaultConfig()
	in.OutputPath = "/var/feeds/festival.ics"
	in.Extractor = &ExtractorConfig{
		Model:     "gemini-2.0-flash",
		APIKeyEnv: "GEMINI_API_KEY",
		Pages:     []string{"/2025-special-events"},
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, in.OutputPath, out.OutputPath)
	assert.Equal(t, in.Venues, out.Venues)
	require.NotNil(t, out.Extractor)
	assert.Equal(t, in.Extractor.Model, out.Extractor.Model)
	assert.Equal(t, in.Extractor.Pages, out.Extractor.Pages)
}
