package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`events:
  - title: "Secret Screening"
    start: "2025-10-18T21:00:00-04:00"
    venue: "Colony"
    url: "https://example.org/secret"
  - title: "Panel: The State of Indie Film"
    date: "Sat, Oct 18, 2:00 PM"
    source_url: "https://example.org/2025-panels"
  - title: "Broken Clock"
    start: "not a timestamp"
    date: "Oct 19, 1:00 PM"
`), 0o600))

	a := &StaticAdapter{Path: path}
	obs, err := a.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 3)

	first := obs[0]
	assert.Equal(t, "Secret Screening", first.Title)
	want := time.Date(2025, time.October, 18, 21, 0, 0, 0, time.FixedZone("", -4*3600))
	assert.True(t, want.Equal(first.Start))
	assert.Equal(t, "Colony", first.Venue)
	assert.Equal(t, path, first.SourceURL, "missing provenance defaults to the file itself")

	second := obs[1]
	assert.True(t, second.Start.IsZero())
	assert.Equal(t, "Sat, Oct 18, 2:00 PM", second.DateText)
	assert.Equal(t, "https://example.org/2025-panels", second.SourceURL)

	// A bad RFC3339 start degrades to the free-text date.
	third := obs[2]
	assert.True(t, third.Start.IsZero())
	assert.Equal(t, "Oct 19, 1:00 PM", third.DateText)
}

func TestStaticAdapter_MissingFile(t *testing.T) {
	a := &StaticAdapter{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := a.Observations(context.Background())
	assert.Error(t, err)
}
