package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	appLog "festcal/internal/log"
)

// overrideEvent is one manually curated event in the overrides YAML file.
// Either start (RFC3339) or date (free text, normalized downstream) must be
// present; everything else is optional.
type overrideEvent struct {
	Title       string `yaml:"title"`
	Start       string `yaml:"start,omitempty"`
	Date        string `yaml:"date,omitempty"`
	Venue       string `yaml:"venue,omitempty"`
	Description string `yaml:"description,omitempty"`
	URL         string `yaml:"url,omitempty"`
	SourceURL   string `yaml:"source_url,omitempty"`
}

type overrideFile struct {
	Events []overrideEvent `yaml:"events"`
}

// StaticAdapter yields manually curated events from a YAML file. It covers
// listings the site omits or renders wrong; entries flow through the same
// builder and merge path as scraped observations.
type StaticAdapter struct {
	Path string
}

func (a *StaticAdapter) Name() string { return "static:" + a.Path }

func (a *StaticAdapter) Observations(_ context.Context) ([]RawObservation, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("static: read %s: %w", a.Path, err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("static: parse %s: %w", a.Path, err)
	}

	out := make([]RawObservation, 0, len(file.Events))
	for _, ev := range file.Events {
		obs := RawObservation{
			Title:       ev.Title,
			DateText:    ev.Date,
			Venue:       ev.Venue,
			Description: ev.Description,
			URL:         ev.URL,
			SourceURL:   ev.SourceURL,
		}
		if obs.SourceURL == "" {
			obs.SourceURL = a.Path
		}
		if ev.Start != "" {
			t, perr := time.Parse(time.RFC3339, ev.Start)
			if perr != nil {
				// Leave Start zero; the builder falls back to date text and
				// drops the entry if that is missing too.
				appLog.Warn("static: bad start timestamp, falling back to date text",
					"path", a.Path, "title", ev.Title, "start", ev.Start)
			} else {
				obs.Start = t
			}
		}
		out = append(out, obs)
	}

	appLog.Info("static overrides loaded", "path", a.Path, "payload_count", len(out))
	return out, nil
}
