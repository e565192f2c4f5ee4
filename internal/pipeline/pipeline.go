// Package pipeline orchestrates one full run: traverse all sources in order,
// build and register candidates, enrich from detail pages, and synchronize
// the output feed. Per-candidate and per-source failures are local; only a
// run that ends with zero authoritative records fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"festcal/internal/build"
	"festcal/internal/config"
	"festcal/internal/enrich"
	"festcal/internal/feed"
	appLog "festcal/internal/log"
	"festcal/internal/registry"
	"festcal/internal/source"
	"festcal/internal/when"
)

// Pipeline wires the run-scoped stages together. Zero-value collaborator
// fields are filled from the config; tests inject fakes.
type Pipeline struct {
	Config *config.Config

	// Renderer produces rendered page HTML. Nil means headless Chromium.
	Renderer source.Renderer
	// Fetcher retrieves detail pages for enrichment. Nil means the
	// cache-backed HTTP fetcher.
	Fetcher enrich.PageFetcher
	// Adapters overrides the config-derived source list. Nil means derive.
	Adapters []source.Adapter
}

// Run executes one complete harvest-merge-publish cycle.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.Config

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("pipeline: load timezone %q: %w", cfg.Timezone, err)
	}

	builder := build.New(when.New(cfg.ReferenceYear, loc), cfg.Venues)
	reg := registry.New()

	adapters := p.Adapters
	if adapters == nil {
		adapters = p.deriveAdapters()
	}

	var payloads, dropped, merged, enrichedDup int

	for _, ad := range adapters {
		raws, err := ad.Observations(ctx)
		if err != nil {
			// One bad source never aborts the run.
			appLog.Error("source failed, continuing", err, "source", ad.Name())
			continue
		}
		payloads += len(raws)

		for _, raw := range raws {
			obs, berr := builder.Build(raw)
			if berr != nil {
				dropped++
				if errors.Is(berr, when.ErrUnparseable) {
					appLog.Debug("candidate dropped: no usable time",
						"source", ad.Name(), "title", raw.Title, "date_text", raw.DateText)
				} else {
					appLog.Debug("candidate dropped: incomplete",
						"source", ad.Name(), "title", raw.Title)
				}
				continue
			}

			_, isNew, changed := reg.Register(obs)
			if !isNew {
				if changed {
					merged++
				} else {
					enrichedDup++
				}
			}
		}
	}

	appLog.Info("registration completed",
		"payloads", payloads,
		"records", reg.Len(),
		"dropped", dropped,
		"merged", merged,
		"exact_duplicates", enrichedDup,
	)

	if reg.Len() == 0 {
		// Do not touch a previously good feed.
		return fmt.Errorf("pipeline: %w", feed.ErrNoRecords)
	}
	if reg.Len() < cfg.MinRecords {
		appLog.Warn("suspiciously few records; publishing anyway",
			"records", reg.Len(), "min_expected", cfg.MinRecords)
	}

	records := reg.Records()

	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = source.NewFetcher(cfg.CacheDir)
	}
	enricher := &enrich.Enricher{Fetcher: fetcher, Max: cfg.MaxDetailFetches}
	enricher.Enrich(ctx, records)

	sync := &feed.Synchronizer{
		Duration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
	}
	if err := sync.Write(cfg.OutputPath, records); err != nil {
		return fmt.Errorf("pipeline: write feed: %w", err)
	}

	appLog.Info("feed published", "path", cfg.OutputPath, "entries", len(records))
	return nil
}

// deriveAdapters builds the source list from the config: one DOM adapter per
// listing page, the override file if configured, and text-model adapters for
// the pages routed to the extractor.
func (p *Pipeline) deriveAdapters() []source.Adapter {
	cfg := p.Config

	renderer := p.Renderer
	if renderer == nil {
		renderer = source.ChromiumRenderer{}
	}

	var adapters []source.Adapter
	for _, pageURL := range cfg.PageURLs() {
		adapters = append(adapters, &source.DOMAdapter{
			PageURL:  pageURL,
			BaseURL:  cfg.BaseURL,
			Renderer: renderer,
		})
	}

	if cfg.Extractor != nil && cfg.Extractor.Model != "" {
		apiKey := os.Getenv(cfg.Extractor.APIKeyEnv)
		for _, path := range cfg.Extractor.Pages {
			adapters = append(adapters, &source.ModelAdapter{
				PageURL:  cfg.BaseURL + path,
				Model:    cfg.Extractor.Model,
				APIKey:   apiKey,
				Renderer: renderer,
			})
		}
	}

	if cfg.OverridesPath != "" {
		adapters = append(adapters, &source.StaticAdapter{Path: cfg.OverridesPath})
	}

	return adapters
}
