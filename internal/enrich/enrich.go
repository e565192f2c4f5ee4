// Package enrich upgrades finalized records with information from per-event
// detail pages. Only records whose URL carries an explicit event identifier
// are eligible, and the number of page fetches per run is capped to stay
// polite to the origin.
package enrich

import (
	"context"
	"strings"

	appLog "festcal/internal/log"
	"festcal/internal/model"
	"festcal/internal/source"
)

// PageFetcher is the subset of source.Fetcher that enrichment needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, bool, error)
}

// Enricher fetches detail pages and folds their content into records under
// the same merge discipline as candidate merging: a strictly longer
// description replaces the current one, and a venue only fills an empty slot.
type Enricher struct {
	Fetcher PageFetcher
	// Max caps detail-page fetch attempts per run.
	Max int
}

// Enrich mutates eligible records in place and returns the number of detail
// pages fetched. Per-page failures are logged and skipped; they still count
// against the cap.
func (e *Enricher) Enrich(ctx context.Context, records []*model.Record) int {
	fetched := 0

	for _, rec := range records {
		if fetched >= e.Max {
			break
		}
		if !strings.Contains(rec.URL, "eventId=") {
			continue
		}

		fetched++
		body, _, err := e.Fetcher.Fetch(ctx, rec.URL)
		if err != nil {
			appLog.Warn("enrich: detail page fetch failed", "url", rec.URL, "err", err)
			continue
		}

		desc, venue := source.ExtractDetail(string(body))

		if len(desc) > len(rec.Description) {
			rec.Description = desc
		}
		if rec.Venue == "" && venue != "" {
			rec.Venue = venue
		}
	}

	if fetched > 0 {
		appLog.Info("enrichment completed", "detail_pages", fetched)
	}
	return fetched
}
