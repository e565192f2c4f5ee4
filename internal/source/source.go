// Package source provides the adapters that hand candidate event payloads to
// the pipeline. Adapters exist for rendered-page DOM extraction, text-model
// extraction, and manually curated override lists; the rest of the pipeline
// never branches on adapter kind, only on payload shape.
package source

import (
	"context"
	"time"
)

// RawObservation is one candidate event payload as produced by an adapter,
// before validation and temporal normalization. All fields are best-effort
// except Title and one of DateText/Start.
type RawObservation struct {
	Title string

	// DateText is the free-text date/time fragment as found on the page.
	DateText string
	// Start is an exact timestamp for adapters that know one (e.g. curated
	// overrides). When non-zero it takes precedence over DateText.
	Start time.Time

	Venue       string
	Description string
	URL         string
	SourceURL   string
}

// Adapter yields zero or more raw observation payloads, each isolated to one
// candidate event. An adapter failure drops that source only; the caller
// continues with the remaining sources.
type Adapter interface {
	// Name identifies the adapter for logging.
	Name() string
	// Observations produces this source's payloads.
	Observations(ctx context.Context) ([]RawObservation, error)
}
