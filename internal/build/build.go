// Package build turns raw per-source payloads into validated observations.
// A payload is discarded (not merely flagged) when it lacks a non-empty title
// or a usable start time; venue, description, and url are best-effort.
package build

import (
	"errors"
	"strings"

	"festcal/internal/model"
	"festcal/internal/source"
	"festcal/internal/when"
)

// ErrIncomplete reports a payload missing its mandatory title or start time.
// Callers drop the payload and continue.
var ErrIncomplete = errors.New("build: payload missing title or start time")

// statusTokens is the closed set of recognized leading title markers. Order
// matters only within one status: longer textual forms first so that
// "[SOLD OUT / STANDBY]" is not half-consumed by "[SOLD OUT]".
var statusTokens = []struct {
	token  string
	status model.Status
}{
	{"🎟️", model.StatusTicketed},
	{"🎟", model.StatusTicketed},
	{"[TICKETED]", model.StatusTicketed},
	{"TICKETED:", model.StatusTicketed},
	{"🚫", model.StatusSoldOutStandby},
	{"⛔", model.StatusSoldOutStandby},
	{"[SOLD OUT / STANDBY]", model.StatusSoldOutStandby},
	{"[SOLD OUT]", model.StatusSoldOutStandby},
	{"SOLD OUT / STANDBY:", model.StatusSoldOutStandby},
	{"SOLD OUT:", model.StatusSoldOutStandby},
}

// Builder validates raw payloads into model.Observation values.
type Builder struct {
	normalizer *when.Normalizer
	// venues maps a listing-URL suffix to a venue name, used to infer a
	// venue from provenance when the payload carries none.
	venues map[string]string
}

// New returns a Builder using the given temporal normalizer and venue
// inference mapping.
func New(n *when.Normalizer, venues map[string]string) *Builder {
	return &Builder{normalizer: n, venues: venues}
}

// Build validates one raw payload. It returns ErrIncomplete for a missing
// title or missing start information, and when.ErrUnparseable (wrapped) when
// the date text matches no known pattern. Either way the payload is to be
// dropped by the caller; neither error is fatal to a run.
func (b *Builder) Build(raw source.RawObservation) (model.Observation, error) {
	statuses, base := SplitStatus(raw.Title)
	if base == "" {
		return model.Observation{}, ErrIncomplete
	}

	start := raw.Start
	if start.IsZero() {
		if strings.TrimSpace(raw.DateText) == "" {
			return model.Observation{}, ErrIncomplete
		}
		parsed, err := b.normalizer.Parse(raw.DateText)
		if err != nil {
			return model.Observation{}, err
		}
		start = parsed
	}

	venue := strings.TrimSpace(raw.Venue)
	if venue == "" {
		venue = b.inferVenue(raw.SourceURL)
	}

	return model.Observation{
		BaseTitle:   base,
		Statuses:    statuses,
		Start:       start,
		Venue:       venue,
		Description: strings.TrimSpace(raw.Description),
		URL:         strings.TrimSpace(raw.URL),
		SourceURL:   raw.SourceURL,
	}, nil
}

// SplitStatus strips recognized leading status markers from a title and
// returns the accumulated marker set plus the whitespace-collapsed base
// title. Markers are orthogonal annotations, never identity-bearing text.
func SplitStatus(title string) (model.StatusSet, string) {
	var set model.StatusSet
	rest := strings.TrimSpace(title)

	for {
		matched := false
		for _, st := range statusTokens {
			if len(rest) >= len(st.token) && strings.EqualFold(rest[:len(st.token)], st.token) {
				set = set.Add(st.status)
				rest = strings.TrimSpace(rest[len(st.token):])
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}

	return set, strings.Join(strings.Fields(rest), " ")
}

// inferVenue maps source provenance to a venue name. An unresolved venue is
// the empty string, never a placeholder.
func (b *Builder) inferVenue(sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	for suffix, name := range b.venues {
		if strings.Contains(sourceURL, "-"+suffix) || strings.HasSuffix(sourceURL, suffix) {
			return name
		}
	}
	return ""
}
