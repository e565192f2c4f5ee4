// Package registry resolves candidate observations to authoritative records.
// Each distinct real-world event is keyed by a deterministic identity digest;
// repeat observations of the same identity are folded into the existing
// record by monotonic, information-preserving merge rules.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	appLog "festcal/internal/log"
	"festcal/internal/model"
)

// IdentityKey digests (normalized base title, canonical start, normalized
// venue). Two observations with the same key describe the same event and are
// always merged, never duplicated in output. Status markers and all
// best-effort fields are deliberately excluded.
func IdentityKey(baseTitle string, start time.Time, venue string) string {
	parts := []string{
		strings.ToLower(strings.Join(strings.Fields(baseTitle), " ")),
		start.UTC().Format(time.RFC3339),
		strings.ToLower(strings.TrimSpace(venue)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// looseKey digests (normalized base title, canonical start) only. It indexes
// records for venue-blind matching: an observation with an unknown venue must
// still resolve to the record another source saw with the venue filled in,
// and vice versa.
func looseKey(baseTitle string, start time.Time) string {
	parts := []string{
		strings.ToLower(strings.Join(strings.Fields(baseTitle), " ")),
		start.UTC().Format(time.RFC3339),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Registry owns the per-run mapping of identity key to authoritative record.
// It is single-writer: candidates are registered one at a time in source
// traversal order, and nothing reads the records until finalization.
type Registry struct {
	records map[string]*model.Record
	// byLoose groups records sharing (title, start); normally one entry,
	// more when the same title genuinely plays at two venues at once.
	byLoose map[string][]*model.Record
}

func New() *Registry {
	return &Registry{
		records: make(map[string]*model.Record),
		byLoose: make(map[string][]*model.Record),
	}
}

// Register folds one observation into the registry. It returns the
// authoritative record for the observation's identity, whether the identity
// was seen for the first time, and whether any field actually changed — so
// callers can tell a true duplicate from one that enriched the record.
//
// Resolution order: exact identity key first; then a venue-blind match when
// either side's venue is unknown (two sightings of the same title and start
// where only one names the venue are the same event). Two records with
// conflicting non-empty venues stay distinct.
func (r *Registry) Register(obs model.Observation) (*model.Record, bool, bool) {
	key := IdentityKey(obs.BaseTitle, obs.Start, obs.Venue)
	loose := looseKey(obs.BaseTitle, obs.Start)

	if rec, ok := r.records[key]; ok {
		changed := merge(rec, obs)
		return rec, false, changed
	}

	for _, rec := range r.byLoose[loose] {
		if rec.Venue != "" && obs.Venue != "" {
			continue
		}
		oldKey := IdentityKey(rec.BaseTitle, rec.Start, rec.Venue)
		changed := merge(rec, obs)
		// The merge may have filled the venue; keep the exact index keyed by
		// the record's current identity.
		if newKey := IdentityKey(rec.BaseTitle, rec.Start, rec.Venue); newKey != oldKey {
			delete(r.records, oldKey)
			r.records[newKey] = rec
		}
		return rec, false, changed
	}

	rec := &model.Record{
		BaseTitle:   obs.BaseTitle,
		Statuses:    obs.Statuses,
		Start:       obs.Start,
		Venue:       obs.Venue,
		Description: obs.Description,
		URL:         obs.URL,
		SourceURL:   obs.SourceURL,
	}
	r.records[key] = rec
	r.byLoose[loose] = append(r.byLoose[loose], rec)
	return rec, true, true
}

// Len reports the number of distinct events registered so far.
func (r *Registry) Len() int { return len(r.records) }

// Records finalizes the run: all authoritative records sorted ascending by
// start time, ties broken by case-insensitive title, so that unrelated
// re-runs never reorder the output.
func (r *Registry) Records() []*model.Record {
	out := make([]*model.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return strings.ToLower(out[i].Title()) < strings.ToLower(out[j].Title())
	})
	return out
}

// merge folds an observation into an existing record field by field and
// reports whether anything changed. Every rule is monotonic — no step makes
// a field less complete — which keeps the fill-empty and longer-wins rules
// commutative and idempotent regardless of observation arrival order.
func merge(rec *model.Record, obs model.Observation) bool {
	changed := false

	// Status markers: union. Once observed, a marker is retained for good.
	if u := rec.Statuses.Union(obs.Statuses); u != rec.Statuses {
		rec.Statuses = u
		changed = true
	}

	// Base title: the longer text is treated as the less truncated one.
	if len(obs.BaseTitle) > len(rec.BaseTitle) {
		rec.BaseTitle = obs.BaseTitle
		changed = true
	}

	// Description: strictly longer replaces; ties keep the existing value.
	if len(obs.Description) > len(rec.Description) {
		rec.Description = obs.Description
		changed = true
	}

	// Venue: fill only when unknown. On a genuine conflict the earlier
	// non-empty value wins.
	if obs.Venue != "" {
		if rec.Venue == "" {
			rec.Venue = obs.Venue
			changed = true
		} else if rec.Venue != obs.Venue {
			appLog.Debug("venue conflict, keeping first value",
				"title", rec.BaseTitle, "kept", rec.Venue, "discarded", obs.Venue)
		}
	}

	// URL: fill when empty, or upgrade to a locator that carries an explicit
	// per-event identifier when the current one does not.
	if obs.URL != "" && obs.URL != rec.URL {
		if rec.URL == "" || (hasEventID(obs.URL) && !hasEventID(rec.URL)) {
			rec.URL = obs.URL
			changed = true
		}
	}

	// Provenance: fill only when empty.
	if rec.SourceURL == "" && obs.SourceURL != "" {
		rec.SourceURL = obs.SourceURL
		changed = true
	}

	return changed
}

func hasEventID(url string) bool {
	return strings.Contains(url, "eventId=")
}
