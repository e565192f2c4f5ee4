package model

import (
	"strings"
	"time"
)

// Status is a non-exclusive annotation observed as a leading marker on an
// event title (e.g. a ticketing notice). Statuses are carried separately from
// the base title so that identity and merging never depend on marker text;
// they are folded back into the title only when composing output.
type Status uint8

const (
	// StatusSoldOutStandby marks an event that is sold out but admits a
	// standby line.
	StatusSoldOutStandby Status = 1 << iota
	// StatusTicketed marks an event that requires a separate ticket.
	StatusTicketed
)

// prefix returns the canonical marker text used when composing a title.
func (s Status) prefix() string {
	switch s {
	case StatusSoldOutStandby:
		return "🚫"
	case StatusTicketed:
		return "🎟"
	default:
		return ""
	}
}

// canonicalOrder is the fixed order in which markers are emitted. Cosmetic
// only; identity never includes markers.
var canonicalOrder = []Status{StatusSoldOutStandby, StatusTicketed}

// StatusSet is a set of Status markers.
type StatusSet uint8

func (ss StatusSet) Has(s Status) bool { return ss&StatusSet(s) != 0 }

func (ss StatusSet) Add(s Status) StatusSet { return ss | StatusSet(s) }

// Union merges two marker sets. Monotonic: a marker observed once is never
// removed by later observations.
func (ss StatusSet) Union(other StatusSet) StatusSet { return ss | other }

// Prefixes returns the canonical marker strings in emission order.
func (ss StatusSet) Prefixes() []string {
	var out []string
	for _, s := range canonicalOrder {
		if ss.Has(s) {
			out = append(out, s.prefix())
		}
	}
	return out
}

// ComposeTitle renders the user-visible title: markers in canonical order,
// then the base title.
func ComposeTitle(ss StatusSet, base string) string {
	parts := append(ss.Prefixes(), base)
	return strings.Join(parts, " ")
}

// Observation is one source's sighting of an event, produced by the builder
// and consumed exactly once by the registry. It is never mutated after
// construction.
type Observation struct {
	BaseTitle string // status prefixes stripped, whitespace collapsed
	Statuses  StatusSet

	Start time.Time

	Venue       string // "" means unknown
	Description string
	URL         string // locator for more detail, may be ""
	SourceURL   string // provenance: the page that produced this sighting
}

// Title returns the composed user-visible title.
func (o Observation) Title() string { return ComposeTitle(o.Statuses, o.BaseTitle) }

// Record is the single authoritative record for one real-world event within
// a run. Field values are the best known across all merged observations.
// Records are owned and mutated exclusively by the registry until the run's
// record list is finalized for output.
type Record struct {
	BaseTitle string
	Statuses  StatusSet

	Start time.Time

	Venue       string
	Description string
	URL         string
	SourceURL   string
}

// Title returns the composed user-visible title.
func (r *Record) Title() string { return ComposeTitle(r.Statuses, r.BaseTitle) }
