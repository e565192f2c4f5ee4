package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festcal/internal/model"
)

var start = time.Date(2025, time.October, 15, 19, 0, 0, 0, time.UTC)

func obsA() model.Observation {
	return model.Observation{
		BaseTitle: "Film X",
		Start:     start,
		SourceURL: "https://example.org/a",
	}
}

func obsB() model.Observation {
	return model.Observation{
		BaseTitle:   "Film X",
		Statuses:    model.StatusSet(model.StatusTicketed),
		Start:       start,
		Venue:       "Main Hall",
		Description: "short",
		SourceURL:   "https://example.org/b",
	}
}

func TestIdentityKey(t *testing.T) {
	k1 := IdentityKey("Film X", start, "Main Hall")
	k2 := IdentityKey("film  x", start, "MAIN HALL")
	assert.Equal(t, k1, k2, "key must normalize case and whitespace")

	k3 := IdentityKey("Film X", start.Add(time.Hour), "Main Hall")
	assert.NotEqual(t, k1, k3, "start participates in identity")

	k4 := IdentityKey("Film Y", start, "Main Hall")
	assert.NotEqual(t, k1, k4, "title participates in identity")
}

func TestRegister_MergeScenario(t *testing.T) {
	r := New()

	_, isNew, changed := r.Register(obsA())
	assert.True(t, isNew)
	assert.True(t, changed)

	rec, isNew, changed := r.Register(obsB())
	assert.False(t, isNew)
	assert.True(t, changed)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "🎟 Film X", rec.Title())
	assert.Equal(t, "Main Hall", rec.Venue)
	assert.Equal(t, "short", rec.Description)
	assert.Equal(t, "https://example.org/a", rec.SourceURL, "provenance fills only when empty")
}

func TestRegister_Commutative(t *testing.T) {
	ab := New()
	ab.Register(obsA())
	ab.Register(obsB())

	ba := New()
	ba.Register(obsB())
	ba.Register(obsA())

	require.Equal(t, 1, ab.Len())
	require.Equal(t, 1, ba.Len())

	r1 := ab.Records()[0]
	r2 := ba.Records()[0]

	assert.Equal(t, r1.BaseTitle, r2.BaseTitle)
	assert.Equal(t, r1.Statuses, r2.Statuses)
	assert.Equal(t, r1.Venue, r2.Venue)
	assert.Equal(t, r1.Description, r2.Description)
	assert.Equal(t, r1.URL, r2.URL)
	assert.True(t, r1.Start.Equal(r2.Start))
}

func TestRegister_Idempotent(t *testing.T) {
	r := New()
	r.Register(obsB())

	rec, isNew, changed := r.Register(obsB())
	assert.False(t, isNew)
	assert.False(t, changed, "identical re-registration must not report a change")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "Main Hall", rec.Venue)
}

func TestRegister_StatusUnionMonotonic(t *testing.T) {
	r := New()
	r.Register(obsB()) // carries Ticketed

	plain := obsB()
	plain.Statuses = 0
	_, _, changed := r.Register(plain)
	assert.False(t, changed)

	rec := r.Records()[0]
	assert.True(t, rec.Statuses.Has(model.StatusTicketed), "marker must never be removed")

	standby := obsB()
	standby.Statuses = model.StatusSet(model.StatusSoldOutStandby)
	rec, _, changed = r.Register(standby)
	assert.True(t, changed)
	assert.True(t, rec.Statuses.Has(model.StatusTicketed))
	assert.True(t, rec.Statuses.Has(model.StatusSoldOutStandby))
	assert.Equal(t, "🚫 🎟 Film X", rec.Title(), "markers compose in canonical order")
}

func TestRegister_DescriptionLongerWins(t *testing.T) {
	r := New()
	r.Register(obsB()) // description "short"

	longer := obsB()
	longer.Description = "a noticeably longer description"
	rec, _, changed := r.Register(longer)
	assert.True(t, changed)
	assert.Equal(t, longer.Description, rec.Description)

	// Shorter (and equal-length) text never replaces.
	shorter := obsB()
	shorter.Description = "tiny"
	rec, _, changed = r.Register(shorter)
	assert.False(t, changed)
	assert.Equal(t, longer.Description, rec.Description)
}

func TestRegister_VenueConflictFirstWriterWins(t *testing.T) {
	r := New()
	first := obsB()
	r.Register(first)

	// Same identity (venue differs only by case), conflicting raw spelling.
	shouted := obsB()
	shouted.Venue = "MAIN HALL"
	rec, isNew, changed := r.Register(shouted)
	assert.False(t, isNew)
	assert.False(t, changed)
	assert.Equal(t, "Main Hall", rec.Venue)

	// Genuinely different venues are distinct events, not a merge.
	elsewhere := obsB()
	elsewhere.Venue = "Orpheum Theatre"
	_, isNew, _ = r.Register(elsewhere)
	assert.True(t, isNew)
	assert.Equal(t, 2, r.Len())
}

func TestRegister_URLUpgrade(t *testing.T) {
	r := New()

	listing := obsB()
	listing.URL = "https://example.org/2025-all-events-colony"
	r.Register(listing)

	detail := obsB()
	detail.URL = "https://example.org/2025-all-events?eventId=68c821f8"
	rec, _, changed := r.Register(detail)
	assert.True(t, changed)
	assert.Equal(t, detail.URL, rec.URL)

	// A plain listing URL never downgrades a detail locator.
	rec, _, changed = r.Register(listing)
	assert.False(t, changed)
	assert.Equal(t, detail.URL, rec.URL)
}

func TestRecords_DeterministicOrder(t *testing.T) {
	r := New()

	later := obsA()
	later.BaseTitle = "Zebra Crossing"
	later.Start = start.Add(2 * time.Hour)
	r.Register(later)

	tieB := obsA()
	tieB.BaseTitle = "beta"
	r.Register(tieB)

	tieA := obsA()
	tieA.BaseTitle = "Alpha"
	r.Register(tieA)

	recs := r.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "Alpha", recs[0].BaseTitle)
	assert.Equal(t, "beta", recs[1].BaseTitle)
	assert.Equal(t, "Zebra Crossing", recs[2].BaseTitle)
}
