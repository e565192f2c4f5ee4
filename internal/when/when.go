// Package when normalizes free-text date/time fragments as they appear on
// event listing pages into canonical timestamps under a fixed reference year
// and time zone. The source pages never carry a year, so one is always
// injected; it is never inferred from context.
package when

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable reports that a fragment matched none of the known patterns.
// Callers drop the owning candidate and continue; this error never aborts a
// run.
var ErrUnparseable = errors.New("when: unparseable date/time text")

// tzAbbrev strips a trailing US-Eastern zone abbreviation (ET/EST/EDT, with
// or without a trailing period) before pattern matching.
var tzAbbrev = regexp.MustCompile(`\bE[DS]?T\b\.?`)

// Patterns are tried in order; the first match wins. More specific
// (weekday-inclusive) forms come first so they take precedence over the
// loose month-day form when both could match overlapping text. Every pattern
// captures exactly (month, day, clock).
var patterns = []*regexp.Regexp{
	// "Wednesday, Oct 15 at 5:00 PM"
	regexp.MustCompile(`^[A-Za-z]+,\s+([A-Za-z]{3})\s+(\d{1,2})\s+at\s+(\d{1,2}:\d{2}\s+[AP]M)`),
	// "Wednesday, Oct 15, 5:00 PM"
	regexp.MustCompile(`^[A-Za-z]+,\s+([A-Za-z]{3})\s+(\d{1,2}),\s+(\d{1,2}:\d{2}\s+[AP]M)`),
	// "Wed, Oct 15, 11:00 AM"
	regexp.MustCompile(`^[A-Za-z]{3},\s+([A-Za-z]{3})\s+(\d{1,2}),\s+(\d{1,2}:\d{2}\s+[AP]M)`),
	// "Oct 15, 5:00 PM" (loose; may match inside longer text)
	regexp.MustCompile(`([A-Za-z]{3})\s+(\d{1,2}),\s+(\d{1,2}:\d{2}\s+[AP]M)`),
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Normalizer converts date/time fragments into timestamps in a fixed
// reference year and location.
type Normalizer struct {
	year int
	loc  *time.Location
}

// New returns a Normalizer for the given reference year and location.
// A nil location falls back to time.Local.
func New(year int, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{year: year, loc: loc}
}

// Parse normalizes a fragment like "Wednesday, Oct 15 at 5:00 PM ET" into a
// timestamp in the normalizer's reference year and location. It returns
// ErrUnparseable when no pattern matches.
func (n *Normalizer) Parse(text string) (time.Time, error) {
	s := tzAbbrev.ReplaceAllString(text, "")
	s = strings.Trim(s, ", \t\n")
	if s == "" {
		return time.Time{}, ErrUnparseable
	}

	for _, re := range patterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}

		month, ok := months[strings.ToLower(m[1])]
		if !ok {
			// Unknown month name rejects this pattern only; a later,
			// looser pattern may still match elsewhere in the text.
			continue
		}

		day, err := strconv.Atoi(m[2])
		if err != nil || day < 1 || day > 31 {
			continue
		}

		clock, err := time.Parse("3:04 PM", m[3])
		if err != nil {
			continue
		}

		return time.Date(n.year, month, day, clock.Hour(), clock.Minute(), 0, 0, n.loc), nil
	}

	return time.Time{}, ErrUnparseable
}

// Canonical renders a timestamp in the normalizer's standard text form,
// which Parse accepts back unchanged.
func (n *Normalizer) Canonical(t time.Time) string {
	return t.In(n.loc).Format("Mon, Jan 2, 3:04 PM")
}
