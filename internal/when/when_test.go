package when

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_KnownForms(t *testing.T) {
	n := New(2025, time.UTC)

	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{
			name: "weekday at-joined with zone suffix",
			text: "Wednesday, Oct 15 at 5:00 PM ET",
			want: time.Date(2025, time.October, 15, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "weekday comma-joined",
			text: "Wednesday, Oct 15, 5:00 PM",
			want: time.Date(2025, time.October, 15, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "abbreviated weekday",
			text: "Wed, Oct 15, 11:00 AM",
			want: time.Date(2025, time.October, 15, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "bare month-day",
			text: "Oct 15, 5:00 PM",
			want: time.Date(2025, time.October, 15, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "EST with trailing period",
			text: "Sat, Nov 1, 9:30 AM EST.",
			want: time.Date(2025, time.November, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "loose pattern inside longer text",
			text: "Doors open Oct 18, 7:15 PM sharp",
			want: time.Date(2025, time.October, 18, 19, 15, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := n.Parse(tc.text)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %v, got %v", tc.want, got)
		})
	}
}

func TestParse_Unparseable(t *testing.T) {
	n := New(2025, time.UTC)

	for _, text := range []string{
		"TBA",
		"",
		"   , ",
		"Oct 15",               // no clock
		"Wednesday at 5:00 PM", // no month/day
	} {
		_, err := n.Parse(text)
		assert.ErrorIs(t, err, ErrUnparseable, "text %q", text)
	}
}

func TestParse_UnknownMonthRejectsPatternNotFragment(t *testing.T) {
	n := New(2025, time.UTC)

	// The anchored weekday pattern captures the bogus month "Foo" and is
	// rejected; the loose pattern still matches the real date further in.
	got, err := n.Parse("Xyz, Foo 3 at 9:00 AM Oct 15, 5:00 PM")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.October, 15, 17, 0, 0, 0, time.UTC), got)
}

func TestParse_Idempotent(t *testing.T) {
	n := New(2025, time.UTC)

	fragments := []string{
		"Wednesday, Oct 15 at 5:00 PM ET",
		"Oct 15, 5:00 PM",
		"Wed, Oct 15, 11:00 AM",
		"Fri, Dec 5, 8:45 PM",
	}

	for _, frag := range fragments {
		first, err := n.Parse(frag)
		require.NoError(t, err, "fragment %q", frag)

		second, err := n.Parse(n.Canonical(first))
		require.NoError(t, err, "canonical of %q", frag)
		assert.True(t, first.Equal(second), "fragment %q: %v != %v", frag, first, second)
	}
}
