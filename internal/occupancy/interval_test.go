package occupancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDay(value)
	require.NoError(t, err)
	return d
}

func TestIntervalOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", NewInterval(day(t, "2024-06-01"), day(t, "2024-06-03")), NewInterval(day(t, "2024-06-05"), day(t, "2024-06-07")), false},
		{"touching", NewInterval(day(t, "2024-06-01"), day(t, "2024-06-03")), NewInterval(day(t, "2024-06-03"), day(t, "2024-06-05")), false},
		{"shared day", NewInterval(day(t, "2024-06-01"), day(t, "2024-06-04")), NewInterval(day(t, "2024-06-03"), day(t, "2024-06-05")), true},
		{"contained", NewInterval(day(t, "2024-06-01"), day(t, "2024-06-10")), NewInterval(day(t, "2024-06-03"), day(t, "2024-06-04")), true},
		{"open vs later", OpenInterval(day(t, "2024-06-01")), NewInterval(day(t, "2030-01-01"), day(t, "2030-01-02")), true},
		{"open vs earlier", OpenInterval(day(t, "2024-06-05")), NewInterval(day(t, "2024-06-01"), day(t, "2024-06-05")), false},
		{"both open", OpenInterval(day(t, "2024-06-05")), OpenInterval(day(t, "2025-01-01")), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}

func TestIntervalContainsAndDays(t *testing.T) {
	i := NewInterval(day(t, "2024-06-03"), day(t, "2024-06-05"))
	assert.False(t, i.Contains(day(t, "2024-06-02")))
	assert.True(t, i.Contains(day(t, "2024-06-03")))
	assert.True(t, i.Contains(day(t, "2024-06-04").Add(15*time.Hour)))
	assert.False(t, i.Contains(day(t, "2024-06-05")))

	days := i.Days(day(t, "2024-12-31"))
	require.Len(t, days, 2)
	assert.Equal(t, "2024-06-04", FormatDay(days[1]))

	open := OpenInterval(day(t, "2024-06-01"))
	assert.Len(t, open.Days(day(t, "2024-06-10")), 10)
	assert.True(t, open.Contains(day(t, "2099-01-01")))
}

func TestIntervalValid(t *testing.T) {
	assert.False(t, NewInterval(day(t, "2024-06-05"), day(t, "2024-06-05")).Valid())
	assert.False(t, NewInterval(day(t, "2024-06-05"), day(t, "2024-06-01")).Valid())
	assert.False(t, Interval{}.Valid())
	assert.True(t, OpenInterval(day(t, "2024-06-05")).Valid())
	assert.Equal(t, 3, DaysBetween(day(t, "2024-03-30"), day(t, "2024-04-02")))
}
