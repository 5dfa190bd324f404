package occupancy

import "time"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the calendar day n days after day.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days in [from, to).
func DaysBetween(from, to time.Time) int {
	from, to = Day(from), Day(to)
	if !from.Before(to) {
		return 0
	}
	return int(to.Sub(from).Hours()/24 + 0.5)
}

// Interval is a half-open range of calendar days [From, To).
// A zero To means the interval is open-ended and extends indefinitely.
type Interval struct {
	From time.Time
	To   time.Time
}

// NewInterval normalises both bounds to calendar days.
func NewInterval(from, to time.Time) Interval {
	return Interval{From: Day(from), To: Day(to)}
}

// OpenInterval returns an interval starting at from with no end.
func OpenInterval(from time.Time) Interval {
	return Interval{From: Day(from)}
}

// IntervalFromPtr builds an interval whose end may be nil (open).
func IntervalFromPtr(from time.Time, to *time.Time) Interval {
	if to == nil {
		return OpenInterval(from)
	}
	return NewInterval(from, *to)
}

// IsOpen reports whether the interval has no end.
func (i Interval) IsOpen() bool {
	return i.To.IsZero()
}

// Valid reports whether the interval contains at least one day.
func (i Interval) Valid() bool {
	if i.From.IsZero() {
		return false
	}
	return i.IsOpen() || i.From.Before(i.To)
}

// Contains reports whether day falls inside [From, To).
func (i Interval) Contains(day time.Time) bool {
	day = Day(day)
	if day.Before(i.From) {
		return false
	}
	return i.IsOpen() || day.Before(i.To)
}

// Overlaps reports whether the two intervals share at least one day.
// Touching intervals (one ends the day the other starts) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	if !i.IsOpen() && !other.From.Before(i.To) {
		return false
	}
	if !other.IsOpen() && !i.From.Before(other.To) {
		return false
	}
	return true
}

// Days enumerates the days of the interval, clipping open intervals at limit.
// limit is inclusive.
func (i Interval) Days(limit time.Time) []time.Time {
	end := i.To
	limit = AddDays(limit, 1)
	if i.IsOpen() || end.After(limit) {
		end = limit
	}
	var days []time.Time
	for d := i.From; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Clip returns the part of i that lies inside window. window must be closed.
// The result is only meaningful when the two intervals overlap.
func (i Interval) Clip(window Interval) Interval {
	out := i
	if out.From.Before(window.From) {
		out.From = window.From
	}
	if !window.IsOpen() && (out.IsOpen() || out.To.After(window.To)) {
		out.To = window.To
	}
	return out
}
