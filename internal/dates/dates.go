// Package dates provides day-granularity helpers shared by every view.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDayLayout is used when a due-today task shows its time instead of a day label.
const TimeOfDayLayout = "3:04 PM"

// timestampLayouts are tried in order. Layouts without a zone are read in the
// caller's location, except a bare date, which the host stores as UTC midnight.
var timestampLayouts = []struct {
	layout string
	utc    bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", true},
}

// ParseTimestamp parses a host timestamp. The boolean is false for empty or
// unparsable input, which callers treat as "no date".
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, l := range timestampLayouts {
		in := loc
		if l.utc {
			in = time.UTC
		}
		if t, err := time.ParseInLocation(l.layout, s, in); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeToMidnight returns t with its time of day zeroed in t's location.
func NormalizeToMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsSameDay reports whether a and b fall on the same calendar day in a's location.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// CalendarDay maps a timestamp to local midnight of the day it represents.
// All-day timestamps are UTC midnight markers, so their UTC calendar fields
// name the day; other timestamps are instants read in loc.
func CalendarDay(t time.Time, allDay bool, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if allDay {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return NormalizeToMidnight(t.In(loc))
}

// DaysBetween returns the number of calendar days from a to b, ignoring
// time of day and DST shifts.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// FormatRelative describes d relative to the day of now: "Today", "Yesterday",
// "Tomorrow", "N days ago" or "In N days". A timed task due today renders its
// time of day instead.
func FormatRelative(d time.Time, allDay bool, now time.Time) string {
	loc := now.Location()
	today := NormalizeToMidnight(now)
	diff := DaysBetween(today, CalendarDay(d, allDay, loc))

	switch {
	case diff == 0:
		if !allDay {
			return d.In(loc).Format(TimeOfDayLayout)
		}
		return "Today"
	case diff == -1:
		return "Yesterday"
	case diff == 1:
		return "Tomorrow"
	case diff < -1:
		return fmt.Sprintf("%d days ago", -diff)
	default:
		return fmt.Sprintf("In %d days", diff)
	}
}
