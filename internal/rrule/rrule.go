// Package rrule encodes and decodes the small recurrence grammar stored by
// the host: FREQ, INTERVAL, BYDAY and BYMONTHDAY with DAILY, WEEKLY or MONTHLY.
package rrule

import (
	"fmt"
	"strconv"
	"strings"
)

// Frequency is the FREQ value of a rule.
type Frequency string

// Supported frequencies.
const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Weekday is a two-letter BYDAY code.
type Weekday string

// Weekday codes in calendar order.
const (
	MO Weekday = "MO"
	TU Weekday = "TU"
	WE Weekday = "WE"
	TH Weekday = "TH"
	FR Weekday = "FR"
	SA Weekday = "SA"
	SU Weekday = "SU"
)

// Weekdays lists every weekday code, Monday first.
var Weekdays = []Weekday{MO, TU, WE, TH, FR, SA, SU}

// Valid reports whether w is a known weekday code.
func (w Weekday) Valid() bool {
	for _, d := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

const (
	minMonthDay = 1
	maxMonthDay = 31
)

// Descriptor is the structured form of a rule. ByMonthDay is zero when unset.
type Descriptor struct {
	Frequency  Frequency
	Interval   int
	ByWeekday  []Weekday
	ByMonthDay int
}

// Decode parses s. It returns nil when s is empty or FREQ is missing or
// unsupported. Malformed or unknown fields are skipped.
func Decode(s string) *Descriptor {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	d := Descriptor{Interval: 1}
	for _, part := range strings.Split(s, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "FREQ":
			if f := Frequency(strings.ToUpper(value)); f.Valid() {
				d.Frequency = f
			}
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				d.Interval = n
			}
		case "BYDAY":
			d.ByWeekday = parseWeekdays(value)
		case "BYMONTHDAY":
			if n, err := strconv.Atoi(value); err == nil && n >= minMonthDay && n <= maxMonthDay {
				d.ByMonthDay = n
			}
		}
	}

	if d.Frequency == "" {
		return nil
	}
	return &d
}

func parseWeekdays(value string) []Weekday {
	var days []Weekday
	seen := make(map[Weekday]bool)
	for _, raw := range strings.Split(value, ",") {
		w := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
		if !w.Valid() || seen[w] {
			continue
		}
		seen[w] = true
		days = append(days, w)
	}
	return days
}

// Encode serializes d. It returns "" when d is nil or has no frequency.
// Field order is always FREQ, INTERVAL, then BYDAY or BYMONTHDAY.
func Encode(d *Descriptor) string {
	if d == nil || d.Frequency == "" {
		return ""
	}

	interval := d.Interval
	if interval <= 0 {
		interval = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FREQ=%s;INTERVAL=%d", strings.ToUpper(string(d.Frequency)), interval)

	switch {
	case d.Frequency == Weekly && len(d.ByWeekday) > 0:
		codes := make([]string, 0, len(d.ByWeekday))
		for _, w := range d.ByWeekday {
			codes = append(codes, string(w))
		}
		b.WriteString(";BYDAY=")
		b.WriteString(strings.ToUpper(strings.Join(codes, ",")))
	case d.Frequency == Monthly && d.ByMonthDay != 0:
		fmt.Fprintf(&b, ";BYMONTHDAY=%d", clamp(d.ByMonthDay, minMonthDay, maxMonthDay))
	}
	return b.String()
}

// Describe renders d for people, e.g. "every 2 weeks on MO, WE".
func Describe(d *Descriptor) string {
	if d == nil || d.Frequency == "" {
		return "does not repeat"
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 1
	}

	unit := map[Frequency]string{Daily: "day", Weekly: "week", Monthly: "month"}[d.Frequency]
	out := "every " + unit
	if interval > 1 {
		out = fmt.Sprintf("every %d %ss", interval, unit)
	}

	switch {
	case d.Frequency == Weekly && len(d.ByWeekday) > 0:
		codes := make([]string, 0, len(d.ByWeekday))
		for _, w := range d.ByWeekday {
			codes = append(codes, string(w))
		}
		out += " on " + strings.Join(codes, ", ")
	case d.Frequency == Monthly && d.ByMonthDay != 0:
		out += fmt.Sprintf(" on day %d", clamp(d.ByMonthDay, minMonthDay, maxMonthDay))
	}
	return out
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
