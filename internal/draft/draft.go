// Package draft flattens tasks into editable form drafts and turns drafts
// back into host service payloads.
package draft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-cox/chorebot/internal/dates"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/points"
	"github.com/bryan-cox/chorebot/internal/rrule"
)

// Layouts used by the date and time form fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	// ErrEmptySummary is returned when a draft has no summary after trimming.
	ErrEmptySummary = errors.New("summary is required")
	// ErrInvalidDue is returned when the due date or time fields cannot be parsed.
	ErrInvalidDue = errors.New("invalid due date/time")
)

// Draft is the flat, form-shaped state of a task being edited.
type Draft struct {
	UID         string
	Summary     string
	Description string
	SectionID   string
	Tags        []string
	ParentUID   string

	HasDueDate bool
	DueDate    string
	DueTime    string
	IsAllDay   bool

	HasRecurrence bool
	Recurrence    rrule.Descriptor

	PointsValue         int
	StreakBonusPoints   int
	StreakBonusInterval int
}

func defaultRecurrence() rrule.Descriptor {
	return rrule.Descriptor{Frequency: rrule.Daily, Interval: 1, ByWeekday: []rrule.Weekday{}, ByMonthDay: 1}
}

// PrepareDraft builds an edit draft for t. The recurrence comes from the
// task's rrule, or from its parent template when the task has none. Bonus
// fields are read from the template when one matches.
func PrepareDraft(t *model.Task, templates map[string]*model.Template, loc *time.Location) Draft {
	if loc == nil {
		loc = time.Local
	}
	d := Draft{
		UID:                 t.UID,
		Summary:             t.Summary,
		Description:         t.Description,
		SectionID:           t.SectionID,
		Tags:                append([]string(nil), t.Tags...),
		ParentUID:           t.ParentUID,
		IsAllDay:            t.IsAllDay,
		PointsValue:         t.PointsValue,
		StreakBonusPoints:   t.StreakBonusPoints,
		StreakBonusInterval: t.StreakBonusInterval,
	}

	if due, ok := dates.ParseTimestamp(t.Due, loc); ok {
		d.HasDueDate = true
		d.DueDate = dates.CalendarDay(due, t.IsAllDay, loc).Format(DateLayout)
		if !t.IsAllDay {
			d.DueTime = due.In(loc).Format(TimeLayout)
		}
	}

	tmpl := points.TemplateFor(t, templates)
	source := t.RRule
	if source == "" && tmpl != nil {
		source = tmpl.RRule
	}
	if tmpl != nil {
		d.StreakBonusPoints = tmpl.StreakBonusPoints
		d.StreakBonusInterval = tmpl.StreakBonusInterval
	}

	d.Recurrence = defaultRecurrence()
	if desc := rrule.Decode(source); desc != nil {
		d.HasRecurrence = true
		d.Recurrence = *desc
		if d.Recurrence.ByWeekday == nil {
			d.Recurrence.ByWeekday = []rrule.Weekday{}
		}
		if d.Recurrence.ByMonthDay == 0 {
			d.Recurrence.ByMonthDay = 1
		}
	}
	return d
}

// Due assembles the draft's due instant. An all-day due is UTC midnight of
// the chosen date; a timed due without a time is local midnight.
func (d Draft) Due(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(d.DueDate), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidDue, d.DueDate)
	}
	if d.IsAllDay {
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	clock := strings.TrimSpace(d.DueTime)
	if clock == "" {
		return day, nil
	}
	var tod time.Time
	for _, layout := range []string{TimeLayout, "15:04:05"} {
		if tod, err = time.Parse(layout, clock); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidDue, d.DueTime)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
}

// BuildUpdatePayload returns the update_task service data for d.
func BuildUpdatePayload(listID string, d Draft, loc *time.Location) (map[string]any, error) {
	summary := strings.TrimSpace(d.Summary)
	if summary == "" {
		return nil, ErrEmptySummary
	}

	payload := map[string]any{
		"list_id": listID,
		"uid":     d.UID,
		"summary": summary,
	}

	switch {
	case d.HasDueDate && strings.TrimSpace(d.DueDate) != "":
		due, err := d.Due(loc)
		if err != nil {
			return nil, err
		}
		payload["due"] = due.UTC().Format(time.RFC3339)
		payload["is_all_day"] = d.IsAllDay
	case !d.HasDueDate:
		payload["due"] = ""
		payload["is_all_day"] = false
	}

	if d.Description != "" {
		payload["description"] = d.Description
	}
	if d.SectionID != "" {
		payload["section_id"] = d.SectionID
	}
	if d.Tags != nil {
		payload["tags"] = d.Tags
	}

	if d.HasRecurrence {
		if rule := rrule.Encode(&d.Recurrence); rule != "" {
			payload["rrule"] = rule
		}
		addBonus(payload, d)
	} else {
		payload["rrule"] = ""
	}

	if d.ParentUID != "" {
		payload["include_future_occurrences"] = true
	}
	payload["points_value"] = d.PointsValue
	return payload, nil
}

// BuildAddPayload returns the add_task service data for a new task drafted
// as d. Only fields that were filled in are sent.
func BuildAddPayload(listID string, d Draft, loc *time.Location) (map[string]any, error) {
	summary := strings.TrimSpace(d.Summary)
	if summary == "" {
		return nil, ErrEmptySummary
	}

	payload := map[string]any{
		"list_id": listID,
		"summary": summary,
	}
	if d.HasDueDate && strings.TrimSpace(d.DueDate) != "" {
		due, err := d.Due(loc)
		if err != nil {
			return nil, err
		}
		payload["due"] = due.UTC().Format(time.RFC3339)
		payload["is_all_day"] = d.IsAllDay
	}
	if d.Description != "" {
		payload["description"] = d.Description
	}
	if d.SectionID != "" {
		payload["section_id"] = d.SectionID
	}
	if len(d.Tags) > 0 {
		payload["tags"] = d.Tags
	}
	if d.HasRecurrence {
		if rule := rrule.Encode(&d.Recurrence); rule != "" {
			payload["rrule"] = rule
		}
		addBonus(payload, d)
	}
	if d.PointsValue > 0 {
		payload["points_value"] = d.PointsValue
	}
	return payload, nil
}

// addBonus sends each streak bonus field that is set.
func addBonus(payload map[string]any, d Draft) {
	if d.StreakBonusPoints > 0 {
		payload["streak_bonus_points"] = d.StreakBonusPoints
	}
	if d.StreakBonusInterval > 0 {
		payload["streak_bonus_interval"] = d.StreakBonusInterval
	}
}
