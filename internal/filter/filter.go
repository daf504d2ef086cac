// Package filter decides which tasks are active for a viewed day.
package filter

import (
	"strings"
	"time"

	"github.com/bryan-cox/chorebot/internal/dates"
	"github.com/bryan-cox/chorebot/internal/model"
)

// Mode is the relation of the viewed day to the real current day.
type Mode int

// Viewing modes.
const (
	ModePast Mode = iota
	ModeToday
	ModeFuture
)

func (m Mode) String() string {
	switch m {
	case ModePast:
		return "past"
	case ModeToday:
		return "today"
	default:
		return "future"
	}
}

// ModeFor returns the viewing mode of ref relative to now, at day granularity
// in now's location.
func ModeFor(ref, now time.Time) Mode {
	refNorm := dates.NormalizeToMidnight(ref.In(now.Location()))
	todayNorm := dates.NormalizeToMidnight(now)
	switch {
	case refNorm.Before(todayNorm):
		return ModePast
	case refNorm.After(todayNorm):
		return ModeFuture
	default:
		return ModeToday
	}
}

// Reason records which branch classified a task. Every task gets exactly one.
type Reason int

// Inclusion and exclusion reasons. The zero value is never returned.
const (
	_ Reason = iota
	Dateless
	DueOnDay
	Overdue
	CompletedToday
	CompletedOnDay
	Excluded
	DatelessHidden
	FutureHidden
	OtherSection
	OtherPerson
)

var reasonNames = map[Reason]string{
	Dateless:       "dateless",
	DueOnDay:       "due on day",
	Overdue:        "overdue",
	CompletedToday: "completed today",
	CompletedOnDay: "completed on day",
	Excluded:       "excluded",
	DatelessHidden: "dateless hidden",
	FutureHidden:   "future hidden",
	OtherSection:   "other section",
	OtherPerson:    "other person",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unclassified"
}

// Active reports whether the reason includes the task in the view.
func (r Reason) Active() bool {
	return r >= Dateless && r <= CompletedOnDay
}

// Options controls visibility. Section accepts a section id or a section name
// resolved against Sections; Person matches Task.ComputedPersonID.
type Options struct {
	IncludeDateless bool
	IncludeFuture   bool
	Section         string
	Person          string
	Sections        []model.Section
}

// ResolveSection maps a section filter to a section id. A matching section
// name wins; otherwise the filter is taken to be an id already.
func ResolveSection(filter string, sections []model.Section) string {
	if filter == "" {
		return ""
	}
	for _, s := range sections {
		if s.Name == filter {
			return s.ID
		}
	}
	return filter
}

// DefaultSection picks the section for a new task. preferred matches a
// section id, or a name ignoring case. Otherwise the section with the highest
// sort order is used. It returns "" when there are no sections.
func DefaultSection(preferred string, sections []model.Section) string {
	if preferred != "" {
		for _, s := range sections {
			if s.ID == preferred || strings.EqualFold(s.Name, preferred) {
				return s.ID
			}
		}
	}
	var best *model.Section
	for i := range sections {
		if best == nil || sections[i].SortOrder > best.SortOrder {
			best = &sections[i]
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// DueDay returns local midnight of the task's due day. The boolean is false
// when the task has no due date or it cannot be parsed.
func DueDay(t *model.Task, loc *time.Location) (time.Time, bool) {
	due, ok := dates.ParseTimestamp(t.Due, loc)
	if !ok {
		return time.Time{}, false
	}
	return dates.CalendarDay(due, t.IsAllDay, loc), true
}

// completedDay returns local midnight of the task's last completion.
func completedDay(t *model.Task, loc *time.Location) (time.Time, bool) {
	lc, ok := dates.ParseTimestamp(t.LastCompleted, loc)
	if !ok {
		return time.Time{}, false
	}
	return dates.CalendarDay(lc, false, loc), true
}

// view holds the per-call values shared by every task in a pass.
type view struct {
	mode      Mode
	refNorm   time.Time
	todayNorm time.Time
	loc       *time.Location
	sectionID string
	opts      Options
}

func newView(ref, now time.Time, opts Options) view {
	loc := now.Location()
	return view{
		mode:      ModeFor(ref, now),
		refNorm:   dates.NormalizeToMidnight(ref.In(loc)),
		todayNorm: dates.NormalizeToMidnight(now),
		loc:       loc,
		sectionID: ResolveSection(opts.Section, opts.Sections),
		opts:      opts,
	}
}

// Classify returns the branch that includes or excludes t when viewing ref,
// where now is the real current time and its location is "local".
func Classify(t *model.Task, ref, now time.Time, opts Options) Reason {
	return newView(ref, now, opts).classify(t)
}

func (v view) classify(t *model.Task) Reason {
	if v.sectionID != "" && t.SectionID != v.sectionID {
		return OtherSection
	}
	if v.opts.Person != "" && t.ComputedPersonID != v.opts.Person {
		return OtherPerson
	}
	if v.mode == ModeFuture && !v.opts.IncludeFuture {
		return FutureHidden
	}

	due, dated := DueDay(t, v.loc)
	if !dated {
		if v.mode != ModePast && v.opts.IncludeDateless {
			return Dateless
		}
		return DatelessHidden
	}

	switch v.mode {
	case ModeToday:
		return v.classifyToday(t, due)
	case ModePast:
		return v.classifyPast(t, due)
	default:
		return v.classifyFuture(t, due)
	}
}

func (v view) classifyToday(t *model.Task, due time.Time) Reason {
	if due.Equal(v.refNorm) {
		return DueOnDay
	}
	if !t.IsCompleted() && due.Before(v.refNorm) {
		return Overdue
	}
	// Compared with the real day, not the viewed one.
	if t.IsCompleted() {
		if done, ok := completedDay(t, v.loc); ok && done.Equal(v.todayNorm) {
			return CompletedToday
		}
	}
	return Excluded
}

func (v view) classifyPast(t *model.Task, due time.Time) Reason {
	if t.IsCompleted() {
		if done, ok := completedDay(t, v.loc); ok && done.Equal(v.refNorm) {
			return CompletedOnDay
		}
		return Excluded
	}
	switch {
	case due.Equal(v.refNorm):
		return DueOnDay
	case due.Before(v.refNorm):
		return Overdue
	default:
		return Excluded
	}
}

func (v view) classifyFuture(t *model.Task, due time.Time) Reason {
	if due.Equal(v.refNorm) {
		return DueOnDay
	}
	if !t.IsCompleted() && due.Before(v.refNorm) {
		return Overdue
	}
	return Excluded
}

// SelectActiveTasks returns pointers into tasks for every task active when
// viewing ref. Input order is preserved.
func SelectActiveTasks(tasks []model.Task, ref, now time.Time, opts Options) []*model.Task {
	v := newView(ref, now, opts)
	var active []*model.Task
	for i := range tasks {
		if v.classify(&tasks[i]).Active() {
			active = append(active, &tasks[i])
		}
	}
	return active
}

// SelectToday is SelectActiveTasks viewing the real current day.
func SelectToday(tasks []model.Task, now time.Time, opts Options) []*model.Task {
	return SelectActiveTasks(tasks, now, now, opts)
}
