// Package report groups active tasks into ordered buckets, aggregates their
// progress and renders the results as text.
package report

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bryan-cox/chorebot/internal/dates"
	"github.com/bryan-cox/chorebot/internal/filter"
	"github.com/bryan-cox/chorebot/internal/model"
)

// Default bucket labels.
const (
	DefaultUntaggedLabel = "Untagged"
	DefaultFutureLabel   = "Upcoming"
)

// BoardPrefix marks the todo entities that belong to ChoreBot.
const BoardPrefix = "todo.chorebot_"

// Group is a named bucket of tasks. Tasks are references into the caller's
// slice, so one task can sit in several groups.
type Group struct {
	Name      string
	Tasks     []*model.Task
	Collapsed bool
}

// Progress counts completed tasks out of a total.
type Progress struct {
	Completed int
	Total     int
}

// Done reports whether every task is complete and there is at least one.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed == p.Total
}

// GroupByTag places each task once per tag, or in the untagged bucket when it
// has none. Buckets appear in first-encountered order.
func GroupByTag(tasks []*model.Task, untaggedLabel string) []Group {
	var groups []Group
	index := make(map[string]int)

	add := func(name string, t *model.Task) {
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	for _, t := range tasks {
		if len(t.Tags) == 0 {
			add(untaggedLabel, t)
			continue
		}
		seen := make(map[string]bool, len(t.Tags))
		for _, tag := range t.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			add(tag, t)
		}
	}
	return groups
}

// SplitFutureBucket diverts tasks due strictly after todayNorm into future,
// sorted by due time. Undated tasks stay current.
func SplitFutureBucket(tasks []*model.Task, todayNorm time.Time) (current, future []*model.Task) {
	loc := todayNorm.Location()
	for _, t := range tasks {
		if due, ok := filter.DueDay(t, loc); ok && due.After(todayNorm) {
			future = append(future, t)
			continue
		}
		current = append(current, t)
	}

	sort.SliceStable(future, func(i, j int) bool {
		a, _ := dates.ParseTimestamp(future[i].Due, loc)
		b, _ := dates.ParseTimestamp(future[j].Due, loc)
		return a.Before(b)
	})
	return current, future
}

// SortGroups orders groups: the future bucket always last; then groups in
// explicitOrder by position; then the remaining groups alphabetically with
// the untagged bucket after them. It returns a new slice.
func SortGroups(groups []Group, explicitOrder []string, untaggedLabel, futureLabel string) []Group {
	position := make(map[string]int, len(explicitOrder))
	for i, name := range explicitOrder {
		if _, dup := position[name]; !dup {
			position[name] = i
		}
	}

	const (
		tierListed = iota
		tierUnlisted
		tierUntagged
		tierFuture
	)
	tier := func(name string) int {
		if name == futureLabel {
			return tierFuture
		}
		if _, ok := position[name]; ok {
			return tierListed
		}
		if name == untaggedLabel {
			return tierUntagged
		}
		return tierUnlisted
	}

	sorted := make([]Group, len(groups))
	copy(sorted, groups)
	c := collate.New(language.English)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Name, sorted[j].Name
		ta, tb := tier(a), tier(b)
		if ta != tb {
			return ta < tb
		}
		if ta == tierListed {
			return position[a] < position[b]
		}
		return c.CompareString(a, b) < 0
	})
	return sorted
}

// CalculateProgress counts completed tasks out of all tasks given.
func CalculateProgress(tasks []*model.Task) Progress {
	p := Progress{Total: len(tasks)}
	for _, t := range tasks {
		if t.IsCompleted() {
			p.Completed++
		}
	}
	return p
}

// CalculateDatedProgress is CalculateProgress over tasks with a valid due date.
func CalculateDatedProgress(tasks []*model.Task, loc *time.Location) Progress {
	var dated []*model.Task
	for _, t := range tasks {
		if _, ok := filter.DueDay(t, loc); ok {
			dated = append(dated, t)
		}
	}
	return CalculateProgress(dated)
}

// GroupOptions configures BuildGroups.
type GroupOptions struct {
	filter.Options
	ShowFuture    bool
	UntaggedLabel string
	FutureLabel   string
	Order         []string
}

func (o GroupOptions) labels() (untagged, future string) {
	untagged, future = o.UntaggedLabel, o.FutureLabel
	if untagged == "" {
		untagged = DefaultUntaggedLabel
	}
	if future == "" {
		future = DefaultFutureLabel
	}
	return untagged, future
}

// BuildGroups produces the sorted grouped view for today. Tasks active today
// are grouped by tag; with ShowFuture, tasks due after today go to the future
// bucket instead.
func BuildGroups(tasks []model.Task, now time.Time, opts GroupOptions) []Group {
	untagged, future := opts.labels()

	fo := opts.Options
	fo.Section = filter.ResolveSection(fo.Section, fo.Sections)
	fo.Sections = nil

	todayNorm := dates.NormalizeToMidnight(now)
	var candidates []*model.Task
	for i := range tasks {
		t := &tasks[i]
		r := filter.Classify(t, now, now, fo)
		if r == filter.OtherSection || r == filter.OtherPerson {
			continue
		}
		if r.Active() {
			candidates = append(candidates, t)
			continue
		}
		if opts.ShowFuture {
			if due, ok := filter.DueDay(t, now.Location()); ok && due.After(todayNorm) {
				candidates = append(candidates, t)
			}
		}
	}

	current := candidates
	var upcoming []*model.Task
	if opts.ShowFuture {
		current, upcoming = SplitFutureBucket(candidates, todayNorm)
	}

	groups := GroupByTag(current, untagged)
	if len(upcoming) > 0 {
		groups = append(groups, Group{Name: future, Tasks: upcoming})
	}
	return SortGroups(groups, opts.Order, untagged, future)
}

// PersonProgress is the dated progress of today's tasks assigned to personID
// across every ChoreBot board.
func PersonProgress(boards []model.Board, personID string, now time.Time) Progress {
	var assigned []*model.Task
	for i := range boards {
		if !strings.HasPrefix(boards[i].EntityID, BoardPrefix) {
			continue
		}
		assigned = append(assigned, filter.SelectToday(boards[i].Tasks, now, filter.Options{Person: personID})...)
	}
	return CalculateDatedProgress(assigned, now.Location())
}
