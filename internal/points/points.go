// Package points computes completion rewards and streak bonuses.
package points

import (
	"fmt"

	"github.com/bryan-cox/chorebot/internal/model"
)

// TemplateIndex builds a uid lookup for templates. It is built fresh per
// computation; tasks refer to templates by ParentUID only.
func TemplateIndex(templates []model.Template) map[string]*model.Template {
	index := make(map[string]*model.Template, len(templates))
	for i := range templates {
		index[templates[i].UID] = &templates[i]
	}
	return index
}

// TemplateFor returns the template that spawned t, or nil if t is not a
// recurring instance or its template is missing.
func TemplateFor(t *model.Task, index map[string]*model.Template) *model.Template {
	if t.ParentUID == "" {
		return nil
	}
	return index[t.ParentUID]
}

// IsBonusEligibleNext reports whether the next completion of an instance of
// tmpl, which would make the streak StreakCurrent+1, earns the streak bonus.
func IsBonusEligibleNext(tmpl *model.Template) bool {
	if tmpl == nil || tmpl.StreakBonusPoints <= 0 || tmpl.StreakBonusInterval <= 0 {
		return false
	}
	return (tmpl.StreakCurrent+1)%tmpl.StreakBonusInterval == 0
}

// TotalPointsForCompletion is the base value of t plus the template's streak
// bonus when the next completion hits the bonus interval. A task worth no
// points earns nothing, bonus included.
func TotalPointsForCompletion(t *model.Task, tmpl *model.Template) int {
	if t.PointsValue <= 0 {
		return 0
	}
	total := t.PointsValue
	if bonusPending(t, tmpl) {
		total += tmpl.StreakBonusPoints
	}
	return total
}

// Term returns the label shown after a point value.
func Term(display model.PointsDisplay) string {
	if display.Text != "" {
		return display.Text
	}
	return display.Icon
}

// Badge renders the points badge for a task: "+10 points", or "+10 + 5 points"
// when the next completion earns the streak bonus. Empty for pointless tasks.
func Badge(t *model.Task, tmpl *model.Template, display model.PointsDisplay) string {
	if t.PointsValue <= 0 {
		return ""
	}
	value := fmt.Sprintf("+%d", t.PointsValue)
	if bonusPending(t, tmpl) {
		value = fmt.Sprintf("+%d + %d", t.PointsValue, tmpl.StreakBonusPoints)
	}
	if term := Term(display); term != "" {
		return value + " " + term
	}
	return value
}

// bonusPending reports whether tmpl is t's parent and its next completion
// earns the streak bonus.
func bonusPending(t *model.Task, tmpl *model.Template) bool {
	return t.ParentUID != "" && tmpl != nil && tmpl.UID == t.ParentUID && IsBonusEligibleNext(tmpl)
}
