package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bryan-cox/chorebot/internal/dates"
	"github.com/bryan-cox/chorebot/internal/filter"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/points"
)

// Text markers.
const (
	BulletTask       = "    • "
	BulletDetail     = "        ◦ "
	MarkDone         = "[x]"
	MarkOpen         = "[ ]"
	CollapsedSuffix  = " [collapsed]"
	EmptyState       = "    No tasks"
	EmptyRewardState = "    No rewards configured yet."
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	bonusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderContext carries what the renderers need besides the tasks.
type RenderContext struct {
	Now        time.Time
	Templates  map[string]*model.Template
	Display    model.PointsDisplay
	ShowPoints bool
}

// Header renders a section title.
func Header(title string) string {
	return headerStyle.Render(title)
}

// FormatTask renders one task line without its bullet.
func FormatTask(t *model.Task, ctx RenderContext) string {
	mark := MarkOpen
	if t.IsCompleted() {
		mark = MarkDone
	}
	parts := []string{mark + " " + t.Summary}

	loc := ctx.Now.Location()
	if due, ok := dates.ParseTimestamp(t.Due, loc); ok {
		label := dates.FormatRelative(due, t.IsAllDay, ctx.Now)
		if day, _ := filter.DueDay(t, loc); !t.IsCompleted() && day.Before(dates.NormalizeToMidnight(ctx.Now)) {
			label = overdueStyle.Render(label)
		}
		parts = append(parts, label)
	}

	if ctx.ShowPoints {
		tmpl := points.TemplateFor(t, ctx.Templates)
		if badge := points.Badge(t, tmpl, ctx.Display); badge != "" {
			if t.IsRecurringInstance() && points.IsBonusEligibleNext(tmpl) {
				badge = bonusStyle.Render(badge)
			}
			parts = append(parts, badge)
		}
	}

	line := strings.Join(parts, " · ")
	if t.IsCompleted() {
		return doneStyle.Render(line)
	}
	return line
}

// PrintTaskList prints a titled flat list with its progress.
func PrintTaskList(out io.Writer, title string, tasks []*model.Task, ctx RenderContext) {
	p := CalculateProgress(tasks)
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s (%d/%d)", title, p.Completed, p.Total)))
	if len(tasks) == 0 {
		fmt.Fprintln(out, EmptyState)
		return
	}
	for _, t := range tasks {
		fmt.Fprintf(out, "%s%s\n", BulletTask, FormatTask(t, ctx))
	}
}

// PrintGroups prints each group with its progress. Collapsed groups print
// their header only.
func PrintGroups(out io.Writer, groups []Group, ctx RenderContext) {
	if len(groups) == 0 {
		fmt.Fprintln(out, EmptyState)
		return
	}
	for _, g := range groups {
		p := CalculateProgress(g.Tasks)
		header := fmt.Sprintf("%s (%d/%d)", g.Name, p.Completed, p.Total)
		fmt.Fprintln(out)
		if g.Collapsed {
			fmt.Fprintln(out, headerStyle.Render(header)+CollapsedSuffix)
			continue
		}
		fmt.Fprintln(out, headerStyle.Render(header))
		for _, t := range g.Tasks {
			fmt.Fprintf(out, "%s%s\n", BulletTask, FormatTask(t, ctx))
		}
	}
}

// PrintRewards prints rewards with the selected person's ability to redeem each.
func PrintRewards(out io.Writer, rewards []model.Reward, person *model.PersonPoints, display model.PointsDisplay) {
	term := points.Term(display)
	if person != nil {
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Rewards for %s (%d %s)", person.EntityID, person.PointsBalance, term)))
	} else {
		fmt.Fprintln(out, headerStyle.Render("Rewards"))
	}
	if len(rewards) == 0 {
		fmt.Fprintln(out, EmptyRewardState)
		return
	}

	for _, r := range rewards {
		line := fmt.Sprintf("%s%s · %d %s", BulletTask, r.Name, r.Cost, term)
		switch err := points.CanRedeem(person, r); {
		case err == nil:
			line += " [redeemable]"
		case !r.Enabled:
			line += " [disabled]"
		case person != nil:
			line += fmt.Sprintf(" [need %d more]", r.Cost-person.PointsBalance)
		}
		fmt.Fprintln(out, line)
		if r.Description != "" {
			fmt.Fprintf(out, "%s%s\n", BulletDetail, r.Description)
		}
	}
}

// PrintPersonProgress prints a person's balance and today's progress under name.
func PrintPersonProgress(out io.Writer, name string, person model.PersonPoints, p Progress, display model.PointsDisplay) {
	fmt.Fprintln(out, headerStyle.Render(name))
	fmt.Fprintf(out, "%s%d %s\n", BulletTask, person.PointsBalance, points.Term(display))
	fmt.Fprintf(out, "%sToday: %d/%d done\n", BulletTask, p.Completed, p.Total)
}
