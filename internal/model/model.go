// Package model defines the core data structures for ChoreBot.
package model

import "strings"

// Task status constants.
const (
	StatusNeedsAction = "needs_action"
	StatusCompleted   = "completed"
)

// Task represents a single todo item, possibly spawned by a recurring Template.
type Task struct {
	UID              string   `yaml:"uid" json:"uid"`
	Summary          string   `yaml:"summary" json:"summary"`
	Status           string   `yaml:"status" json:"status"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`
	Due              string   `yaml:"due,omitempty" json:"due,omitempty"`
	IsAllDay         bool     `yaml:"is_all_day,omitempty" json:"is_all_day,omitempty"`
	LastCompleted    string   `yaml:"last_completed,omitempty" json:"last_completed,omitempty"`
	Tags             []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	SectionID        string   `yaml:"section_id,omitempty" json:"section_id,omitempty"`
	ParentUID        string   `yaml:"parent_uid,omitempty" json:"parent_uid,omitempty"`
	RRule            string   `yaml:"rrule,omitempty" json:"rrule,omitempty"`
	PointsValue      int      `yaml:"points_value,omitempty" json:"points_value,omitempty"`
	ComputedPersonID string   `yaml:"computed_person_id,omitempty" json:"computed_person_id,omitempty"`

	StreakBonusPoints   int `yaml:"streak_bonus_points,omitempty" json:"streak_bonus_points,omitempty"`
	StreakBonusInterval int `yaml:"streak_bonus_interval,omitempty" json:"streak_bonus_interval,omitempty"`
}

// IsCompleted reports whether the task status is completed.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// HasDue reports whether a due timestamp is present. It does not validate it.
func (t *Task) HasDue() bool {
	return strings.TrimSpace(t.Due) != ""
}

// IsRecurringInstance reports whether the task was spawned by a template.
func (t *Task) IsRecurringInstance() bool {
	return t.ParentUID != ""
}

// Template is a recurring task definition owning the rrule and streak counters.
type Template struct {
	UID                 string `yaml:"uid" json:"uid"`
	Summary             string `yaml:"summary,omitempty" json:"summary,omitempty"`
	RRule               string `yaml:"rrule" json:"rrule"`
	StreakCurrent       int    `yaml:"streak_current" json:"streak_current"`
	StreakLongest       int    `yaml:"streak_longest" json:"streak_longest"`
	StreakBonusPoints   int    `yaml:"streak_bonus_points,omitempty" json:"streak_bonus_points,omitempty"`
	StreakBonusInterval int    `yaml:"streak_bonus_interval,omitempty" json:"streak_bonus_interval,omitempty"`
}

// Section is a display grouping for tasks.
type Section struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	SortOrder int    `yaml:"sort_order" json:"sort_order"`
}

// Reward is something a person can redeem points for.
type Reward struct {
	ID          string `yaml:"id" json:"id"`
	PersonID    string `yaml:"person_id,omitempty" json:"person_id,omitempty"`
	Name        string `yaml:"name" json:"name"`
	Cost        int    `yaml:"cost" json:"cost"`
	Icon        string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Created     string `yaml:"created,omitempty" json:"created,omitempty"`
}

// PersonPoints is the host's running balance for one person.
type PersonPoints struct {
	EntityID       string `yaml:"entity_id" json:"entity_id"`
	PointsBalance  int    `yaml:"points_balance" json:"points_balance"`
	LifetimePoints int    `yaml:"lifetime_points,omitempty" json:"lifetime_points,omitempty"`
	AccentColor    string `yaml:"accent_color,omitempty" json:"accent_color,omitempty"`
}

// PointsDisplay controls how point values are labelled.
type PointsDisplay struct {
	Icon string `yaml:"icon" json:"icon"`
	Text string `yaml:"text" json:"text"`
}

// DefaultPointsDisplay is used when the host provides no display config.
var DefaultPointsDisplay = PointsDisplay{Icon: "", Text: "points"}

// Entity is one host entity as found in a state snapshot. Attributes is a
// loosely typed bag and is decoded into typed records by the snapshot package.
type Entity struct {
	EntityID   string         `yaml:"entity_id,omitempty" json:"entity_id,omitempty"`
	State      string         `yaml:"state" json:"state"`
	Attributes map[string]any `yaml:"attributes" json:"attributes"`
}

// Snapshot maps entity ids to entities.
type Snapshot map[string]Entity

// Board is the typed view of a todo list entity.
type Board struct {
	EntityID  string
	Name      string
	Tasks     []Task
	Templates []Template
	Sections  []Section
	Tags      []string
}

// PointsSensor is the typed view of the points sensor entity.
type PointsSensor struct {
	People  map[string]PersonPoints
	Rewards []Reward
	Display PointsDisplay
}
