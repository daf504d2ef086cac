// Package snapshot loads host state snapshots and decodes entity attribute
// bags into typed records once, at the boundary.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryan-cox/chorebot/internal/dates"
	"github.com/bryan-cox/chorebot/internal/model"
)

// Attribute keys published by the host.
const (
	AttrTasks         = "chorebot_tasks"
	AttrTemplates     = "chorebot_templates"
	AttrSections      = "chorebot_sections"
	AttrTags          = "chorebot_tags"
	AttrPeople        = "people"
	AttrRewards       = "rewards"
	AttrPointsDisplay = "points_display"
	AttrFriendlyName  = "friendly_name"
)

// DefaultPointsSensor is the entity holding balances and rewards.
const DefaultPointsSensor = "sensor.chorebot_points"

// ErrEntityNotFound is returned when a requested entity is absent.
var ErrEntityNotFound = errors.New("entity not found")

// Load reads a snapshot file. The file maps entity ids to
// {state, attributes}; YAML and JSON are both accepted.
func Load(path string) (model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot '%s': %w", path, err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse snapshot '%s': %w", path, err)
	}
	return snap, nil
}

// Parse decodes snapshot bytes.
func Parse(data []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap == nil {
		snap = model.Snapshot{}
	}
	for id, e := range snap {
		e.EntityID = id
		snap[id] = e
	}
	return snap, nil
}

// FromEntities indexes a list of entities, as returned by the host, by id.
func FromEntities(entities []model.Entity) model.Snapshot {
	snap := make(model.Snapshot, len(entities))
	for _, e := range entities {
		snap[e.EntityID] = e
	}
	return snap
}

// customFields is the legacy location of task fields on older hosts.
type customFields struct {
	Tags          []string `json:"tags"`
	IsAllDay      bool     `json:"is_all_day"`
	ParentUID     string   `json:"parent_uid"`
	RRule         string   `json:"rrule"`
	SectionID     string   `json:"section_id"`
	LastCompleted string   `json:"last_completed"`
}

type wireTask struct {
	model.Task
	CustomFields *customFields `json:"custom_fields"`
}

func (w wireTask) normalize() model.Task {
	t := w.Task
	if t.Status == "" {
		t.Status = model.StatusNeedsAction
	}
	cf := w.CustomFields
	if cf == nil {
		return t
	}
	if len(t.Tags) == 0 {
		t.Tags = cf.Tags
	}
	if !t.IsAllDay {
		t.IsAllDay = cf.IsAllDay
	}
	if t.ParentUID == "" {
		t.ParentUID = cf.ParentUID
	}
	if t.RRule == "" {
		t.RRule = cf.RRule
	}
	if t.SectionID == "" {
		t.SectionID = cf.SectionID
	}
	if t.LastCompleted == "" {
		t.LastCompleted = cf.LastCompleted
	}
	return t
}

// Board decodes a todo entity into typed tasks, templates and sections.
// Individual records that cannot be decoded are skipped.
func Board(snap model.Snapshot, entityID string) (model.Board, error) {
	e, ok := snap[entityID]
	if !ok {
		return model.Board{}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}

	board := model.Board{EntityID: entityID, Name: stringAttr(e.Attributes, AttrFriendlyName)}
	for _, w := range decodeList[wireTask](e.Attributes, AttrTasks, entityID) {
		t := w.normalize()
		if _, ok := dates.ParseTimestamp(t.Due, time.Local); t.HasDue() && !ok {
			slog.Warn("task due date is not a valid timestamp, treating as dateless", "entity", entityID, "uid", t.UID, "due", t.Due)
		}
		board.Tasks = append(board.Tasks, t)
	}
	board.Templates = decodeList[model.Template](e.Attributes, AttrTemplates, entityID)
	board.Sections = decodeList[model.Section](e.Attributes, AttrSections, entityID)
	board.Tags = decodeList[string](e.Attributes, AttrTags, entityID)
	return board, nil
}

// Boards decodes every todo entity in the snapshot, ordered by entity id.
func Boards(snap model.Snapshot) []model.Board {
	var ids []string
	for id := range snap {
		if strings.HasPrefix(id, "todo.") {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	boards := make([]model.Board, 0, len(ids))
	for _, id := range ids {
		b, err := Board(snap, id)
		if err != nil {
			continue
		}
		boards = append(boards, b)
	}
	return boards
}

// PointsSensor decodes the points sensor: balances, rewards and display config.
func PointsSensor(snap model.Snapshot, entityID string) (model.PointsSensor, error) {
	e, ok := snap[entityID]
	if !ok {
		return model.PointsSensor{Display: model.DefaultPointsDisplay}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}

	sensor := model.PointsSensor{
		People:  make(map[string]model.PersonPoints),
		Rewards: decodeList[model.Reward](e.Attributes, AttrRewards, entityID),
		Display: pointsDisplay(e.Attributes),
	}

	if raw, ok := e.Attributes[AttrPeople].(map[string]any); ok {
		for id, v := range raw {
			var p model.PersonPoints
			if err := remarshal(v, &p); err != nil {
				slog.Warn("skipping person record", "entity", entityID, "person", id, "error", err)
				continue
			}
			if p.EntityID == "" {
				p.EntityID = id
			}
			sensor.People[id] = p
		}
	}
	return sensor, nil
}

// PersonName returns the friendly name of a person entity, falling back to
// the id without its domain.
func PersonName(snap model.Snapshot, entityID string) string {
	if e, ok := snap[entityID]; ok {
		if name := stringAttr(e.Attributes, AttrFriendlyName); name != "" {
			return name
		}
	}
	return strings.TrimPrefix(entityID, "person.")
}

// pointsDisplay keeps explicit empty strings; only absent keys get defaults.
func pointsDisplay(attrs map[string]any) model.PointsDisplay {
	raw, ok := attrs[AttrPointsDisplay].(map[string]any)
	if !ok {
		return model.DefaultPointsDisplay
	}
	display := model.DefaultPointsDisplay
	if icon, ok := raw["icon"].(string); ok {
		display.Icon = icon
	}
	if text, ok := raw["text"].(string); ok {
		display.Text = text
	}
	return display
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// decodeList decodes attrs[key] as a list, element by element, so one bad
// record does not drop the others.
func decodeList[T any](attrs map[string]any, key, entityID string) []T {
	raw, ok := attrs[key].([]any)
	if !ok {
		return nil
	}
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		var v T
		if err := remarshal(item, &v); err != nil {
			slog.Warn("skipping malformed record", "entity", entityID, "attribute", key, "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
