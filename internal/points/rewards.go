package points

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bryan-cox/chorebot/internal/dates"
	"github.com/bryan-cox/chorebot/internal/model"
)

// SortMode selects the reward ordering.
type SortMode string

// Reward sort modes.
const (
	SortByCost    SortMode = "cost"
	SortByName    SortMode = "name"
	SortByCreated SortMode = "created"
)

// Redemption errors.
var (
	ErrNoPerson           = errors.New("no person selected")
	ErrRewardDisabled     = errors.New("reward is disabled")
	ErrInsufficientPoints = errors.New("not enough points")
)

// ParseSortMode maps a config value to a SortMode, defaulting to cost.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "", SortByCost:
		return SortByCost, nil
	case SortByName:
		return SortByName, nil
	case SortByCreated:
		return SortByCreated, nil
	}
	return SortByCost, fmt.Errorf("unknown reward sort mode %q, use cost, name or created", s)
}

// SortRewards returns a sorted copy of rewards. Cost and created sort
// ascending; a missing or invalid created timestamp counts as the epoch.
func SortRewards(rewards []model.Reward, mode SortMode) []model.Reward {
	sorted := make([]model.Reward, len(rewards))
	copy(sorted, rewards)

	switch mode {
	case SortByName:
		c := collate.New(language.English)
		sort.SliceStable(sorted, func(i, j int) bool {
			return c.CompareString(sorted[i].Name, sorted[j].Name) < 0
		})
	case SortByCreated:
		sort.SliceStable(sorted, func(i, j int) bool {
			return createdAt(sorted[i]).Before(createdAt(sorted[j]))
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Cost < sorted[j].Cost
		})
	}
	return sorted
}

func createdAt(r model.Reward) time.Time {
	if t, ok := dates.ParseTimestamp(r.Created, time.UTC); ok {
		return t
	}
	return time.Unix(0, 0)
}

// VisibleRewards drops disabled rewards unless showDisabled is set.
func VisibleRewards(rewards []model.Reward, showDisabled bool) []model.Reward {
	var visible []model.Reward
	for _, r := range rewards {
		if r.Enabled || showDisabled {
			visible = append(visible, r)
		}
	}
	return visible
}

// RewardsFor keeps rewards open to everyone plus those scoped to personID.
// An empty personID keeps every reward.
func RewardsFor(rewards []model.Reward, personID string) []model.Reward {
	if personID == "" {
		return rewards
	}
	var out []model.Reward
	for _, r := range rewards {
		if r.PersonID == "" || r.PersonID == personID {
			out = append(out, r)
		}
	}
	return out
}

// CanRedeem returns nil when person can redeem reward right now.
func CanRedeem(person *model.PersonPoints, reward model.Reward) error {
	if person == nil {
		return ErrNoPerson
	}
	if !reward.Enabled {
		return ErrRewardDisabled
	}
	if person.PointsBalance < reward.Cost {
		return fmt.Errorf("%w: %s has %d, %q costs %d", ErrInsufficientPoints, person.EntityID, person.PointsBalance, reward.Name, reward.Cost)
	}
	return nil
}
