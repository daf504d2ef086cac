// Package session runs user-triggered mutations against the host, one at a
// time per session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bryan-cox/chorebot/internal/draft"
	"github.com/bryan-cox/chorebot/internal/host"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/points"
)

// ErrBusy is returned when another action of the same session is still in flight.
var ErrBusy = errors.New("another action is still in progress")

// Reward costs accepted by the host.
const (
	minRewardCost = 1
	maxRewardCost = 10000
)

// Session carries the target list and the in-flight guard for one
// dialog-like interaction. The zero value is not usable; call New.
type Session struct {
	caller   host.Caller
	entity   string
	inFlight atomic.Bool
}

// New returns a session that mutates the todo list entity.
func New(caller host.Caller, entity string) *Session {
	return &Session{caller: caller, entity: entity}
}

// Busy reports whether an action is outstanding.
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// call issues one service call under the guard. A rejected call is returned
// once and the guard released.
func (s *Session) call(ctx context.Context, domain, service string, payload map[string]any) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.inFlight.Store(false)

	if err := s.caller.CallService(ctx, domain, service, payload); err != nil {
		return fmt.Errorf("%s.%s: %w", domain, service, err)
	}
	return nil
}

// Toggle flips t between completed and needs_action.
func (s *Session) Toggle(ctx context.Context, t *model.Task) error {
	status := model.StatusCompleted
	if t.IsCompleted() {
		status = model.StatusNeedsAction
	}
	return s.call(ctx, host.DomainTodo, host.ServiceUpdateItem, map[string]any{
		"entity_id": s.entity,
		"item":      t.UID,
		"status":    status,
	})
}

// Save sends an edited draft. Drafts that fail validation never reach the host.
func (s *Session) Save(ctx context.Context, d draft.Draft, loc *time.Location) error {
	payload, err := draft.BuildUpdatePayload(s.entity, d, loc)
	if err != nil {
		return err
	}
	return s.call(ctx, host.DomainChorebot, host.ServiceUpdateTask, payload)
}

// Add creates a task from d.
func (s *Session) Add(ctx context.Context, d draft.Draft, loc *time.Location) error {
	payload, err := draft.BuildAddPayload(s.entity, d, loc)
	if err != nil {
		return err
	}
	return s.call(ctx, host.DomainChorebot, host.ServiceAddTask, payload)
}

// Delete removes a task by uid.
func (s *Session) Delete(ctx context.Context, uid string) error {
	return s.call(ctx, host.DomainTodo, host.ServiceRemoveItem, map[string]any{
		"entity_id": s.entity,
		"item":      uid,
	})
}

// Redeem spends person's points on reward after checking it is affordable.
func (s *Session) Redeem(ctx context.Context, person *model.PersonPoints, reward model.Reward) error {
	if err := points.CanRedeem(person, reward); err != nil {
		return err
	}
	return s.call(ctx, host.DomainChorebot, host.ServiceRedeemReward, map[string]any{
		"person_id": person.EntityID,
		"reward_id": reward.ID,
	})
}

// ManageReward creates a reward definition, or updates it when r has an id.
func (s *Session) ManageReward(ctx context.Context, r model.Reward) error {
	if r.Name == "" {
		return errors.New("reward name is required")
	}
	if r.Cost < minRewardCost || r.Cost > maxRewardCost {
		return fmt.Errorf("reward cost must be between %d and %d, got %d", minRewardCost, maxRewardCost, r.Cost)
	}

	payload := map[string]any{
		"name":    r.Name,
		"cost":    r.Cost,
		"enabled": r.Enabled,
	}
	if r.ID != "" {
		payload["reward_id"] = r.ID
	}
	if r.Icon != "" {
		payload["icon"] = r.Icon
	}
	if r.Description != "" {
		payload["description"] = r.Description
	}
	if r.PersonID != "" {
		payload["person_id"] = r.PersonID
	}
	return s.call(ctx, host.DomainChorebot, host.ServiceManageReward, payload)
}
