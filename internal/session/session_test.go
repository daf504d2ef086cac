package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bryan-cox/chorebot/internal/draft"
	"github.com/bryan-cox/chorebot/internal/model"
	"github.com/bryan-cox/chorebot/internal/points"
)

const entity = "todo.chorebot_chores"

type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) CallService(ctx context.Context, domain, service string, payload map[string]any) error {
	args := m.Called(ctx, domain, service, payload)
	return args.Error(0)
}

func TestToggle(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)

	caller.On("CallService", mock.Anything, "todo", "update_item", map[string]any{
		"entity_id": entity, "item": "t1", "status": model.StatusCompleted,
	}).Return(nil).Once()
	caller.On("CallService", mock.Anything, "todo", "update_item", map[string]any{
		"entity_id": entity, "item": "t2", "status": model.StatusNeedsAction,
	}).Return(nil).Once()

	require.NoError(t, s.Toggle(context.Background(), &model.Task{UID: "t1", Status: model.StatusNeedsAction}))
	require.NoError(t, s.Toggle(context.Background(), &model.Task{UID: "t2", Status: model.StatusCompleted}))
	caller.AssertExpectations(t)
	assert.False(t, s.Busy())
}

func TestSaveValidatesBeforeCalling(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)

	err := s.Save(context.Background(), draft.Draft{UID: "t1", Summary: " "}, time.UTC)
	assert.ErrorIs(t, err, draft.ErrEmptySummary)
	caller.AssertNotCalled(t, "CallService", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveAndAdd(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)

	caller.On("CallService", mock.Anything, "chorebot", "update_task", mock.MatchedBy(func(p map[string]any) bool {
		return p["list_id"] == entity && p["uid"] == "t1" && p["summary"] == "Dishes"
	})).Return(nil).Once()
	caller.On("CallService", mock.Anything, "chorebot", "add_task", mock.MatchedBy(func(p map[string]any) bool {
		return p["list_id"] == entity && p["summary"] == "Laundry"
	})).Return(nil).Once()

	require.NoError(t, s.Save(context.Background(), draft.Draft{UID: "t1", Summary: "Dishes", HasDueDate: false}, time.UTC))
	require.NoError(t, s.Add(context.Background(), draft.Draft{Summary: "Laundry"}, time.UTC))
	caller.AssertExpectations(t)
}

func TestDelete(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)
	caller.On("CallService", mock.Anything, "todo", "remove_item", map[string]any{"entity_id": entity, "item": "t9"}).Return(nil).Once()

	require.NoError(t, s.Delete(context.Background(), "t9"))
	caller.AssertExpectations(t)
}

func TestRejectedCallReleasesGuard(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)
	boom := errors.New("host unavailable")

	caller.On("CallService", mock.Anything, "todo", "remove_item", mock.Anything).Return(boom).Once()
	caller.On("CallService", mock.Anything, "todo", "remove_item", mock.Anything).Return(nil).Once()

	err := s.Delete(context.Background(), "t1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Busy())

	require.NoError(t, s.Delete(context.Background(), "t1"))
	caller.AssertNumberOfCalls(t, "CallService", 2)
}

func TestSingleFlight(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)

	started := make(chan struct{})
	release := make(chan struct{})
	caller.On("CallService", mock.Anything, "todo", "update_item", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil).Once()

	done := make(chan error, 1)
	go func() {
		done <- s.Toggle(context.Background(), &model.Task{UID: "t1"})
	}()

	<-started
	assert.True(t, s.Busy())
	assert.ErrorIs(t, s.Delete(context.Background(), "t1"), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	caller.AssertNumberOfCalls(t, "CallService", 1)
}

func TestRedeem(t *testing.T) {
	reward := model.Reward{ID: "r1", Name: "Arcade", Cost: 20, Enabled: true}

	t.Run("affordable", func(t *testing.T) {
		caller := new(MockCaller)
		s := New(caller, entity)
		caller.On("CallService", mock.Anything, "chorebot", "redeem_reward", map[string]any{"person_id": "person.sam", "reward_id": "r1"}).Return(nil).Once()

		require.NoError(t, s.Redeem(context.Background(), &model.PersonPoints{EntityID: "person.sam", PointsBalance: 20}, reward))
		caller.AssertExpectations(t)
	})

	t.Run("checks before calling", func(t *testing.T) {
		caller := new(MockCaller)
		s := New(caller, entity)

		err := s.Redeem(context.Background(), &model.PersonPoints{EntityID: "person.sam", PointsBalance: 5}, reward)
		assert.ErrorIs(t, err, points.ErrInsufficientPoints)
		assert.ErrorIs(t, s.Redeem(context.Background(), nil, reward), points.ErrNoPerson)

		disabled := reward
		disabled.Enabled = false
		assert.ErrorIs(t, s.Redeem(context.Background(), &model.PersonPoints{PointsBalance: 100}, disabled), points.ErrRewardDisabled)
		caller.AssertNotCalled(t, "CallService", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestManageReward(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)
	caller.On("CallService", mock.Anything, "chorebot", "manage_reward", map[string]any{
		"reward_id": "r1", "name": "Movie night", "cost": 50, "enabled": true, "icon": "mdi:movie",
	}).Return(nil).Once()

	require.NoError(t, s.ManageReward(context.Background(), model.Reward{ID: "r1", Name: "Movie night", Cost: 50, Enabled: true, Icon: "mdi:movie"}))
	caller.AssertExpectations(t)

	assert.Error(t, s.ManageReward(context.Background(), model.Reward{Cost: 5}))
	assert.Error(t, s.ManageReward(context.Background(), model.Reward{Name: "x", Cost: -1}))
}

func TestManageRewardCostBounds(t *testing.T) {
	caller := new(MockCaller)
	s := New(caller, entity)

	for _, cost := range []int{0, 10001} {
		err := s.ManageReward(context.Background(), model.Reward{Name: "Free", Cost: cost, Enabled: true})
		assert.ErrorContains(t, err, "between 1 and 10000", "cost %d", cost)
	}
	caller.AssertNotCalled(t, "CallService", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	caller.On("CallService", mock.Anything, "chorebot", "manage_reward", map[string]any{
		"name": "Sticker", "cost": 1, "enabled": true,
	}).Return(nil).Once()
	require.NoError(t, s.ManageReward(context.Background(), model.Reward{Name: "Sticker", Cost: 1, Enabled: true}))
	caller.AssertExpectations(t)
}
