package report

import (
	"sync"
	"time"
)

// DefaultCollapseDelay is how long a group stays open after it becomes fully complete.
const DefaultCollapseDelay = 1500 * time.Millisecond

type pendingCollapse struct {
	timer *time.Timer
}

// CollapseTracker keeps per-group collapsed state across recomputations and
// collapses a group shortly after it becomes fully complete. A pending
// collapse is cancelled if the group's progress changes or it is toggled.
type CollapseTracker struct {
	mu          sync.Mutex
	delay       time.Duration
	futureLabel string
	collapsed   map[string]bool
	previous    map[string]Progress
	pending     map[string]*pendingCollapse
	onCollapse  func(name string)
}

// NewCollapseTracker returns a tracker. onCollapse, if set, runs on the timer
// goroutine after a group auto-collapses.
func NewCollapseTracker(delay time.Duration, futureLabel string, onCollapse func(name string)) *CollapseTracker {
	if delay <= 0 {
		delay = DefaultCollapseDelay
	}
	if futureLabel == "" {
		futureLabel = DefaultFutureLabel
	}
	return &CollapseTracker{
		delay:       delay,
		futureLabel: futureLabel,
		collapsed:   make(map[string]bool),
		previous:    make(map[string]Progress),
		pending:     make(map[string]*pendingCollapse),
		onCollapse:  onCollapse,
	}
}

// Apply copies the remembered collapsed state onto groups. Groups seen for
// the first time start collapsed only if they are the future bucket.
func (c *CollapseTracker) Apply(groups []Group) []Group {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Group, len(groups))
	for i, g := range groups {
		collapsed, ok := c.collapsed[g.Name]
		if !ok {
			collapsed = g.Name == c.futureLabel
			c.collapsed[g.Name] = collapsed
		}
		g.Collapsed = collapsed
		out[i] = g
	}
	return out
}

// IsCollapsed reports the remembered state of a group.
func (c *CollapseTracker) IsCollapsed(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collapsed[name]
}

// Toggle flips a group's collapsed state, cancelling any pending auto-collapse.
func (c *CollapseTracker) Toggle(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(name)
	c.collapsed[name] = !c.collapsed[name]
	return c.collapsed[name]
}

// Observe records a group's latest progress. When the group goes from
// incomplete to fully complete while expanded, a collapse is scheduled.
// It reports whether a collapse was scheduled.
func (c *CollapseTracker) Observe(name string, p Progress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.previous[name]
	c.previous[name] = p

	if seen && prev != p {
		c.cancelLocked(name)
	}

	justCompleted := seen && prev.Completed < prev.Total && p.Done() && !c.collapsed[name]
	if !justCompleted {
		return false
	}

	pc := &pendingCollapse{}
	pc.timer = time.AfterFunc(c.delay, func() { c.fire(name, pc) })
	c.pending[name] = pc
	return true
}

// Pending reports whether a collapse is scheduled for the group.
func (c *CollapseTracker) Pending(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[name]
	return ok
}

// Stop cancels every pending collapse.
func (c *CollapseTracker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.pending {
		c.cancelLocked(name)
	}
}

func (c *CollapseTracker) fire(name string, pc *pendingCollapse) {
	c.mu.Lock()
	if c.pending[name] != pc {
		// Cancelled or superseded after the timer already started.
		c.mu.Unlock()
		return
	}
	delete(c.pending, name)
	c.collapsed[name] = true
	c.mu.Unlock()

	if c.onCollapse != nil {
		c.onCollapse(name)
	}
}

func (c *CollapseTracker) cancelLocked(name string) {
	if pc, ok := c.pending[name]; ok {
		pc.timer.Stop()
		delete(c.pending, name)
	}
}
