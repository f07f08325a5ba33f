package logic

import (
	"sync"
	"time"
)

// Controller holds the relay timer state shared by the tick driver, the
// button handler and the relay state machine.
//
// Every exported method runs as one critical section under mu, which stands in
// for the interrupt masking of a microcontroller: a handler always runs to
// completion before any other handler or the poll observes its writes.
type Controller struct {
	mu  sync.Mutex
	cfg Config

	// Written by Poll only.
	state State
	relay bool

	// Written by the button handler only.
	onDuration  int
	offDuration int

	// Incremented by Tick, reset by Poll on each transition.
	elapsed int

	// Written by Tick only.
	subTicks int
	onPhase  int
	offPhase int
	onFlash  bool
	offFlash bool

	// Set by the button handler, cleared by Tick.
	latchA bool
	latchB bool

	startTime     time.Time
	counts        EventCounts
	lastHeartbeat time.Time
}

// NewController creates a Controller in the OFF state with both durations at
// their minimum. The startTime is used for calculating uptime in heartbeat events.
func NewController(cfg Config, startTime time.Time) *Controller {
	return &Controller{
		cfg:           cfg,
		state:         StateOff,
		onDuration:    cfg.On.Min,
		offDuration:   cfg.Off.Min,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Tick advances the controller by one tick period.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subTicks++
	c.onPhase += c.cfg.On.FlashStep
	c.offPhase += c.cfg.Off.FlashStep

	if c.subTicks >= c.cfg.TicksPerSecond {
		c.subTicks = 0
		c.onFlash = false
		c.offFlash = false
		c.onPhase = 0
		c.offPhase = 0
		c.elapsed++
	}

	if c.onPhase < c.onDuration {
		c.onFlash = !c.onFlash
	}
	if c.offPhase < c.offDuration {
		c.offFlash = !c.offFlash
	}

	c.latchA = false
	c.latchB = false
}

// ButtonInterrupt services one entry of the button interrupt. Button A takes
// priority over button B when both are pending. The serviced bit is always
// cleared in the returned mask, including when the edge is ignored as a bounce,
// so the caller can keep re-entering until nothing is left pending.
// A non-nil Event is returned when a duration changed.
func (c *Controller) ButtonInterrupt(p Pending, now time.Time) (Pending, *Event) {
	var b Button
	switch {
	case p.Has(ButtonA):
		b = ButtonA
	case p.Has(ButtonB):
		b = ButtonB
	default:
		return p, nil
	}

	c.mu.Lock()
	ev := c.press(b, now)
	c.mu.Unlock()

	return p &^ PendingFor(b), ev
}

// Press handles a single edge from b. It returns nil if the press was
// suppressed by the debounce latch.
func (c *Controller) Press(b Button, now time.Time) *Event {
	_, ev := c.ButtonInterrupt(PendingFor(b), now)
	return ev
}

func (c *Controller) press(b Button, now time.Time) *Event {
	latch, duration, kind, typ := &c.latchA, &c.offDuration, c.cfg.Off, EventOffDuration
	if b == ButtonB {
		latch, duration, kind, typ = &c.latchB, &c.onDuration, c.cfg.On, EventOnDuration
	}

	if *latch {
		c.counts.Bounced++
		return nil
	}
	*latch = true
	*duration = kind.Step(*duration)
	c.counts.Presses++

	return &Event{
		Timestamp:   now,
		Type:        typ,
		State:       c.state,
		OnDuration:  c.onDuration,
		OffDuration: c.offDuration,
	}
}

// Poll evaluates the relay state machine. It returns a transition event when
// the elapsed time has reached the duration of the current state, nil otherwise.
// Calling Poll again without an intervening Tick is a no-op.
func (c *Controller) Poll(now time.Time) *Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	limit := c.offDuration
	if c.state == StateOn {
		limit = c.onDuration
	}
	if c.elapsed < limit {
		return nil
	}

	c.elapsed = 0
	c.state = c.state.Other()
	c.relay = c.state == StateOn

	typ := EventRelayOff
	if c.state == StateOn {
		typ = EventRelayOn
		c.counts.RelayOn++
	} else {
		c.counts.RelayOff++
	}

	return &Event{
		Timestamp:   now,
		Type:        typ,
		State:       c.state,
		OnDuration:  c.onDuration,
		OffDuration: c.offDuration,
	}
}

// Outputs returns the levels that should currently be driven on the lines.
func (c *Controller) Outputs() Levels {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Levels{Relay: c.relay, OnFlash: c.onFlash, OffFlash: c.offFlash}
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	State       State
	OnDuration  int
	OffDuration int
	Elapsed     int
	Outputs     Levels
	Counts      EventCounts
}

// Remaining returns the whole seconds left before the next transition.
func (s Snapshot) Remaining() int {
	limit := s.OffDuration
	if s.State == StateOn {
		limit = s.OnDuration
	}
	if s.Elapsed >= limit {
		return 0
	}
	return limit - s.Elapsed
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:       c.state,
		OnDuration:  c.onDuration,
		OffDuration: c.offDuration,
		Elapsed:     c.elapsed,
		Outputs:     Levels{Relay: c.relay, OnFlash: c.onFlash, OffFlash: c.offFlash},
		Counts:      c.counts,
	}
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed, or
// if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
