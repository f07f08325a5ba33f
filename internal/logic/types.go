// Package logic contains the pure timing core of the relay timer.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of the relay.
type State string

const (
	StateOff State = "OFF"
	StateOn  State = "ON"
)

// Other returns the opposite relay state.
func (s State) Other() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// Button identifies one of the two adjustment buttons.
type Button int

const (
	// ButtonA steps the OFF duration.
	ButtonA Button = iota
	// ButtonB steps the ON duration.
	ButtonB
)

func (b Button) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	}
	return "UNKNOWN"
}

// Pending is a bitmask of buttons with an unacknowledged edge notification.
type Pending uint8

const (
	PendingA Pending = 1 << ButtonA
	PendingB Pending = 1 << ButtonB
)

// PendingFor returns the pending bit for b.
func PendingFor(b Button) Pending {
	return 1 << b
}

// Has reports whether b has an outstanding notification.
func (p Pending) Has(b Button) bool {
	return p&PendingFor(b) != 0
}

// EventType represents something worth publishing.
type EventType string

const (
	EventRelayOn     EventType = "RELAY_ON"
	EventRelayOff    EventType = "RELAY_OFF"
	EventOnDuration  EventType = "ON_DURATION"
	EventOffDuration EventType = "OFF_DURATION"
)

// Event is a relay transition or a duration change.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	State       State
	OnDuration  int
	OffDuration int
}

// Levels are the output levels the core wants on the physical lines.
type Levels struct {
	Relay    bool // relay output and its paired indicator
	OnFlash  bool
	OffFlash bool
}

// EventCounts tracks activity since startup.
type EventCounts struct {
	RelayOn  int
	RelayOff int
	Presses  int
	Bounced  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
