// Package gpio drives the relay and indicator lines and watches the buttons,
// with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/relay-timer/internal/logic"

// Outputs drives the relay and indicator lines.
type Outputs interface {
	// Set drives every output line to the given levels.
	// The relay indicator LED always mirrors the relay.
	Set(levels logic.Levels) error

	// Close drives all outputs low and releases GPIO resources.
	Close() error
}

// Buttons delivers button edge notifications.
type Buttons interface {
	// Start begins watching both button lines. notify is called from a
	// background goroutine with the pending bit of the button that saw an edge.
	Start(notify func(logic.Pending)) error

	// Close stops watching and releases GPIO resources.
	Close() error
}

// Pins maps logical lines to BCM offsets on a GPIO chip.
type Pins struct {
	Chip     string
	Relay    int
	RelayLED int
	OnLED    int
	OffLED   int
	ButtonA  int
	ButtonB  int
}

// Default pin definitions (BCM numbering)
const (
	DefaultChip     = "gpiochip0"
	DefaultRelay    = 17
	DefaultRelayLED = 27
	DefaultOnLED    = 22
	DefaultOffLED   = 23
	DefaultButtonA  = 5
	DefaultButtonB  = 6
)

// DefaultPins returns the default wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:     DefaultChip,
		Relay:    DefaultRelay,
		RelayLED: DefaultRelayLED,
		OnLED:    DefaultOnLED,
		OffLED:   DefaultOffLED,
		ButtonA:  DefaultButtonA,
		ButtonB:  DefaultButtonB,
	}
}

// outputValues orders levels as relay, relay LED, on LED, off LED.
func outputValues(l logic.Levels) []int {
	return []int{boolToInt(l.Relay), boolToInt(l.Relay), boolToInt(l.OnFlash), boolToInt(l.OffFlash)}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
