//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/sweeney/relay-timer/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealOutputs drives the relay and LEDs on actual hardware using Linux GPIO
// character device.
type RealOutputs struct {
	lines *gpiocdev.Lines
}

// NewRealOutputs requests the relay, relay LED, on LED and off LED lines as
// outputs, initially low.
func NewRealOutputs(pins Pins) (*RealOutputs, error) {
	offsets := []int{pins.Relay, pins.RelayLED, pins.OnLED, pins.OffLED}
	lines, err := gpiocdev.RequestLines(pins.Chip, offsets,
		gpiocdev.AsOutput(0, 0, 0, 0),
		gpiocdev.WithConsumer("relay-timer"))
	if err != nil {
		return nil, fmt.Errorf("request output pins %v: %w", offsets, err)
	}
	return &RealOutputs{lines: lines}, nil
}

// Set drives every output line to the given levels.
func (o *RealOutputs) Set(levels logic.Levels) error {
	if err := o.lines.SetValues(outputValues(levels)); err != nil {
		return fmt.Errorf("set outputs: %w", err)
	}
	return nil
}

// Close drives the outputs low and reconfigures them as inputs with pull-down
// (matching Pi boot defaults) before releasing them, so the relay is never
// left energised after shutdown.
func (o *RealOutputs) Close() error {
	var errs []error

	if err := o.lines.SetValues([]int{0, 0, 0, 0}); err != nil {
		errs = append(errs, fmt.Errorf("drive outputs low: %w", err))
	}
	if err := o.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure outputs: %w", err))
	}
	if err := o.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close outputs: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealButtons watches the two button lines for falling edges.
// Buttons are wired to ground with the internal pull-up enabled.
type RealButtons struct {
	pins     Pins
	debounce time.Duration
	lines    *gpiocdev.Lines
}

// NewRealButtons prepares a button watcher. debounce enables kernel-side line
// debouncing when positive; the controller latch applies either way.
func NewRealButtons(pins Pins, debounce time.Duration) *RealButtons {
	return &RealButtons{pins: pins, debounce: debounce}
}

// Start requests the button lines with edge detection.
func (b *RealButtons) Start(notify func(logic.Pending)) error {
	handler := func(evt gpiocdev.LineEvent) {
		switch evt.Offset {
		case b.pins.ButtonA:
			notify(logic.PendingA)
		case b.pins.ButtonB:
			notify(logic.PendingB)
		}
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler),
		gpiocdev.WithConsumer("relay-timer"),
	}
	if b.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(b.debounce))
	}

	offsets := []int{b.pins.ButtonA, b.pins.ButtonB}
	lines, err := gpiocdev.RequestLines(b.pins.Chip, offsets, opts...)
	if err != nil {
		return fmt.Errorf("request button pins %v: %w", offsets, err)
	}
	b.lines = lines
	return nil
}

// Close releases the button lines.
func (b *RealButtons) Close() error {
	if b.lines == nil {
		return nil
	}
	if err := b.lines.Close(); err != nil {
		return fmt.Errorf("close buttons: %w", err)
	}
	return nil
}
