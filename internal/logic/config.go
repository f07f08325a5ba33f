package logic

import (
	"errors"
	"fmt"
)

// Kind holds the stepping rules for one duration setting, in seconds.
type Kind struct {
	Interval int
	Min      int
	Max      int
	// FlashStep is added to the kind's flash phase on every tick.
	FlashStep int
}

// Config holds the bounds and tick rate used by a Controller.
type Config struct {
	On             Kind
	Off            Kind
	TicksPerSecond int
}

// Reference constants.
const (
	DefaultTicksPerSecond = 10

	DefaultOnInterval = 10
	DefaultOnMin      = 10
	DefaultOnMax      = 30

	DefaultOffInterval = 3600
	DefaultOffMin      = 3600
	DefaultOffMax      = 10800
)

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		On: Kind{
			Interval:  DefaultOnInterval,
			Min:       DefaultOnMin,
			Max:       DefaultOnMax,
			FlashStep: DefaultOnInterval / 2,
		},
		Off: Kind{
			Interval:  DefaultOffInterval,
			Min:       DefaultOffMin,
			Max:       DefaultOffMax,
			FlashStep: DefaultOffInterval / 2,
		},
		TicksPerSecond: DefaultTicksPerSecond,
	}
}

var errTicksPerSecond = errors.New("ticks per second must be positive")

// Validate checks that both kinds describe a non-empty ring of durations.
func (c Config) Validate() error {
	if c.TicksPerSecond <= 0 {
		return errTicksPerSecond
	}
	if err := c.On.validate(); err != nil {
		return fmt.Errorf("on: %w", err)
	}
	if err := c.Off.validate(); err != nil {
		return fmt.Errorf("off: %w", err)
	}
	return nil
}

func (k Kind) validate() error {
	switch {
	case k.Interval <= 0:
		return fmt.Errorf("interval %d must be positive", k.Interval)
	case k.Min <= 0:
		return fmt.Errorf("min %d must be positive", k.Min)
	case k.Max < k.Min:
		return fmt.Errorf("max %d is below min %d", k.Max, k.Min)
	case k.FlashStep < 0:
		return fmt.Errorf("flash step %d must not be negative", k.FlashStep)
	}
	return nil
}

// Step returns the next duration after one press. Overflow past Max wraps to
// Min rather than saturating.
func (k Kind) Step(cur int) int {
	next := cur + k.Interval
	if next > k.Max {
		return k.Min
	}
	return next
}
