//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/relay-timer/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealOutputs is not available on non-Linux platforms.
type RealOutputs struct{}

// NewRealOutputs returns an error on non-Linux platforms.
func NewRealOutputs(Pins) (*RealOutputs, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutputs) Set(logic.Levels) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutputs) Close() error {
	return nil
}

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns a watcher whose Start always fails.
func NewRealButtons(Pins, time.Duration) *RealButtons {
	return &RealButtons{}
}

// Start is not implemented on non-Linux platforms.
func (b *RealButtons) Start(func(logic.Pending)) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealButtons) Close() error {
	return nil
}
