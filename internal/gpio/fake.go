package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/relay-timer/internal/logic"
)

// FakeOutputs is a test double that records every level change.
type FakeOutputs struct {
	mu sync.Mutex

	// History contains every Levels value passed to Set, in order.
	History []logic.Levels

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeOutputs creates a FakeOutputs.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{}
}

// Set records the levels.
func (f *FakeOutputs) Set(levels logic.Levels) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, levels)
	return nil
}

// Last returns the most recently set levels and whether any were set.
func (f *FakeOutputs) Last() (logic.Levels, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.History) == 0 {
		return logic.Levels{}, false
	}
	return f.History[len(f.History)-1], true
}

// Values returns the raw line values of the most recent Set, in request order.
func (f *FakeOutputs) Values() []int {
	l, _ := f.Last()
	return outputValues(l)
}

// Close marks the outputs as closed and records all-low levels.
func (f *FakeOutputs) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.History = append(f.History, logic.Levels{})
	f.Closed = true
	return nil
}

// FakeButtons is a test double that delivers scripted edge notifications.
type FakeButtons struct {
	mu     sync.Mutex
	notify func(logic.Pending)

	// Closed tracks if Close was called
	Closed bool

	// StartError, if set, will be returned by Start()
	StartError error
}

// NewFakeButtons creates a FakeButtons.
func NewFakeButtons() *FakeButtons {
	return &FakeButtons{}
}

// Start records the notify callback.
func (f *FakeButtons) Start(notify func(logic.Pending)) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.mu.Lock()
	f.notify = notify
	f.mu.Unlock()
	return nil
}

// Press simulates an edge on button b.
func (f *FakeButtons) Press(b logic.Button) error {
	f.mu.Lock()
	notify := f.notify
	f.mu.Unlock()

	if notify == nil {
		return errors.New("buttons not started")
	}
	notify(logic.PendingFor(b))
	return nil
}

// Close marks the buttons as closed.
func (f *FakeButtons) Close() error {
	f.mu.Lock()
	f.notify = nil
	f.Closed = true
	f.mu.Unlock()
	return nil
}
