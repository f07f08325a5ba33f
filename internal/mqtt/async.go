package mqtt

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/relay-timer/internal/logger"
	"github.com/sweeney/relay-timer/internal/logic"
)

// DefaultQueueSize bounds the events waiting for the publishing goroutine.
const DefaultQueueSize = 64

var (
	errQueueFull   = errors.New("publish queue full")
	errQueueClosed = errors.New("publish queue closed")
)

// job is one queued publish; exactly one of event and system is set.
type job struct {
	event  *logic.Event
	system *SystemEvent
}

// Async hands events to a single background goroutine that forwards them to
// the wrapped Publisher in submission order. Publish and PublishSystem never
// wait on the broker, so a slow or unreachable broker cannot hold up the
// caller.
type Async struct {
	next Publisher
	log  *zap.SugaredLogger

	mu     sync.Mutex
	queue  chan job
	closed bool

	done chan struct{}
}

// NewAsync starts the publishing goroutine. size <= 0 uses DefaultQueueSize.
func NewAsync(ctx context.Context, next Publisher, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:  next,
		log:   logger.FromContext(ctx).Named("publish"),
		queue: make(chan job, size),
		done:  make(chan struct{}),
	}
	go a.forward()
	return a
}

func (a *Async) forward() {
	defer close(a.done)

	for j := range a.queue {
		if j.event != nil {
			if err := a.next.Publish(*j.event); err != nil {
				a.log.Warnf("publish %s: %v", j.event.Type, err)
			}
			continue
		}
		if err := a.next.PublishSystem(*j.system); err != nil {
			a.log.Warnf("publish %s event: %v", j.system.Event, err)
		}
	}
}

// Publish queues a relay event.
func (a *Async) Publish(event logic.Event) error {
	return a.put(job{event: &event})
}

// PublishSystem queues a system event.
func (a *Async) PublishSystem(event SystemEvent) error {
	return a.put(job{system: &event})
}

func (a *Async) put(j job) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errQueueClosed
	}
	select {
	case a.queue <- j:
		return nil
	default:
		return errQueueFull
	}
}

// IsConnected forwards to the wrapped publisher when it reports connectivity.
func (a *Async) IsConnected() bool {
	if cs, ok := a.next.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return false
}

// Flush stops accepting events and waits up to timeout for the queued ones
// to be forwarded. It reports whether the queue drained in time. The wrapped
// publisher is left open.
func (a *Async) Flush(timeout time.Duration) bool {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-a.done:
		return true
	case <-t.C:
		return false
	}
}
