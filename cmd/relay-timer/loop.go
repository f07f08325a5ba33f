package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/relay-timer/internal/gpio"
	"github.com/sweeney/relay-timer/internal/logger"
	"github.com/sweeney/relay-timer/internal/logic"
	"github.com/sweeney/relay-timer/internal/mqtt"
	"github.com/sweeney/relay-timer/internal/status"
)

// flushTimeout bounds how long shutdown waits for queued events.
const flushTimeout = 5 * time.Second

// loop dispatches timer ticks, button edges and state machine polls to the
// controller. Running every handler on this one goroutine gives each of them
// run-to-completion semantics: no handler is ever preempted by a peer.
// Events leave through an mqtt.Async queue so the broker never delays a tick.
type loop struct {
	ctrl      *logic.Controller
	outputs   gpio.Outputs
	publisher mqtt.Publisher
	mqtt      mqtt.ConnectionStatus // may be nil
	tracker   *status.Tracker       // may be nil
	heartbeat time.Duration
	queue     int // publish queue size, 0 for the default
	now       func() time.Time

	out     *mqtt.Async
	applied bool
	last    logic.Levels
}

func (l *loop) run(ctx context.Context, tick, poll <-chan time.Time, edges <-chan logic.Pending, sig <-chan os.Signal) error {
	l.out = mqtt.NewAsync(ctx, l.publisher, l.queue)
	defer func() {
		if !l.out.Flush(flushTimeout) {
			logger.Warnf(ctx, "gave up waiting for queued events after %v", flushTimeout)
		}
	}()

	l.apply(ctx)
	l.publishSystem(ctx, "STARTUP", "")

	for {
		select {
		case s := <-sig:
			logger.Infof(ctx, "received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.publishSystem(ctx, "SHUTDOWN", signalName)
			return nil

		case <-ctx.Done():
			l.publishSystem(ctx, "SHUTDOWN", "CONTEXT")
			return nil

		case <-tick:
			l.ctrl.Tick()
			l.apply(ctx)
			l.track()

		case p := <-edges:
			// Keep servicing until every pending bit is acknowledged, the way
			// an edge interrupt re-enters while its flags stay raised.
			for p != 0 {
				var ev *logic.Event
				p, ev = l.ctrl.ButtonInterrupt(p, l.now())
				if ev != nil {
					logger.InfoKV(ctx, "duration changed", "event", ev.Type,
						"on_s", ev.OnDuration, "off_s", ev.OffDuration)
					l.publish(ctx, *ev)
				} else {
					logger.DebugKV(ctx, "button bounce ignored")
				}
			}
			l.track()

		case <-poll:
			t := l.now()
			if ev := l.ctrl.Poll(t); ev != nil {
				l.apply(ctx)
				logger.InfoKV(ctx, "relay switched", "state", ev.State,
					"on_s", ev.OnDuration, "off_s", ev.OffDuration)
				l.publish(ctx, *ev)
				l.track()
			}

			if hb := l.ctrl.CheckHeartbeat(t, l.heartbeat); hb != nil {
				logger.InfoKV(ctx, "heartbeat", "uptime", hb.Uptime,
					"relay_on", hb.Counts.RelayOn, "relay_off", hb.Counts.RelayOff,
					"presses", hb.Counts.Presses)
				l.track()
				l.publishSystem(ctx, "HEARTBEAT", "")
			}
		}
	}
}

// apply writes the controller's levels to the lines when they changed.
func (l *loop) apply(ctx context.Context) {
	levels := l.ctrl.Outputs()
	if l.applied && levels == l.last {
		return
	}
	if err := l.outputs.Set(levels); err != nil {
		// Retry on the next event.
		logger.Errorf(ctx, "gpio write error: %v", err)
		l.applied = false
		return
	}
	l.applied = true
	l.last = levels
}

// track refreshes the status tracker for HTTP consumers.
func (l *loop) track() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.ctrl.Snapshot())
	if l.mqtt != nil {
		l.tracker.SetMQTTConnected(l.mqtt.IsConnected())
	}
}

func (l *loop) publish(ctx context.Context, ev logic.Event) {
	if err := l.out.Publish(ev); err != nil {
		logger.Warnf(ctx, "drop %s event: %v", ev.Type, err)
	}
}

func (l *loop) publishSystem(ctx context.Context, event, reason string) {
	se := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if l.tracker != nil {
		l.track()
		if event == "HEARTBEAT" {
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
		}
		se.Status = status.EventDocument(l.tracker.Snapshot(), event, reason)
	}
	if err := l.out.PublishSystem(se); err != nil {
		logger.Warnf(ctx, "drop %s event: %v", event, err)
		return
	}
	logger.Debugf(ctx, "queued %s event", event)
}
