package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/relay-timer/internal/config"
	"github.com/sweeney/relay-timer/internal/gpio"
	"github.com/sweeney/relay-timer/internal/logic"
	"github.com/sweeney/relay-timer/internal/mqtt"
	"github.com/sweeney/relay-timer/internal/status"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// rig wires the core to fake hardware and a fake broker the same way the
// daemon's run loop does, but drives everything synchronously.
type rig struct {
	t         *testing.T
	ctrl      *logic.Controller
	outputs   *gpio.FakeOutputs
	buttons   *gpio.FakeButtons
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	pending   logic.Pending
	ticks     int
}

func newRig(t *testing.T, cfg logic.Config) *rig {
	t.Helper()
	r := &rig{
		t:         t,
		ctrl:      logic.NewController(cfg, startTime),
		outputs:   gpio.NewFakeOutputs(),
		buttons:   gpio.NewFakeButtons(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(startTime, status.Config{}),
	}
	if err := r.buttons.Start(func(p logic.Pending) { r.pending |= p }); err != nil {
		t.Fatalf("start buttons: %v", err)
	}
	r.apply()
	return r
}

func (r *rig) now() time.Time {
	return startTime.Add(time.Duration(r.ticks) * 100 * time.Millisecond)
}

func (r *rig) apply() {
	if err := r.outputs.Set(r.ctrl.Outputs()); err != nil {
		r.t.Fatalf("set outputs: %v", err)
	}
	r.tracker.Update(r.ctrl.Snapshot())
}

// tick runs n tick periods, servicing buttons and polling after each one.
func (r *rig) tick(n int) {
	for i := 0; i < n; i++ {
		r.ctrl.Tick()
		r.ticks++
		r.service()
		if ev := r.ctrl.Poll(r.now()); ev != nil {
			_ = r.publisher.Publish(*ev)
		}
		r.apply()
	}
}

// service drains pending button notifications.
func (r *rig) service() {
	for r.pending != 0 {
		var ev *logic.Event
		r.pending, ev = r.ctrl.ButtonInterrupt(r.pending, r.now())
		if ev != nil {
			_ = r.publisher.Publish(*ev)
		}
	}
}

func (r *rig) press(b logic.Button) {
	if err := r.buttons.Press(b); err != nil {
		r.t.Fatalf("press %s: %v", b, err)
	}
	r.service()
	r.apply()
}

func referenceConfig(t *testing.T) logic.Config {
	t.Helper()
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("validate default config: %v", err)
	}
	return cfg.Logic()
}

// TestIntegrationReferenceCycle drives one full OFF/ON cycle with the
// reference configuration: 3600 s OFF, then 10 s ON.
func TestIntegrationReferenceCycle(t *testing.T) {
	r := newRig(t, referenceConfig(t))

	r.tick(36000 - 1)
	if len(r.publisher.Events) != 0 {
		t.Fatalf("expected no events before 3600 s, got %v", r.publisher.EventTypes())
	}
	if v := r.outputs.Values(); v[0] != 0 || v[1] != 0 {
		t.Fatalf("relay lines should be low, got %v", v)
	}

	r.tick(1)
	if got := r.publisher.EventTypes(); len(got) != 1 || got[0] != logic.EventRelayOn {
		t.Fatalf("expected RELAY_ON at 3600 s, got %v", got)
	}
	if v := r.outputs.Values(); v[0] != 1 || v[1] != 1 {
		t.Errorf("relay and relay LED should be high, got %v", v)
	}

	r.tick(100)
	if got := r.publisher.EventTypes(); len(got) != 2 || got[1] != logic.EventRelayOff {
		t.Fatalf("expected RELAY_OFF 10 s later, got %v", got)
	}
	if v := r.outputs.Values(); v[0] != 0 || v[1] != 0 {
		t.Errorf("relay lines should be low again, got %v", v)
	}

	snap := r.tracker.Snapshot()
	if snap.Relay.Counts.RelayOn != 1 || snap.Relay.Counts.RelayOff != 1 {
		t.Errorf("unexpected counts: %+v", snap.Relay.Counts)
	}
}

// TestIntegrationButtonsAdjustDurations presses both buttons through the fake
// line driver and checks published payloads.
func TestIntegrationButtonsAdjustDurations(t *testing.T) {
	r := newRig(t, referenceConfig(t))

	r.press(logic.ButtonA)
	r.tick(1)
	r.press(logic.ButtonB)

	if got := r.publisher.EventTypes(); len(got) != 2 ||
		got[0] != logic.EventOffDuration || got[1] != logic.EventOnDuration {
		t.Fatalf("expected OFF_DURATION then ON_DURATION, got %v", got)
	}

	var parsed mqtt.Payload
	if err := json.Unmarshal(r.publisher.Payloads[1], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Relay.OffDuration != 7200 || parsed.Relay.OnDuration != 20 {
		t.Errorf("expected off=7200 on=20, got %+v", parsed.Relay)
	}
	if parsed.Relay.State != "OFF" {
		t.Errorf("expected state OFF, got %q", parsed.Relay.State)
	}
}

// TestIntegrationBounceRejection delivers a burst of edges inside one tick.
func TestIntegrationBounceRejection(t *testing.T) {
	r := newRig(t, referenceConfig(t))

	for i := 0; i < 5; i++ {
		r.press(logic.ButtonB)
	}
	if len(r.publisher.Events) != 1 {
		t.Fatalf("expected 1 event from a bouncing press, got %d", len(r.publisher.Events))
	}
	if got := r.ctrl.Snapshot().OnDuration; got != 20 {
		t.Errorf("expected on duration 20, got %d", got)
	}
	if got := r.ctrl.Snapshot().Counts.Bounced; got != 4 {
		t.Errorf("expected 4 bounced edges, got %d", got)
	}
}

// TestIntegrationOnDurationWraps steps the ON duration past its maximum.
func TestIntegrationOnDurationWraps(t *testing.T) {
	r := newRig(t, referenceConfig(t))

	want := []int{20, 30, 10}
	for i, w := range want {
		r.press(logic.ButtonB)
		r.tick(1)
		if got := r.ctrl.Snapshot().OnDuration; got != w {
			t.Errorf("press %d: expected %d, got %d", i+1, w, got)
		}
	}
}

// TestIntegrationLengthenedOffPeriod lengthens OFF mid-cycle: the relay stays
// off until the new duration is reached.
func TestIntegrationLengthenedOffPeriod(t *testing.T) {
	r := newRig(t, referenceConfig(t))

	r.tick(10 * 60)
	r.press(logic.ButtonA) // 3600 -> 7200
	r.tick(36000 - 10*60)
	for _, typ := range r.publisher.EventTypes() {
		if typ == logic.EventRelayOn {
			t.Fatal("relay switched at the old OFF duration")
		}
	}

	r.tick(36000)
	got := r.publisher.EventTypes()
	if got[len(got)-1] != logic.EventRelayOn {
		t.Errorf("expected RELAY_ON at 7200 s, got %v", got)
	}
}

// TestIntegrationFlashOutputs checks the flash LED lines toggle during the
// first ticks of each second and are forced low at the boundary.
func TestIntegrationFlashOutputs(t *testing.T) {
	r := newRig(t, referenceConfig(t))
	start := len(r.outputs.History)

	r.tick(10)

	var onLine []int
	for _, l := range r.outputs.History[start:] {
		v := 0
		if l.OnFlash {
			v = 1
		}
		onLine = append(onLine, v)
	}
	// On duration 10, step 5: phases 5 and 10, so one toggle then hold,
	// and the boundary tick forces the LED off before toggling it again.
	want := []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	if len(onLine) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(onLine))
	}
	for i := range want {
		if onLine[i] != want[i] {
			t.Errorf("tick %d: on LED %d, want %d (all %v)", i+1, onLine[i], want[i], onLine)
			break
		}
	}
}

// TestIntegrationCBORPayloads publishes through a CBOR-encoding publisher.
func TestIntegrationCBORPayloads(t *testing.T) {
	r := newRig(t, referenceConfig(t))
	r.publisher.Encoding = mqtt.EncodingCBOR

	r.press(logic.ButtonA)

	var parsed mqtt.Payload
	if err := mqtt.Decode(r.publisher.Payloads[0], mqtt.EncodingCBOR, &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Relay.Event != "OFF_DURATION" || parsed.Relay.OffDuration != 7200 {
		t.Errorf("unexpected payload: %+v", parsed.Relay)
	}
}

// TestIntegrationPublishFailureDoesNotStopTiming verifies the core keeps
// switching when the broker rejects messages.
func TestIntegrationPublishFailureDoesNotStopTiming(t *testing.T) {
	r := newRig(t, referenceConfig(t))
	r.publisher.PublishError = errors.New("connection refused")

	r.tick(36000)

	if r.ctrl.Snapshot().State != logic.StateOn {
		t.Error("relay should be ON after 3600 s regardless of publish errors")
	}
	if v := r.outputs.Values(); v[0] != 1 {
		t.Errorf("relay line should be high, got %v", v)
	}
}

// TestIntegrationStatusDocument checks the status JSON reflects the core.
func TestIntegrationStatusDocument(t *testing.T) {
	r := newRig(t, referenceConfig(t))

	r.press(logic.ButtonB)
	r.tick(50) // 5 s

	var doc status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(r.tracker.Snapshot()), &doc); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	s := doc.Status
	if s.Relay != "OFF" || !s.Ready {
		t.Errorf("expected ready OFF, got relay=%q ready=%v", s.Relay, s.Ready)
	}
	if s.ElapsedSeconds != 5 || s.RemainingSeconds != 3595 {
		t.Errorf("expected elapsed 5 remaining 3595, got %d/%d", s.ElapsedSeconds, s.RemainingSeconds)
	}
	if s.OnDuration != 20 || s.OffDuration != 3600 {
		t.Errorf("expected on=20 off=3600, got on=%d off=%d", s.OnDuration, s.OffDuration)
	}
	if s.BootID == "" {
		t.Error("missing boot id")
	}
}

// TestIntegrationShutdownReleasesOutputs checks Close drives everything low.
func TestIntegrationShutdownReleasesOutputs(t *testing.T) {
	r := newRig(t, referenceConfig(t))
	r.tick(36000)

	if err := r.outputs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.buttons.Close(); err != nil {
		t.Fatalf("close buttons: %v", err)
	}
	for i, v := range r.outputs.Values() {
		if v != 0 {
			t.Errorf("line %d still high after close", i)
		}
	}
	if err := r.buttons.Press(logic.ButtonA); err == nil {
		t.Error("expected press after close to fail")
	}
}
