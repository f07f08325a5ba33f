package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-timer/internal/logic"
)

// TestDefaultMatchesReference ensures the defaults carry the reference durations.
func TestDefaultMatchesReference(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, Validate(cfg))
	require.Equal(t, 100*time.Millisecond, cfg.Tick)

	l := cfg.Logic()
	require.Equal(t, logic.DefaultConfig(), l)
}

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	cfg := Default()
	cfg.Tick = 0
	require.ErrorIs(t, Validate(cfg), errTickRequired)

	cfg = Default()
	cfg.Poll = -time.Second
	require.ErrorIs(t, Validate(cfg), errPollRequired)

	cfg = Default()
	cfg.On.Max = cfg.On.Min - 1
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Off.Interval = 0
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.TicksPerSecond = 0
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Pins.OnLED = cfg.Pins.Relay
	require.ErrorIs(t, Validate(cfg), errDuplicatePin)

	cfg = Default()
	cfg.MQTT.Payload = "xml"
	require.ErrorIs(t, Validate(cfg), errPayloadFormat)
}

// TestValidateFillsDerivedDefaults checks flash steps, chip and client id.
func TestValidateFillsDerivedDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.On = Kind{Interval: 4, Min: 4, Max: 12}
	cfg.Pins.Chip = ""
	cfg.MQTT.ClientID = ""
	cfg.MQTT.Payload = ""

	require.NoError(t, Validate(cfg))
	require.NotNil(t, cfg.On.FlashStep)
	require.Equal(t, 2, *cfg.On.FlashStep)
	require.Equal(t, "gpiochip0", cfg.Pins.Chip)
	require.Equal(t, "relay-timer", cfg.MQTT.ClientID)
	require.Equal(t, PayloadJSON, cfg.MQTT.Payload)
}

// TestLoadEmptyPath returns defaults.
func TestLoadEmptyPath(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Off.Max, cfg.Off.Max)
}

// TestLoadOverridesDefaults checks that a partial file keeps unspecified defaults.
func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "relay-timer.yaml")
	contents := `
tick: 50ms
ticks_per_second: 20
off:
  interval: 10
  min: 10
  max: 30
mqtt:
  broker: ""
  payload: cbor
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, cfg.Tick)
	require.Equal(t, 20, cfg.TicksPerSecond)
	require.Equal(t, 10, cfg.Off.Min)
	require.Equal(t, 5, cfg.Logic().Off.FlashStep)
	require.Equal(t, "", cfg.MQTT.Broker)
	require.Equal(t, PayloadCBOR, cfg.MQTT.Payload)
	require.Equal(t, logic.DefaultConfig().On, cfg.Logic().On)
	require.Equal(t, Default().Pins, cfg.Pins)
}

// TestLoadExplicitFlashStep keeps a zero flash step instead of deriving one.
func TestLoadExplicitFlashStep(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "relay-timer.yaml")
	contents := `
on:
  interval: 10
  min: 10
  max: 30
  flash_step: 0
off:
  interval: 3600
  min: 3600
  max: 10800
  flash_step: 100
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Logic().On.FlashStep)
	require.Equal(t, 100, cfg.Logic().Off.FlashStep)
}

// TestSaveRoundTripsFlashStep writes the derived step so a reload keeps it.
func TestSaveRoundTripsFlashStep(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "relay-timer.yaml")
	cfg := Default()
	zero := 0
	cfg.On.FlashStep = &zero
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, loaded.Logic().On.FlashStep)
	require.Equal(t, logic.DefaultOffInterval/2, loaded.Logic().Off.FlashStep)
}

// TestLoadMissingFile reports a read error.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// TestLoadInvalidYAML reports an unmarshal error.
func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick: [oops"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.On = Kind{Interval: 5, Min: 5, Max: 60}
	cfg.HTTP = ":9090"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.On, loaded.On)
	require.Equal(t, cfg.HTTP, loaded.HTTP)
	require.Equal(t, cfg.Tick, loaded.Tick)

	require.ErrorIs(t, Save(path, nil), errConfigIsNotSet)
}
