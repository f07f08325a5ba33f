package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-timer/internal/gpio"
	"github.com/sweeney/relay-timer/internal/logic"
)

// Config holds every setting of the relay timer daemon.
type Config struct {
	// Tick is the period of the tick driver.
	Tick time.Duration `yaml:"tick"`
	// Poll is the period at which the relay state machine is evaluated.
	Poll time.Duration `yaml:"poll"`
	// TicksPerSecond is how many ticks make one whole second.
	TicksPerSecond int `yaml:"ticks_per_second"`
	// On and Off are the stepping rules of the two durations, in seconds.
	On  Kind `yaml:"on"`
	Off Kind `yaml:"off"`
	// Debounce enables kernel-side line debouncing on the buttons; 0 disables.
	Debounce time.Duration `yaml:"debounce"`
	Pins     Pins          `yaml:"pins"`
	MQTT     MQTT          `yaml:"mqtt"`
	// HTTP is the status server address; empty disables it.
	HTTP string `yaml:"http"`
	Log  Log    `yaml:"log"`
}

// Kind mirrors logic.Kind. A missing flash_step defaults to half the
// interval; an explicit value, zero included, is kept as written.
type Kind struct {
	Interval  int  `yaml:"interval"`
	Min       int  `yaml:"min"`
	Max       int  `yaml:"max"`
	FlashStep *int `yaml:"flash_step,omitempty"`
}

func (k Kind) toLogic() logic.Kind {
	out := logic.Kind{Interval: k.Interval, Min: k.Min, Max: k.Max}
	if k.FlashStep != nil {
		out.FlashStep = *k.FlashStep
	}
	return out
}

func (k *Kind) fillFlashStep() {
	if k.FlashStep == nil {
		step := k.Interval / 2
		k.FlashStep = &step
	}
}

// Pins holds BCM line offsets.
type Pins struct {
	Chip     string `yaml:"chip"`
	Relay    int    `yaml:"relay"`
	RelayLED int    `yaml:"relay_led"`
	OnLED    int    `yaml:"on_led"`
	OffLED   int    `yaml:"off_led"`
	ButtonA  int    `yaml:"button_a"`
	ButtonB  int    `yaml:"button_b"`
}

// MQTT holds broker settings. An empty broker disables publishing.
type MQTT struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Payload   string        `yaml:"payload"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Buffer    int           `yaml:"buffer"`
}

// Log holds logging settings.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "relay-timer.yaml"

	// DefaultTick is the reference tick period.
	DefaultTick = 100 * time.Millisecond

	// DefaultPoll replaces the busy-poll loop with a short periodic poll.
	DefaultPoll = 10 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	PayloadJSON = "json"
	PayloadCBOR = "cbor"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errTickRequired is returned when the tick period is not positive.
	errTickRequired = errors.New("tick period must be positive")
	// errPollRequired is returned when the poll period is not positive.
	errPollRequired = errors.New("poll period must be positive")
	// errDuplicatePin is returned when two lines share an offset.
	errDuplicatePin = errors.New("pins must be distinct")
	// errPayloadFormat is returned for an unknown MQTT payload encoding.
	errPayloadFormat = errors.New("mqtt payload must be json or cbor")
)

// Default returns the reference configuration.
func Default() *Config {
	l := logic.DefaultConfig()
	p := gpio.DefaultPins()
	return &Config{
		Tick:           DefaultTick,
		Poll:           DefaultPoll,
		TicksPerSecond: l.TicksPerSecond,
		On:             Kind{Interval: l.On.Interval, Min: l.On.Min, Max: l.On.Max},
		Off:            Kind{Interval: l.Off.Interval, Min: l.Off.Min, Max: l.Off.Max},
		Pins: Pins{
			Chip:     p.Chip,
			Relay:    p.Relay,
			RelayLED: p.RelayLED,
			OnLED:    p.OnLED,
			OffLED:   p.OffLED,
			ButtonA:  p.ButtonA,
			ButtonB:  p.ButtonB,
		},
		MQTT: MQTT{
			Broker:    "tcp://127.0.0.1:1883",
			ClientID:  "relay-timer",
			Payload:   PayloadJSON,
			Heartbeat: 15 * time.Minute,
			Buffer:    100,
		},
		HTTP: ":8080",
		Log:  Log{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load reads configuration from the provided path on top of the defaults and
// validates it. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, Validate(cfg)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// Validate checks the provided settings and fills derived defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Tick <= 0 {
		return errTickRequired
	}

	if cfg.Poll <= 0 {
		return errPollRequired
	}

	cfg.On.fillFlashStep()
	cfg.Off.fillFlashStep()

	if err := cfg.Logic().Validate(); err != nil {
		return fmt.Errorf("invalid durations: %w", err)
	}

	p := cfg.Pins
	seen := make(map[int]bool)
	for _, pin := range []int{p.Relay, p.RelayLED, p.OnLED, p.OffLED, p.ButtonA, p.ButtonB} {
		if seen[pin] {
			return fmt.Errorf("%w: %d used twice", errDuplicatePin, pin)
		}
		seen[pin] = true
	}

	if cfg.Pins.Chip == "" {
		cfg.Pins.Chip = gpio.DefaultChip
	}

	switch cfg.MQTT.Payload {
	case "":
		cfg.MQTT.Payload = PayloadJSON
	case PayloadJSON, PayloadCBOR:
	default:
		return fmt.Errorf("%w: %q", errPayloadFormat, cfg.MQTT.Payload)
	}

	if cfg.MQTT.Broker != "" {
		if _, err := url.Parse(cfg.MQTT.Broker); err != nil {
			return fmt.Errorf("invalid broker: %w", err)
		}
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "relay-timer"
	}

	return nil
}

// Logic converts the duration settings for the controller.
func (c *Config) Logic() logic.Config {
	return logic.Config{
		On:             c.On.toLogic(),
		Off:            c.Off.toLogic(),
		TicksPerSecond: c.TicksPerSecond,
	}
}

// GPIO converts the pin settings for the gpio package.
func (c *Config) GPIO() gpio.Pins {
	return gpio.Pins(c.Pins)
}
