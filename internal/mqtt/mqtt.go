// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sweeney/relay-timer/internal/logic"
)

// Topic is the MQTT topic for relay events.
const Topic = "relay/timer/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "relay/timer/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a relay event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Encoding selects the wire format of payloads.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason    string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Status    any    // Full status document; if set, FormatSystemPayload encodes it instead
	Retained  bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
// CBOR encoding reuses the json tags.
type Payload struct {
	Relay RelayPayload `json:"relay"`
}

// RelayPayload contains the relay event details.
type RelayPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	State       string `json:"state"`
	OnDuration  int    `json:"on_duration_s"`
	OffDuration int    `json:"off_duration_s"`
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// Encode marshals v in the given encoding.
func Encode(v any, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingJSON, "":
		return json.Marshal(v)
	case EncodingCBOR:
		return cbor.Marshal(v)
	}
	return nil, fmt.Errorf("unknown encoding %q", enc)
}

// Decode unmarshals data in the given encoding into v.
func Decode(data []byte, enc Encoding, v any) error {
	switch enc {
	case EncodingJSON, "":
		return json.Unmarshal(data, v)
	case EncodingCBOR:
		return cbor.Unmarshal(data, v)
	}
	return fmt.Errorf("unknown encoding %q", enc)
}

// FormatPayload creates the payload for a relay event.
func FormatPayload(event logic.Event, enc Encoding) ([]byte, error) {
	payload := Payload{
		Relay: RelayPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(event.Type),
			State:       string(event.State),
			OnDuration:  event.OnDuration,
			OffDuration: event.OffDuration,
		},
	}
	return Encode(payload, enc)
}

// FormatSystemPayload creates the payload for a system event.
// If event.Status is set, it is encoded instead (used for full status snapshots).
func FormatSystemPayload(event SystemEvent, enc Encoding) ([]byte, error) {
	if event.Status != nil {
		return Encode(event.Status, enc)
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return Encode(payload, enc)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(logic.Event) error { return nil }

// PublishSystem discards the event.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }
