package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string       `json:"event,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	BootID           string       `json:"boot_id"`
	Relay            string       `json:"relay"`
	Ready            bool         `json:"ready"`
	ElapsedSeconds   int          `json:"elapsed_s"`
	RemainingSeconds int          `json:"remaining_s"`
	OnDuration       int          `json:"on_duration_s"`
	OffDuration      int          `json:"off_duration_s"`
	Outputs          OutputsJSON  `json:"outputs"`
	UptimeSeconds    int64        `json:"uptime_seconds"`
	StartTime        string       `json:"start_time"`
	Timestamp        string       `json:"timestamp"`
	MQTT             MQTTStatus   `json:"mqtt"`
	Counts           CountsJSON   `json:"event_counts"`
	Network          *NetworkJSON `json:"network,omitempty"`
	Config           *ConfigJSON  `json:"config,omitempty"`
}

// OutputsJSON reports the levels currently driven on the lines.
type OutputsJSON struct {
	Relay    bool `json:"relay"`
	OnFlash  bool `json:"on_flash"`
	OffFlash bool `json:"off_flash"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	RelayOn  int `json:"relay_on"`
	RelayOff int `json:"relay_off"`
	Presses  int `json:"presses"`
	Bounced  int `json:"bounced"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// KindJSON is the JSON representation of one duration's stepping rules.
type KindJSON struct {
	Interval int `json:"interval_s"`
	Min      int `json:"min_s"`
	Max      int `json:"max_s"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs         int64    `json:"tick_ms"`
	PollMs         int64    `json:"poll_ms"`
	TicksPerSecond int      `json:"ticks_per_second"`
	On             KindJSON `json:"on"`
	Off            KindJSON `json:"off"`
	HeartbeatMs    int64    `json:"heartbeat_ms"`
	Broker         string   `json:"broker"`
	Payload        string   `json:"payload"`
	HTTPAddr       string   `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	relay := string(snap.Relay.State)
	if !snap.Started || relay == "" {
		relay = "UNKNOWN"
	}

	inner := StatusInner{
		BootID:           snap.BootID,
		Relay:            relay,
		Ready:            snap.Started,
		ElapsedSeconds:   snap.Relay.Elapsed,
		RemainingSeconds: snap.Relay.Remaining(),
		OnDuration:       snap.Relay.OnDuration,
		OffDuration:      snap.Relay.OffDuration,
		Outputs: OutputsJSON{
			Relay:    snap.Relay.Outputs.Relay,
			OnFlash:  snap.Relay.Outputs.OnFlash,
			OffFlash: snap.Relay.Outputs.OffFlash,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			RelayOn:  snap.Relay.Counts.RelayOn,
			RelayOff: snap.Relay.Counts.RelayOff,
			Presses:  snap.Relay.Counts.Presses,
			Bounced:  snap.Relay.Counts.Bounced,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildConfig(cfg Config) *ConfigJSON {
	return &ConfigJSON{
		TickMs:         cfg.TickMs,
		PollMs:         cfg.PollMs,
		TicksPerSecond: cfg.TicksPerSecond,
		On:             KindJSON{Interval: cfg.On.Interval, Min: cfg.On.Min, Max: cfg.On.Max},
		Off:            KindJSON{Interval: cfg.Off.Interval, Min: cfg.Off.Min, Max: cfg.Off.Max},
		HeartbeatMs:    cfg.HeartbeatMs,
		Broker:         cfg.Broker,
		Payload:        cfg.Payload,
		HTTPAddr:       cfg.HTTPAddr,
	}
}

// Document returns the status document for the web endpoint (no event/reason).
func Document(snap Snapshot) StatusJSON {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap.Config)
	return StatusJSON{Status: inner}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Document(snap), "", "  ")
	return data
}

// EventDocument returns the status document for an MQTT system event.
// Config is only included in STARTUP so retained messages stay small.
func EventDocument(snap Snapshot, event, reason string) StatusJSON {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap.Config)
	}
	return StatusJSON{Status: inner}
}
