package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/relay-timer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"seconds": func(n int) string {
		return formatDuration(time.Duration(n) * time.Second)
	},
	"uptime": formatDuration,
	"lit": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Relay Timer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Relay Timer</h1>

<h2>Relay</h2>
<table>
{{if .Started}}<tr><th>State</th><td id="relay-state" class="{{lit .Relay.Outputs.Relay}}">{{.Relay.State}}</td></tr>
<tr><th>Elapsed</th><td>{{seconds .Relay.Elapsed}}</td></tr>
<tr><th>Next switch in</th><td>{{seconds .Relay.Remaining}}</td></tr>
{{else}}<tr><th>State</th><td id="relay-state" class="unknown">UNKNOWN</td></tr>{{end}}
<tr><th>ON duration</th><td>{{seconds .Relay.OnDuration}}</td></tr>
<tr><th>OFF duration</th><td>{{seconds .Relay.OffDuration}}</td></tr>
</table>

<h2>Indicators</h2>
<table>
<tr><th>ON flash</th><td class="{{lit .Relay.Outputs.OnFlash}}">{{lit .Relay.Outputs.OnFlash}}</td></tr>
<tr><th>OFF flash</th><td class="{{lit .Relay.Outputs.OffFlash}}">{{lit .Relay.Outputs.OffFlash}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Relay ON</th><td>{{.Relay.Counts.RelayOn}}</td></tr>
<tr><th>Relay OFF</th><td>{{.Relay.Counts.RelayOff}}</td></tr>
<tr><th>Presses</th><td>{{.Relay.Counts.Presses}}</td></tr>
<tr><th>Bounced</th><td>{{.Relay.Counts.Bounced}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot ID</th><td>{{.BootID}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms ({{.Config.TicksPerSecond}}/s)</td></tr>
<tr><th>ON range</th><td>{{.Config.On.Min}}s to {{.Config.On.Max}}s, step {{.Config.On.Interval}}s</td></tr>
<tr><th>OFF range</th><td>{{.Config.Off.Min}}s to {{.Config.Off.Max}}s, step {{.Config.Off.Interval}}s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
