package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/smart-thermostat/internal/logic"
	"github.com/sweeney/smart-thermostat/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
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
	},
	"temp": func(t logic.Temperature) string {
		if !t.Known {
			return "unknown"
		}
		return fmt.Sprintf("%.1f", t.Value)
	},
	"history": func(h []float64) string {
		if len(h) == 0 {
			return "empty"
		}
		parts := make([]string, len(h))
		for i, v := range h {
			parts[i] = fmt.Sprintf("%.1f", v)
		}
		return strings.Join(parts, " ")
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Smart Thermostat</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.heating { color: green; font-weight: bold; }
.off { color: #888; }
.error { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Smart Thermostat</h1>

<h2>Climate</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Attributes.Mode}}</td></tr>
<tr><th>Action</th><td id="action" class="{{if eq (printf "%s" .Attributes.Action) "heating"}}heating{{else}}off{{end}}">{{.Attributes.Action}}</td></tr>
<tr><th>Indoor</th><td id="indoor">{{temp .Attributes.Indoor}}</td></tr>
<tr><th>Outdoor</th><td id="outdoor">{{temp .Attributes.Outdoor}}</td></tr>
<tr><th>Target</th><td id="target">{{printf "%.1f" .Attributes.Target}}</td></tr>
</table>

<h2>Source</h2>
<table>
<tr><th>Active</th><td id="source">{{.Attributes.ActiveSource}}</td></tr>
<tr><th>Reason</th><td>{{orNone (printf "%s" .Attributes.SourceReason)}}</td></tr>
<tr><th>Control</th><td>{{.Attributes.ControlMode}}</td></tr>
<tr><th>Pellet level</th><td id="level">{{.Attributes.PelletLevel}}</td></tr>
{{if eq (printf "%s" .Attributes.ControlMode) "pid"}}<tr><th>PID output</th><td>{{printf "%.2f" .Attributes.PIDOutput}}</td></tr>{{end}}
<tr><th>Trend</th><td>{{history .History}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="error">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Prefix</th><td>{{.Config.Prefix}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Source changes</th><td>{{.Counts.SourceChanges}}</td></tr>
<tr><th>Level changes</th><td>{{.Counts.LevelChanges}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heat pump</th><td>{{.Config.HeatPump}}</td></tr>
<tr><th>Pellet power</th><td>{{.Config.PelletPowerSwitch}}</td></tr>
<tr><th>Min outside</th><td>{{printf "%.1f" .Config.MinOutsideTemp}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
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
