package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ir-sensor/internal/status"
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
	"ago": func(d time.Duration) string {
		if d < time.Second {
			return fmt.Sprintf("%dms", d.Milliseconds())
		}
		return d.Truncate(100 * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>IR Sensors</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.channels th { width: auto; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>IR Sensors</h1>

<h2>Channels</h2>
<table class="channels">
<tr><th>#</th><th>Name</th><th>Pin</th><th>Debounce</th><th>Count</th><th>Total</th><th>Bounced</th><th>Last edge</th></tr>
{{range .Channels}}<tr>
<td>{{.Index}}</td><td>{{.Name}}</td><td>{{.Pin}}</td><td>{{.DebounceMs}}ms</td>
<td>{{.Count}}</td><td>{{.Total}}</td><td>{{.Rejected}}</td>
<td>{{if .Seen}}{{ago .LastEdgeAgo}} ago{{else}}<span class="idle">never</span>{{end}}</td>
</tr>{{end}}
</table>
<p>Ready: {{if .Ready}}yes{{else}}no{{end}}</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>GPIO chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>`

func renderHTML(w io.Writer, snap status.Snapshot) {
	indexTmpl.Execute(w, snap)
}
