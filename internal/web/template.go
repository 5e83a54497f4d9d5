package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/mixer-panel/internal/bitframe"
	"github.com/sweeney/mixer-panel/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Mixer Panel</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pgm { color: #c00; font-weight: bold; }
.pvw { color: #080; font-weight: bold; }
.none { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.fault { color: red; font-weight: bold; }
.bits span { display: inline-block; width: 10px; height: 10px; margin-right: 2px; border-radius: 50%; background: #ddd; }
.bits span.lit { background: orange; }
</style>
</head>
<body>
<h1>Mixer Panel</h1>

<h2>Buses</h2>
<table>
<tr><th>Program</th><td class="{{if .Program}}pgm{{else}}none{{end}}">{{or .Program "none"}}</td></tr>
<tr><th>Preview</th><td class="{{if .Preview}}pvw{{else}}none{{end}}">{{or .Preview "none"}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
{{if .Panel.Fault}}<tr><th>Fault</th><td class="fault">{{.Panel.Fault}}</td></tr>{{end}}
</table>

<h2>Link</h2>
<table>
<tr><th>LEDs</th><td class="bits">{{range .LEDBits}}<span{{if .}} class="lit"{{end}}></span>{{end}}</td></tr>
<tr><th>Buttons</th><td class="bits">{{range .ButtonBits}}<span{{if .}} class="lit"{{end}}></span>{{end}}</td></tr>
<tr><th>Cycles</th><td>{{.Panel.Cycles}}</td></tr>
<tr><th>Frames</th><td>{{.Panel.Frames}}</td></tr>
<tr><th>Events</th><td>{{.Panel.Events}}</td></tr>
<tr><th>Dropped</th><td>{{.Dropped}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.SerialDevice}}<tr><th>Serial</th><td>{{.Config.SerialDevice}}</td></tr>{{end}}
{{if .Config.MIDIPort}}<tr><th>MIDI</th><td>{{.Config.MIDIPort}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Clock</th><td>{{.Config.ClockPeriodUs}}us</td></tr>
<tr><th>Matrix</th><td>{{.Config.Buttons}} buttons, {{.Config.LEDs}} LEDs</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/leds.json">LEDs</a> · <a href="/buttons.json">buttons</a></p>
</body>
</html>
`

// bits lists a frame's bits MSB-first, matching the order it is shifted out.
func bits(f bitframe.Frame) []bool {
	out := make([]bool, f.Width())
	for i := range out {
		out[i] = f.Test(f.Width() - 1 - i)
	}
	return out
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Program    string
		Preview    string
		LEDBits    []bool
		ButtonBits []bool
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		LEDBits:    bits(snap.Panel.LEDs),
		ButtonBits: bits(snap.Panel.Buttons),
	}
	if snap.Panel.Program.Valid() {
		data.Program = snap.Panel.Program.String()
	}
	if snap.Panel.Preview.Valid() {
		data.Preview = snap.Panel.Preview.String()
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.WithError(err).Warn("render status page")
	}
}
