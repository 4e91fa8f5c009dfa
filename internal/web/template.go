package web

import (
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"secs": func(d time.Duration) string { return d.Round(time.Second).String() },
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Logger {{.Config.DeviceID}}</title>
<style>
body { font: 14px/1.4 sans-serif; max-width: 40em; margin: 1em auto; padding: 0 1em; }
h2 { font-size: 1.1em; margin-top: 1.5em; }
dl { display: grid; grid-template-columns: 12em 1fr; gap: 2px 1em; }
dt { color: #555; }
.up { color: #070; }
.down { color: #a00; }
</style>
</head>
<body>
<h1>Logger {{.Config.DeviceID}}</h1>

<h2>This boot</h2>
<dl>
<dt>Wake cause</dt><dd>{{.WakeCause}}</dd>
<dt>Slept</dt><dd>{{if lt .SleptMs 0}}unknown{{else}}{{ms .SleptMs}}{{end}}</dd>
<dt>Awake</dt><dd>{{secs .Uptime}}</dd>
<dt>Records written</dt><dd>{{.RecordsWritten}}</dd>
{{if .LastRecord}}<dt>Last record</dt><dd>{{.LastRecord.Time}} A={{.LastRecord.A}} B={{.LastRecord.B}}</dd>{{end}}
</dl>

<h2>Export</h2>
<dl>
<dt>Drive</dt><dd>{{if .DrivePresent}}present{{else}}none{{end}}</dd>
<dt>Exports</dt><dd>{{.Exports}} ({{.FilesExported}} files)</dd>
<dt>Queue drops</dt><dd>{{.QueueDropped}}</dd>
</dl>

<h2>Telemetry</h2>
<dl>
<dt>MQTT</dt><dd class="{{if .MQTTConnected}}up{{else}}down{{end}}">{{if .MQTTConnected}}connected{{else}}offline{{end}}</dd>
<dt>Broker</dt><dd>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</dd>
</dl>

<h2>Config</h2>
<dl>
<dt>Log root</dt><dd>{{.Config.LogRoot}}</dd>
<dt>Timer period</dt><dd>{{ms .Config.TimerPeriodMs}}</dd>
<dt>Wake pin</dt><dd>{{.Config.WakePin}}</dd>
<dt>Session dwell</dt><dd>{{ms .Config.ExtractDwellMs}}</dd>
</dl>

<p><a href="/logs/{{.Config.DeviceID}}/">Logs</a> | <a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
