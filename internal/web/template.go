package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/bathroom-fan/internal/mqtt"
	"github.com/sweeney/bathroom-fan/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if not .Config.WSBroker}}<meta http-equiv="refresh" content="10">
{{end}}<title>Bathroom Fan</title>
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
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Bathroom Fan{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

{{$fan := stateOrUnknown (printf "%s" .Fan)}}
<h2>State</h2>
<table>
<tr><th>Fan</th><td id="fan-state" class="{{if eq $fan "ON"}}on{{else if eq $fan "OFF"}}off{{else}}unknown{{end}}">{{$fan}}</td></tr>
<tr><th>Decided by</th><td id="decided-by">{{if .DecidedBy}}{{.DecidedBy}}{{else}}-{{end}}</td></tr>
<tr><th>Motion</th><td>{{yesno .Motion}}</td></tr>
<tr><th>Fumigation</th><td>{{yesno .Fumigation}}</td></tr>
<tr><th>Override</th><td>{{if .Override}}until {{clock .OverrideUntil}}{{else}}no{{end}}</td></tr>
<tr><th>Last motion</th><td>{{if .HasMotion}}{{clock .LastMotion}}{{else}}never{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Transitions</h2>
<table>
<tr><th>ON</th><td>{{.Counts.On}}</td></tr>
<tr><th>OFF</th><td>{{.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{clock .StartTime}}</td></tr>
<tr><th>Mode</th><td>{{.Config.Mode}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Motion stay-on</th><td>{{.Config.MotionStayOnS}}s</td></tr>
<tr><th>Override</th><td>{{.Config.OverrideS}}s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Pins</th><td>motion {{.Config.MotionPin}}, override {{.Config.OverridePin}}, relays {{range $i, $p := .Config.RelayPins}}{{if $i}}/{{end}}{{$p}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var eventsTopic = "{{.EventsTopic}}";
  var systemTopic = "{{.SystemTopic}}";
  var dot = document.getElementById("live-dot");
  var fanEl = document.getElementById("fan-state");
  var reasonEl = document.getElementById("decided-by");

  function setFan(state, reason) {
    fanEl.textContent = state;
    fanEl.className = state === "ON" ? "on" : state === "OFF" ? "off" : "unknown";
    if (reason) {
      reasonEl.textContent = reason;
    }
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe([eventsTopic, systemTopic]);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (t === eventsTopic && msg.fan) {
        setFan(msg.fan.state, msg.fan.reason);
      } else if (t === systemTopic && msg.status) {
        setFan(msg.status.fan, msg.status.decided_by);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		EventsTopic string
		SystemTopic string
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		EventsTopic: mqtt.Topic,
		SystemTopic: mqtt.TopicSystem,
	}
	indexTmpl.Execute(w, data)
}
