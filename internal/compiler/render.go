package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

// Render produces the executable bootstrap text. String values are emitted as
// JSON string literals and payloads as JSON objects, both valid JavaScript.
// '<', '>' and '&' are escaped in both, so the text can be served inside a
// <script> element.
func (s *Script) Render() (string, error) {
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, s.templateData()); err != nil {
		return "", fmt.Errorf("render %s: %w", s.ConfigName, err)
	}
	return buf.String(), nil
}

type renderCommand struct {
	Name    string
	Payload string
}

type templateData struct {
	Prefix     string
	Global     string
	BundleURL  string
	Env        string
	Deployment string
	Commands   []renderCommand
	Signal     string
	ReadySig   string
	ActionName string
}

func (s *Script) templateData() templateData {
	prefix := s.logPrefix
	if prefix == "" {
		prefix = DefaultLogPrefix
	}
	cmds := make([]renderCommand, len(s.Commands))
	for i, c := range s.Commands {
		var payload bytes.Buffer
		json.HTMLEscape(&payload, c.Payload)
		cmds[i] = renderCommand{Name: c.Name, Payload: payload.String()}
	}
	return templateData{
		Prefix:     prefix,
		Global:     s.Bootstrap.GlobalName,
		BundleURL:  s.Bootstrap.BundleURL,
		Env:        s.Bootstrap.Environment,
		Deployment: s.Bootstrap.DeploymentID,
		Commands:   cmds,
		Signal:     s.OpenAction.Signal,
		ReadySig:   SignalReady,
		ActionName: s.OpenAction.ActionName,
	}
}

// quote renders v as a JSON string literal with HTML-sensitive characters
// escaped.
func quote(v string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func logLine(prefix, msg string) string {
	return quote(prefix + " - " + msg)
}

var scriptTemplate = template.Must(template.New("bootstrap").Funcs(template.FuncMap{
	"quote": quote,
	"log":   logLine,
}).Parse(`(function (g, e, n, es, ys) {
    console.log({{log .Prefix "Execution started."}});
    g['_genesysJs'] = e;
    g[e] = g[e] || function () {
        (g[e].q = g[e].q || []).push(arguments);
    };
    g[e].t = 1 * new Date();
    g[e].c = es;
    ys = document.createElement('script');
    ys.async = 1;
    ys.src = n;
    ys.charset = 'utf-8';
    ys.onload = function () {
        console.log({{log .Prefix "Script loaded successfully."}});
        g[e]("subscribe", {{quote .ReadySig}}, function () {
            console.log({{log .Prefix "Journey plugin is ready."}});
            setupJourneyTracking();
            setupJourneySubscriptions();
        });
    };
    ys.onerror = function () {
        console.error({{log .Prefix "Error loading script."}});
    };
    document.head.appendChild(ys);
})(window, {{quote .Global}}, {{quote .BundleURL}}, {
    environment: {{quote .Env}},
    deploymentId: {{quote .Deployment}}
});

function setupJourneyTracking() {
{{- range .Commands}}
    window[{{quote $.Global}}]("command", {{quote .Name}}, {{.Payload}});
{{- end}}
}

function setupJourneySubscriptions() {
    window[{{quote .Global}}]("subscribe", {{quote .Signal}}, function (event) {
        var props = event && event.data && event.data.openActionProperties;
        if (!props || props.openActionName !== {{quote .ActionName}}) {
            return;
        }
        var esb = window.embeddedservice_bootstrap;
        if (!esb || !esb.utilAPI) {
            console.error({{log .Prefix "Chat widget is not initialized."}});
            return;
        }
        esb.utilAPI.showChatButton();
        Promise.resolve()
            .then(function () { return esb.utilAPI.launchChat(); })
            .then(function () {
                console.log({{log .Prefix "Chat launched."}});
            })
            .catch(function (err) {
                console.error({{log .Prefix "Failed to launch chat:"}}, err);
            });
    });
}
`))
