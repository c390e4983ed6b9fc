// Package compiler turns a tracking configuration into SDK bootstrap instructions.
//
// DESIGN: Compile is pure. It returns a Script value object describing what the
// page must do, in order:
//  1. Bootstrap: define the SDK queue global and load the bundle
//  2. Commands:  one Journey.* tracker command per enabled section
//  3. OpenAction: the qualifying-event subscription that hands off to chat
//
// Executors (sdk/) either replay the Script against a live SDK queue or evaluate
// its rendered text in a browser page. Nothing here executes anything.
//
// FILES:
//   - script.go:   Script, Bootstrap, Command, OpenAction
//   - compiler.go: Compile(), options, per-section payload builders
//   - render.go:   Script.Render() text template
package compiler

import (
	"encoding/json"
	"errors"
)

// SDK signals the bootstrap depends on.
const (
	SignalReady               = "Journey.ready"
	SignalQualifiedOpenAction = "Journey.qualifiedOpenAction"
)

// Tracker command names, in emission order.
const (
	CommandPageview         = "Journey.pageview"
	CommandFormsTrack       = "Journey.formsTrack"
	CommandTrackClickEvents = "Journey.trackClickEvents"
	CommandTrackIdleEvents  = "Journey.trackIdleEvents"
	CommandTrackInViewport  = "Journey.trackInViewport"
	CommandTrackScrollDepth = "Journey.trackScrollDepth"
)

// ErrNilConfig is returned by Compile when no configuration is given.
var ErrNilConfig = errors.New("compile: nil configuration")

// Bootstrap identifies the SDK bundle and deployment.
type Bootstrap struct {
	GlobalName   string `json:"globalName"`
	BundleURL    string `json:"bundleUrl"`
	Environment  string `json:"environment"`
	DeploymentID string `json:"deploymentId"`
}

// Command is one tracker command and its JSON payload.
type Command struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// OpenAction binds the qualifying-event signal to the configured action name.
type OpenAction struct {
	Signal     string `json:"signal"`
	ActionName string `json:"actionName"`
}

// Script is the compiled form of one configuration for one visitor.
type Script struct {
	ConfigName string     `json:"configName"`
	Bootstrap  Bootstrap  `json:"bootstrap"`
	Commands   []Command  `json:"commands"`
	OpenAction OpenAction `json:"openAction"`

	logPrefix string
}

// CommandNames lists the command names in emission order.
func (s *Script) CommandNames() []string {
	names := make([]string, len(s.Commands))
	for i, c := range s.Commands {
		names[i] = c.Name
	}
	return names
}

// Find returns the command issued under name.
func (s *Script) Find(name string) (Command, bool) {
	for _, c := range s.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}
