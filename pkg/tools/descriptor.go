// Package tools registers externally declared tools as proxies that execute
// on a remote backend.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDescriptor indicates a descriptor whose name does not yield both
// an app and an action.
var ErrInvalidDescriptor = errors.New("invalid tool descriptor")

const defaultAction = "execute"

// Descriptor is a tool declaration received from an external catalog.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Provider    string          `json:"provider,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ParseName derives the (app, action) pair from a tool name:
//
//	GMAIL_SEND_EMAIL  -> gmail, send_email
//	slack.postMessage -> slack, postMessage
//	Search            -> search, execute
//
// Underscore names are lowercased before splitting; dotted names keep their case.
func ParseName(name string) (app, action string, err error) {
	switch {
	case strings.Contains(name, "_"):
		app, action, _ = strings.Cut(strings.ToLower(name), "_")
	case strings.Contains(name, "."):
		app, action, _ = strings.Cut(name, ".")
	default:
		app, action = strings.ToLower(name), defaultAction
	}
	if app == "" || action == "" {
		return "", "", fmt.Errorf("%w: name %q", ErrInvalidDescriptor, name)
	}
	return app, action, nil
}

// Key is the registry key of a tool.
func Key(app, action string) string {
	return app + "." + action
}

// appOf returns the text of key before the first '.'.
func appOf(key string) string {
	app, _, _ := strings.Cut(key, ".")
	return app
}
