// Package plugin runs external hook programs when the current slide changes.
package plugin

import "time"

// EventSlideChanged is sent after every accepted navigation.
const EventSlideChanged = "slide_changed"

// Manifest describes a plugin and the events it wants.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
}

// Handles reports whether the plugin subscribed to event.
func (m Manifest) Handles(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request is written to a plugin's stdin as JSON.
type Request struct {
	Event  string    `json:"event"`
	Intent string    `json:"intent"`
	Source string    `json:"source"`
	From   int       `json:"from"`
	Index  int       `json:"index"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Plugin is a discovered plugin on disk.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
