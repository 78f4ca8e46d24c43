// Package nav implements the navigation controller that owns the current slide index.
package nav

import (
	"fmt"
	"strings"
)

// Intent is a normalized navigation command, independent of the input that produced it.
type Intent int

const (
	// None means no navigation was requested.
	None Intent = iota
	// Next advances one slide.
	Next
	// Previous goes back one slide.
	Previous
	// First jumps to the first slide.
	First
	// Last jumps to the last slide.
	Last
)

var intentNames = map[Intent]string{
	None:     "none",
	Next:     "next",
	Previous: "previous",
	First:    "first",
	Last:     "last",
}

// String returns the lower-case name of the intent.
func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

// Valid reports whether the intent is one of the four navigation commands.
func (i Intent) Valid() bool {
	return i >= Next && i <= Last
}

// ParseIntent parses an intent name case-insensitively.
func ParseIntent(s string) (Intent, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for intent, n := range intentNames {
		if n == name {
			return intent, nil
		}
	}
	return None, fmt.Errorf("unknown intent %q", s)
}

// Source identifies where an intent came from. Each source is debounced independently.
type Source string

const (
	SourceGesture  Source = "gesture"
	SourceVoice    Source = "voice"
	SourceKeyboard Source = "keyboard"
	SourceManual   Source = "manual"
	// SourceDeck marks clamps caused by the slide collection shrinking.
	SourceDeck Source = "deck"
)

// ParseSource parses an input source name. SourceDeck is internal and cannot be parsed.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceGesture, SourceVoice, SourceKeyboard, SourceManual:
		return src, nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}
