// Package command maps raw gesture and voice input onto navigation intents.
package command

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/karanbalaji/spatial-presenter/internal/gesture"
	"github.com/karanbalaji/spatial-presenter/internal/nav"
)

// GestureThreshold is the minimum confidence for a gesture to count.
const GestureThreshold = 0.7

// Rule maps any of its keywords to an intent.
type Rule struct {
	Keywords []string
	Intent   nav.Intent
}

// rules are tried in order; the first keyword hit wins.
var rules = []Rule{
	{Keywords: []string{"next", "forward"}, Intent: nav.Next},
	{Keywords: []string{"previous", "back", "backwards"}, Intent: nav.Previous},
	{Keywords: []string{"first", "start"}, Intent: nav.First},
	{Keywords: []string{"last", "end"}, Intent: nav.Last},
}

// Rules returns a copy of the ordered voice rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Keywords: append([]string(nil), r.Keywords...), Intent: r.Intent}
	}
	return out
}

// FromGesture converts a classified gesture into an intent.
func FromGesture(ev gesture.Event) nav.Intent {
	// Negated so NaN confidences are rejected too.
	if !(ev.Confidence >= GestureThreshold) {
		return nav.None
	}
	switch ev.Label {
	case gesture.LabelOpenPalm:
		return nav.Next
	case gesture.LabelVictory:
		return nav.Previous
	default:
		return nav.None
	}
}

// FromTranscript converts a spoken utterance into an intent by keyword
// containment. "go back to first slide" yields Previous since rule order wins.
func FromTranscript(text string) nav.Intent {
	if text == "" {
		return nav.None
	}

	fold := cases.Fold()
	folded := fold.String(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(folded, fold.String(kw)) {
				return r.Intent
			}
		}
	}
	return nav.None
}
