// Package gesture turns detected hands into labelled gesture events.
package gesture

import (
	"fmt"
	"math"
)

// Labels produced by the MediaPipe gesture recognizer that the presenter acts on.
const (
	LabelOpenPalm = "Open_Palm"
	LabelVictory  = "Victory"
)

// Event is one classification result. An empty Label means no hand was seen.
type Event struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Empty reports whether the event carries no label.
func (e Event) Empty() bool {
	return e.Label == ""
}

// Validate rejects confidences outside [0, 1].
func (e Event) Validate() error {
	if math.IsNaN(e.Confidence) || e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %v", e.Confidence)
	}
	return nil
}
