package gesture

import (
	"math"
	"sort"
	"sync"

	"github.com/karanbalaji/spatial-presenter/internal/detector"
)

// DefaultTolerance is the maximum mean per-landmark distance for a template match.
const DefaultTolerance = 0.25

// Template is a reference pose in normalized landmark space.
type Template struct {
	Label     string
	Landmarks []detector.Point3D
	Tolerance float64
}

// Match is a template that the input fell within tolerance of.
type Match struct {
	Template *Template
	Score    float64 // 1 / (1 + Distance)
	Distance float64 // mean per-landmark distance
}

// Classifier labels the first detected hand. Recognizer categories take
// precedence; otherwise landmarks are matched against static templates.
type Classifier struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewClassifier returns a classifier loaded with the Open_Palm and Victory poses.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.AddTemplate(TemplateFromHand(LabelOpenPalm, detector.OpenPalm(), DefaultTolerance))
	c.AddTemplate(TemplateFromHand(LabelVictory, detector.Victory(), DefaultTolerance))
	return c
}

// TemplateFromHand normalizes hand and wraps it as a template.
func TemplateFromHand(label string, hand detector.Hand, tolerance float64) *Template {
	n := hand.Normalize()
	return &Template{
		Label:     label,
		Landmarks: append([]detector.Point3D(nil), n.Points[:]...),
		Tolerance: tolerance,
	}
}

// AddTemplate registers a template. Nil templates are ignored.
func (c *Classifier) AddTemplate(t *Template) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = append(c.templates, t)
}

// RemoveTemplate drops every template with the given label.
func (c *Classifier) RemoveTemplate(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.templates[:0]
	for _, t := range c.templates {
		if t.Label != label {
			kept = append(kept, t)
		}
	}
	c.templates = kept
}

// Classify returns the event for the first hand in hands.
func (c *Classifier) Classify(hands []detector.Hand) Event {
	if len(hands) == 0 {
		return Event{}
	}
	hand := &hands[0]

	if top, ok := hand.TopGesture(); ok {
		return Event{Label: top.Name, Confidence: clamp01(top.Score)}
	}

	matches := c.Match(hand)
	if len(matches) == 0 {
		return Event{}
	}
	return Event{Label: matches[0].Template.Label, Confidence: matches[0].Score}
}

// Match returns the templates within tolerance of hand, best first.
func (c *Classifier) Match(hand *detector.Hand) []Match {
	n := hand.Normalize()
	if n == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []Match
	for _, t := range c.templates {
		d := meanDistance(n.Points[:], t.Landmarks)
		if d > t.Tolerance {
			continue
		}
		matches = append(matches, Match{Template: t, Score: 1 / (1 + d), Distance: d})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// meanDistance averages the Euclidean distance over corresponding points.
func meanDistance(a, b []detector.Point3D) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return math.Inf(1)
	}

	var total float64
	for i := 0; i < n; i++ {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total / float64(n)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
