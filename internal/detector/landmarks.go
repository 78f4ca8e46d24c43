// Package detector provides hand detection backends that feed the gesture classifier.
package detector

import "math"

// Hand landmark indices following the MediaPipe hand model.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark position in normalized image coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Category is a gesture label reported by a recognizer backend.
type Category struct {
	Name  string  `json:"category"`
	Score float64 `json:"score"`
}

// Hand is a single detected hand. Gestures is empty when the backend only
// reports landmarks and leaves classification to the caller.
type Hand struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"`
	Score      float64               `json:"score"`
	Gestures   []Category            `json:"gestures,omitempty"`
}

// TopGesture returns the highest scoring category, if any.
func (h *Hand) TopGesture() (Category, bool) {
	if h == nil || len(h.Gestures) == 0 {
		return Category{}, false
	}
	best := h.Gestures[0]
	for _, c := range h.Gestures[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

func distance3D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Normalize returns a copy of the hand translated so the wrist is the origin
// and scaled so the wrist to middle-MCP distance is 1. Gestures are not copied.
func (h *Hand) Normalize() *Hand {
	if h == nil {
		return nil
	}

	out := &Hand{Handedness: h.Handedness, Score: h.Score}
	wrist := h.Points[Wrist]
	for i := range h.Points {
		out.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := distance3D(Point3D{}, out.Points[MiddleMCP])
	if scale < 1e-10 {
		return out
	}
	for i := range out.Points {
		out.Points[i].X /= scale
		out.Points[i].Y /= scale
		out.Points[i].Z /= scale
	}
	return out
}
