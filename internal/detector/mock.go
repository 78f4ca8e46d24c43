package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns preconfigured hands. It is used in tests and as the
// fallback backend when no recognizer service is available.
type MockDetector struct {
	mu     sync.Mutex
	hands  []Hand
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a MockDetector that detects nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// finger describes one digit of a synthetic right hand.
type finger struct {
	mcp    int     // landmark index of the knuckle
	baseX  float64 // knuckle x position
	spread float64 // x drift per joint when extended
}

var fingers = []finger{
	{mcp: IndexMCP, baseX: 0.55, spread: 0.01},
	{mcp: MiddleMCP, baseX: 0.50, spread: 0},
	{mcp: RingMCP, baseX: 0.45, spread: -0.01},
	{mcp: PinkyMCP, baseX: 0.40, spread: -0.02},
}

// syntheticHand builds a right hand with the wrist at (0.5, 0.8). Extended
// fingers point up the image; curled fingers fold back toward the palm.
func syntheticHand(thumbOut bool, extended [4]bool) Hand {
	h := Hand{Handedness: "Right", Score: 0.95}
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	if thumbOut {
		for j := 0; j < 4; j++ {
			h.Points[ThumbCMC+j] = Point3D{X: 0.55 + 0.06*float64(j), Y: 0.75 - 0.05*float64(j), Z: 0.02}
		}
	} else {
		for j := 0; j < 4; j++ {
			h.Points[ThumbCMC+j] = Point3D{X: 0.55 + 0.01*float64(j), Y: 0.75 - 0.02*float64(j), Z: -0.02}
		}
	}

	for i, f := range fingers {
		knuckleY := 0.68
		if f.mcp == MiddleMCP {
			knuckleY = 0.66
		}
		h.Points[f.mcp] = Point3D{X: f.baseX, Y: knuckleY}

		for j := 1; j < 4; j++ {
			if extended[i] {
				h.Points[f.mcp+j] = Point3D{
					X: f.baseX + f.spread*float64(j),
					Y: knuckleY - 0.12*float64(j),
				}
			} else {
				// PIP rises slightly, DIP and tip fold back below the knuckle.
				dy := []float64{0, -0.02, 0.01, 0.04}[j]
				h.Points[f.mcp+j] = Point3D{
					X: f.baseX - 0.02*float64(j-1),
					Y: knuckleY + dy,
					Z: -0.03,
				}
			}
		}
	}
	return h
}

// OpenPalm returns landmarks for an open hand with every finger extended.
func OpenPalm() Hand {
	return syntheticHand(true, [4]bool{true, true, true, true})
}

// Victory returns landmarks for a peace sign: index and middle extended.
func Victory() Hand {
	return syntheticHand(false, [4]bool{true, true, false, false})
}

// Fist returns landmarks for a closed fist.
func Fist() Hand {
	return syntheticHand(false, [4]bool{false, false, false, false})
}
