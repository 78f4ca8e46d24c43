package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	blurKernel    = 21
	diffThreshold = 25

	// DefaultHoldFrames keeps the gate open after motion stops so a held
	// pose still reaches the recognizer.
	DefaultHoldFrames = 10
)

// MotionGate decides whether a frame is worth sending to the hand detector.
// A still scene with nobody gesturing is skipped.
type MotionGate struct {
	mu        sync.Mutex
	percent   float64
	hold      int
	remaining int
	prev      gocv.Mat
	primed    bool
}

// NewMotionGate opens when more than percent of pixels change between frames.
// A non-positive percent disables gating.
func NewMotionGate(percent float64, holdFrames int) *MotionGate {
	if holdFrames < 0 {
		holdFrames = 0
	}
	return &MotionGate{percent: percent, hold: holdFrames, prev: gocv.NewMat()}
}

// Allow reports whether frame should be processed and the measured change
// as a percentage of pixels. The first frame is always allowed.
func (g *MotionGate) Allow(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}
	if g.percent <= 0 {
		return true, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	if !g.primed || blurred.Rows() != g.prev.Rows() || blurred.Cols() != g.prev.Cols() {
		blurred.CopyTo(&g.prev)
		g.primed = true
		g.remaining = g.hold
		return true, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100
	blurred.CopyTo(&g.prev)

	if changed > g.percent {
		g.remaining = g.hold
		return true, changed
	}
	if g.remaining > 0 {
		g.remaining--
		return true, changed
	}
	return false, changed
}

// Reset forgets the baseline frame.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
	g.remaining = 0
}

// Close releases the baseline Mat.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prev.Close()
	g.prev = gocv.NewMat()
	g.primed = false
}
