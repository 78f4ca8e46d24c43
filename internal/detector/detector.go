package detector

import "gocv.io/x/gocv"

// Detector finds hands in a video frame.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases the backend. It is safe to call more than once.
	Close() error
}

// Config holds recognizer backend options.
type Config struct {
	// Command launches the recognizer service, e.g. "python3 scripts/recognizer.py".
	Command string

	// MaxHands is passed to the service. The presenter only acts on the first hand.
	MaxHands int

	// MinConfidence is the service-side detection threshold (0.0-1.0).
	MinConfidence float64
}

// DefaultConfig returns the backend defaults.
func DefaultConfig() Config {
	return Config{
		MaxHands:      1,
		MinConfidence: 0.5,
	}
}
