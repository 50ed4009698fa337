package facetrack

import "time"

// Config holds the tunable parameters of face level classification.
type Config struct {
	// Timing
	FrameInterval time.Duration // Upper bound on cycle rate

	// Hysteresis: entering CLOSE needs LargeFaceThreshold, staying there
	// needs only SmallFaceThreshold (square pixels).
	SmallFaceThreshold float64
	LargeFaceThreshold float64

	// Consecutive boxes overlapping less than this are unstable.
	IOUThreshold float64
}

// DefaultConfig returns the thresholds tuned for a 640x480 kiosk camera.
func DefaultConfig() Config {
	return Config{
		FrameInterval:      16 * time.Millisecond, // ~60 Hz
		SmallFaceThreshold: 10000,
		LargeFaceThreshold: 25000,
		IOUThreshold:       0.5,
	}
}
