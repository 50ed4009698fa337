// Package detection provides face detection types and box geometry.
package detection

import "time"

// BoundingBox is a face box in frame pixels.
type BoundingBox struct {
	OriginX, OriginY float64 // Top-left corner
	Width, Height    float64
}

// Area returns the area of the box in square pixels.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (x, y float64) {
	return b.OriginX + b.Width/2, b.OriginY + b.Height/2
}

// Detection represents a detected face.
type Detection struct {
	Box        BoundingBox
	Confidence float64 // 0-1
}

// Frame is one captured video frame. The owner of a Frame closes it.
type Frame interface {
	Size() (width, height int)
	Close() error
}

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect finds faces in frame. ts is the monotonic time since the
	// detection loop started.
	Detect(frame Frame, ts time.Duration) ([]Detection, error)

	// Close releases resources.
	Close() error
}

// Config holds detector configuration.
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet on 640x480 frames.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       640,
		InputHeight:      480,
	}
}

// Largest returns the detection with the largest box area, or nil when
// dets is empty. Ties keep the earlier detection.
func Largest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	best := &dets[0]
	for i := 1; i < len(dets); i++ {
		if dets[i].Box.Area() > best.Box.Area() {
			best = &dets[i]
		}
	}
	return best
}

// IOU returns the intersection over union of a and b. Disjoint boxes and
// boxes with zero union yield 0.
func IOU(a, b BoundingBox) float64 {
	x1 := max(a.OriginX, b.OriginX)
	y1 := max(a.OriginY, b.OriginY)
	x2 := min(a.OriginX+a.Width, b.OriginX+b.Width)
	y2 := min(a.OriginY+a.Height, b.OriginY+b.Height)

	overlap := max(0, x2-x1) * max(0, y2-y1)
	union := a.Area() + b.Area() - overlap
	if union <= 0 {
		return 0
	}
	return overlap / union
}
