// Package camera captures frames from the kiosk camera with OpenCV, runs the
// YuNet face detector on them, and encodes JPEG snapshots and overlay previews.
package camera

import (
	"time"

	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

// Capture limits.
const (
	MinWidth  = 160
	MinHeight = 120
	MaxWidth  = 1920
	MaxHeight = 1080
)

// Config holds camera configuration.
type Config struct {
	// Device is a device index ("0") or a file or stream URL.
	Device string `json:"device"`

	// === Frame ===
	Width  int `json:"width"`  // Frame width in pixels
	Height int `json:"height"` // Frame height in pixels

	// JPEGQuality is used for recognition snapshots (1-100).
	JPEGQuality int `json:"jpeg_quality"`

	// === Preview ===
	// PreviewQuality is the JPEG quality of overlay frames (1-100).
	PreviewQuality int `json:"preview_quality"`
	// PreviewInterval is the minimum time between overlay frames.
	// Zero disables the preview.
	PreviewInterval time.Duration `json:"preview_interval"`

	// Detector configures the YuNet face detector.
	Detector detection.Config `json:"-"`
}

// DefaultConfig returns the kiosk defaults: 640x480, JPEG quality 60.
func DefaultConfig() Config {
	return Config{
		Device:          "0",
		Width:           640,
		Height:          480,
		JPEGQuality:     60,
		PreviewQuality:  70,
		PreviewInterval: 100 * time.Millisecond,
		Detector:        detection.DefaultConfig(),
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errors = append(errors, "jpeg_quality must be between 1 and 100")
	}
	if c.PreviewQuality < 1 || c.PreviewQuality > 100 {
		errors = append(errors, "preview_quality must be between 1 and 100")
	}
	if c.PreviewInterval < 0 {
		errors = append(errors, "preview_interval must not be negative")
	}
	if c.Detector.ModelPath == "" {
		errors = append(errors, "detector model path is required")
	}
	if c.Detector.ConfidenceThresh <= 0 || c.Detector.ConfidenceThresh >= 1 {
		errors = append(errors, "detector confidence must be between 0 and 1")
	}

	return errors
}
