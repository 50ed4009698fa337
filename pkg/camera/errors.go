package camera

import "errors"

var (
	// ErrUnavailable means the capture device could not be opened.
	ErrUnavailable = errors.New("camera: device unavailable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("camera: closed")

	// ErrEmptyFrame is returned when the device delivered no image.
	ErrEmptyFrame = errors.New("camera: empty frame")
)
