package facetrack

import "errors"

// ErrNotReady is returned by a Source whose device or model is still
// warming up. The loop skips the cycle.
var ErrNotReady = errors.New("facetrack: source not ready")

// ErrInvalidInterval is returned by Loop.Run when the frame interval is not
// positive.
var ErrInvalidInterval = errors.New("facetrack: frame interval must be positive")
