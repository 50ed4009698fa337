package transport

import "errors"

var (
	// ErrOpenTimeout is returned by WaitForOpen when the connection
	// does not reach OPEN in time.
	ErrOpenTimeout = errors.New("transport: timed out waiting for open connection")

	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("transport: not connected")
)
