package p2p

import "errors"

// The failure kinds surfaced to user callbacks.
var (
	// The operation is not permitted in the current session state.
	ErrInvalidState = errors.New("invalid state")
	// Null input, duplicate publication, unknown stream, or a signaling
	// transport failure.
	ErrInvalidArgument = errors.New("invalid argument")
	// The remote peer's capabilities forbid the requested operation.
	ErrUnsupportedMethod = errors.New("unsupported method")
)
