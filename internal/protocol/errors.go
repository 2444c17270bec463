package protocol

import "errors"

// ErrLineTooLong is returned by Reader.ReadMessage when a frame exceeds
// the configured maximum line length.
var ErrLineTooLong = errors.New("protocol: line exceeds maximum frame length")

// ErrUnknownType is returned when a decoded Message carries a Type outside
// the closed set recognized by this protocol version.
var ErrUnknownType = errors.New("protocol: unknown message type")

// ErrMalformed wraps JSON decode failures on an individual frame.
var ErrMalformed = errors.New("protocol: malformed frame")
