package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation marks a message whose tag is outside the set the
	// receiving side recognizes. It is fatal to the session.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrMalformedFrame is returned by codecs for frames that do not decode
	// to a [tag, payload] pair.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrEngineDisconnected reports that the engine side of the channel went
	// away while the session was still open.
	ErrEngineDisconnected = errors.New("engine disconnected")
)

// ViolationError carries the offending tag of a protocol violation.
type ViolationError struct {
	Tag Tag
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: unrecognized tag %q", ErrProtocolViolation, e.Tag)
}

// Unwrap lets errors.Is match ErrProtocolViolation.
func (e *ViolationError) Unwrap() error {
	return ErrProtocolViolation
}
