package core

import "errors"

var (
	ErrBackpressure         = errors.New("backpressure")
	ErrConnClosed           = errors.New("connection closed")
	ErrValidationRejected   = errors.New("validation rejected")
	ErrValidatorUnavailable = errors.New("validator unavailable")
	ErrPersistenceFailed    = errors.New("persistence failed")
	ErrRoomMismatch         = errors.New("room mismatch")
	ErrNotJoined            = errors.New("connection not joined")
)
