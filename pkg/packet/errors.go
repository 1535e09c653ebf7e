package packet

import "errors"

// Malformed-packet errors, returned by Parse and the field accessors.
var (
	ErrTooShort       = errors.New("packet: too short to have a header")
	ErrBadStartByte   = errors.New("packet: invalid start byte")
	ErrBadLength      = errors.New("packet: declared length does not match payload")
	ErrBadType        = errors.New("packet: unknown packet type")
	ErrNoParity       = errors.New("packet: expected parity field not present")
	ErrBadParityField = errors.New("packet: trailing field is not a parity field")
	ErrParityMismatch = errors.New("packet: parity check failed")
	ErrWrongType      = errors.New("packet: field type mismatch")
	ErrWrongChannel   = errors.New("packet: channel field mismatch")
	ErrBadChannel     = errors.New("packet: channel must be 0, 1 or 2")
	ErrTooManyBits    = errors.New("packet: bit count exceeds 255")
	ErrTooManySamples = errors.New("packet: sample count exceeds 255")
	ErrNoParityField  = errors.New("packet: no parity field on this packet")
)
