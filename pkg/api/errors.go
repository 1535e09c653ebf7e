package api

import "errors"

var (
	// ErrInvalidResponse is returned when a response's field layout does not
	// match what the request should have produced.
	ErrInvalidResponse = errors.New("api: invalid response from device")

	// ErrRequestFailed is returned when the chip echoes a non-zero status
	// for a command.
	ErrRequestFailed = errors.New("api: chip reported command failure")

	// ErrWrongChannel is returned when a multi-channel response's leading
	// channel-selector confirmation does not match the requested channel.
	ErrWrongChannel = errors.New("api: response for wrong channel")

	// ErrParity is returned when a response's parity field fails to verify
	// and parity checking is enabled.
	ErrParity = errors.New("api: response failed parity check")

	// ErrHardResetUnsupported is returned by Reset(true) when the
	// underlying device does not implement device.HardResetCapable.
	ErrHardResetUnsupported = errors.New("api: device does not support hard reset")

	// ErrHardResetTimeout is returned when a hard reset does not observe a
	// READY packet within the reset timeout.
	ErrHardResetTimeout = errors.New("api: timed out waiting for READY after hard reset")

	// ErrInvalidRate is returned by ParseRate when the input is neither a
	// valid rate table index nor six comma-separated 16-bit words.
	ErrInvalidRate = errors.New("api: invalid rate string")

	// ErrInvalidChannel is returned when a channel argument falls outside
	// [0, 2].
	ErrInvalidChannel = errors.New("api: channel must be 0, 1, or 2")
)
