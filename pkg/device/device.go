// Package device defines the capability interfaces AMBE devices implement:
// a base device, and the two mutually exclusive ordering semantics (FIFO or
// tagged) a concrete transport provides.
package device

// FifoCallback receives a raw packet from a FIFO device, in the order the
// device produced them.
type FifoCallback func(packet []byte)

// TaggedCallback receives a raw packet from a tagging device, along with
// the tag the device attached to correlate it with a request.
type TaggedCallback func(tag int32, packet []byte)

// Device is the base capability every AMBE device provides.
type Device interface {
	// Start opens the transport and begins receiving packets.
	Start() error
	// Stop interrupts any in-progress read, releases the transport, and
	// guarantees no further callback invocations after it returns.
	Stop() error
	// Channels returns the number of independent channels the device
	// supports.
	Channels() int
}

// UsesParity reports and sets whether the device's current packets are
// expected to carry a parity field. Implementations must expose a single
// shared flag the API layer can toggle ahead of sending a PARITYMODE
// request (spec.md §4.6: the flag is set before send so the response is
// parsed under the new setting).
type UsesParity interface {
	UsesParity() bool
	SetUsesParity(bool)
}

// FifoDevice guarantees that responses are produced in the order requests
// were submitted. Typical implementer: a local UART connection to a single
// chip.
type FifoDevice interface {
	Device
	UsesParity

	// SetCallback installs recv as the device's receive callback and
	// returns the previously installed callback, or nil.
	SetCallback(recv FifoCallback) FifoCallback

	// Send writes a packet to the device. Blocking, and not safe to call
	// concurrently from multiple goroutines.
	Send(packet []byte) error
}

// TaggingDevice carries a correlation tag with every packet in both
// directions and makes no ordering guarantee between requests and
// responses. Typical implementer: a remote connection multiplexing several
// clients onto one chip.
type TaggingDevice interface {
	Device
	UsesParity

	// SetCallback installs recv as the device's receive callback and
	// returns the previously installed callback, or nil.
	SetCallback(recv TaggedCallback) TaggedCallback

	// Send writes a tagged packet to the device. Blocking, and not safe to
	// call concurrently from multiple goroutines.
	Send(tag int32, packet []byte) error
}

// HardResetCapable is an optional capability: devices that can drive a
// UART break/reset pin implement it. Callers detect support with a type
// assertion, e.g. `d, ok := dev.(device.HardResetCapable)`.
type HardResetCapable interface {
	// HardReset performs a hardware reset of the chip. It may block while
	// the reset is in progress.
	HardReset() error
}
