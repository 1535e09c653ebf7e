// Package scheduler implements the two AMBE request schedulers: a trivial
// FIFO scheduler for tagged transports, and a multi-queue scheduler that
// shapes traffic to a pipelined multi-channel chip.
package scheduler

import "github.com/janakj/ambe/pkg/packet"

// ResponseCallback receives the response to a submitted request, or a
// non-nil error if the request could not be completed (the device failed
// to accept it, or the response was malformed).
type ResponseCallback func(resp *packet.Packet, err error)

// Scheduler determines the order in which requests are sent to an AMBE
// device and correlates each response with the request that caused it.
type Scheduler interface {
	// Start subscribes to the device's receive callback and, for
	// implementations that need one, spawns a worker goroutine.
	Start() error

	// Stop drains all outstanding requests — waiting for the device to
	// respond to each one — then unsubscribes from the device. Calling
	// Stop on an already-stopped scheduler is a no-op.
	Stop() error

	// SubmitAsync submits a request; callback is invoked exactly once,
	// either with the decoded response or with an error. The
	// MultiQueueScheduler only enqueues the request and leaves the device
	// write to its worker; the FifoScheduler performs the device write
	// inside SubmitAsync.
	SubmitAsync(req *packet.Packet, callback ResponseCallback)

	// Submit is the synchronous convenience wrapper around SubmitAsync.
	Submit(req *packet.Packet) (*packet.Packet, error)
}

// submitSync implements Scheduler.Submit in terms of SubmitAsync; both
// scheduler implementations embed it.
func submitSync(s interface {
	SubmitAsync(*packet.Packet, ResponseCallback)
}, req *packet.Packet) (*packet.Packet, error) {
	type result struct {
		resp *packet.Packet
		err  error
	}
	ch := make(chan result, 1)
	s.SubmitAsync(req, func(resp *packet.Packet, err error) {
		ch <- result{resp, err}
	})
	r := <-ch
	return r.resp, r.err
}
