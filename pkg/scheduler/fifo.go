package scheduler

import (
	"sync"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/packet"
)

// FifoScheduler schedules requests against a TaggingDevice: every request
// gets a fresh tag, and the response carrying that tag is delivered to the
// matching callback whenever it arrives, with no ordering guarantee between
// requests in flight. This is the correlation half of the remote transport
// (spec.md §4.3): the tagging device itself only guarantees that a response
// carries the tag of the request that produced it.
type FifoScheduler struct {
	dev device.TaggingDevice

	mu        sync.Mutex
	tag       int32
	submitted map[int32]ResponseCallback
	quitting  bool
	drained   chan struct{}
}

// NewFifoScheduler returns a scheduler bound to dev. Call Start before
// submitting any requests.
func NewFifoScheduler(dev device.TaggingDevice) *FifoScheduler {
	return &FifoScheduler{dev: dev, submitted: make(map[int32]ResponseCallback)}
}

// Start installs the scheduler's receive callback on the device.
func (s *FifoScheduler) Start() error {
	s.dev.SetCallback(s.recv)
	return nil
}

// Stop waits for every outstanding request to receive a response, then
// unsubscribes from the device; it does not return while a response is
// still missing. It is
// idempotent: calling Stop twice, or calling it when nothing is outstanding,
// returns immediately.
func (s *FifoScheduler) Stop() error {
	s.mu.Lock()
	if len(s.submitted) == 0 {
		s.mu.Unlock()
		s.dev.SetCallback(nil)
		return nil
	}
	s.quitting = true
	s.drained = make(chan struct{})
	drained := s.drained
	s.mu.Unlock()

	<-drained
	s.dev.SetCallback(nil)
	return nil
}

// SubmitAsync sends req and registers callback to receive the tagged
// response. If the device rejects the write outright, callback is invoked
// immediately with the error and no tag is registered — unlike the source's
// FifoScheduler::submitAsync, which registers the callback even after a
// failed send, leaving it to fire a second time (or never) if a stray
// response later arrives with the same tag. See DESIGN.md.
func (s *FifoScheduler) SubmitAsync(req *packet.Packet, callback ResponseCallback) {
	s.mu.Lock()
	s.tag++
	tag := s.tag
	err := s.dev.Send(tag, req.Data())
	if err != nil {
		s.mu.Unlock()
		callback(nil, err)
		return
	}
	s.submitted[tag] = callback
	s.mu.Unlock()
}

// Submit is the synchronous convenience wrapper around SubmitAsync.
func (s *FifoScheduler) Submit(req *packet.Packet) (*packet.Packet, error) {
	return submitSync(s, req)
}

func (s *FifoScheduler) recv(tag int32, data []byte) {
	s.mu.Lock()
	callback, ok := s.submitted[tag]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.submitted, tag)
	quitting := s.quitting
	drained := s.drained
	empty := len(s.submitted) == 0
	s.mu.Unlock()

	resp, err := packet.Parse(data, s.dev.UsesParity(), false)
	callback(resp, err)

	if quitting && empty {
		close(drained)
	}
}

var _ Scheduler = (*FifoScheduler)(nil)
