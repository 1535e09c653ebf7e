package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/packet"
)

// queuesPerChannel is the number of admission classes maintained per
// channel: one for CONTROL/SPEECH requests, one for CHANNEL requests. It
// mirrors the source's two-lane split, which keeps a channel's compressed
// bitstream traffic from starving its speech/control traffic or vice versa.
const queuesPerChannel = 2

// ErrTooManyChannels is returned by NewMultiQueueScheduler when asked to
// manage more channels than the admission-control formulas were derived
// for.
var ErrTooManyChannels = errors.New("scheduler: device reports more channels than supported")

const maxChannels = 3

type workKind int

const (
	kindSubmit workKind = iota
	kindResponse
	kindStop
)

type workItem struct {
	kind workKind

	// kindSubmit
	req      *packet.Packet
	callback ResponseCallback

	// kindResponse
	resp    *packet.Packet
	respErr error

	// kindStop
	done chan struct{}
}

// MultiQueueScheduler schedules requests against a FifoDevice: a single
// chip that processes one request at a time, per channel, and returns
// responses strictly in submission order. It shapes bursty traffic from
// several channels into a stream the chip's small internal buffers can
// absorb without overflowing, using the admission-control bounds from
// spec.md §4.4 (translated 1:1 from original_source/scheduler.cc's
// canSend, with the original's exemption of queue 0 from the per-queue cap
// fixed — see DESIGN.md).
type MultiQueueScheduler struct {
	dev      device.FifoDevice
	channels int

	work chan workItem
	done chan struct{}

	stopMu  sync.Mutex
	stopped bool
}

// NewMultiQueueScheduler returns a scheduler for a device with the given
// number of channels (typically dev.Channels(), fixed at construction time
// since the queue layout depends on it).
func NewMultiQueueScheduler(dev device.FifoDevice, channels int) (*MultiQueueScheduler, error) {
	if channels < 1 || channels > maxChannels {
		return nil, fmt.Errorf("%w: %d", ErrTooManyChannels, channels)
	}
	return &MultiQueueScheduler{
		dev:      dev,
		channels: channels,
		work:     make(chan workItem, 64),
	}, nil
}

// Start installs the scheduler's receive callback and spawns its worker
// goroutine. All device Send calls happen on that goroutine, so FifoDevice's
// single-writer requirement is satisfied automatically.
func (s *MultiQueueScheduler) Start() error {
	s.done = make(chan struct{})
	s.dev.SetCallback(s.recv)
	go s.run()
	return nil
}

// Stop drains every queued and in-flight request — invoking each callback,
// in the order the device responds — then unsubscribes from the device.
// Idempotent: a second Stop call blocks only until the first one's drain
// completes, since run's goroutine exits once it has drained and no longer
// reads s.work.
func (s *MultiQueueScheduler) Stop() error {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.stopped {
		return nil
	}

	done := make(chan struct{})
	s.work <- workItem{kind: kindStop, done: done}
	<-done
	s.dev.SetCallback(nil)

	s.stopped = true
	return nil
}

// SubmitAsync enqueues req for admission. callback fires exactly once, from
// the worker goroutine: with the response once the device has answered, or
// with the error if the device rejects the write. Stop waits for every
// queued and in-flight request to be answered.
func (s *MultiQueueScheduler) SubmitAsync(req *packet.Packet, callback ResponseCallback) {
	s.work <- workItem{kind: kindSubmit, req: req, callback: callback}
}

// Submit is the synchronous convenience wrapper around SubmitAsync.
func (s *MultiQueueScheduler) Submit(req *packet.Packet) (*packet.Packet, error) {
	return submitSync(s, req)
}

func (s *MultiQueueScheduler) recv(data []byte) {
	resp, err := packet.Parse(data, s.dev.UsesParity(), false)
	s.work <- workItem{kind: kindResponse, resp: resp, respErr: err}
}

// typeIndex maps a packet's wire type to the admission class used by
// submittedByType: CONTROL and SPEECH share a class, CHANNEL gets its own.
func typeIndex(t packet.PacketType) int {
	if t == packet.Channel {
		return 1
	}
	return 0
}

// queueIndex returns the channel queue a request belongs to, or -1 if it
// has no channel selector and therefore goes straight to the device queue
// (e.g. a global RESET or PARITYMODE request).
func queueIndex(p *packet.Packet, channels int) int {
	ch, ok := p.Channel()
	if !ok {
		return -1
	}
	return queuesPerChannel*ch + typeIndex(p.Type())
}

// run is the scheduler's single worker goroutine: it owns all mutable
// scheduling state, so nothing here needs a lock. It mirrors
// original_source/scheduler.cc's run(): drain the device queue first
// (requests with no channel affinity, admission permitting), then serve the
// per-channel queues round robin, resetting the sweep counter every time a
// send succeeds so newly-admissible queues get serviced without waiting for
// the next wakeup.
func (s *MultiQueueScheduler) run() {
	defer close(s.done)

	deviceQueue := make([]workItem, 0)
	channelQueues := make([][]workItem, queuesPerChannel*s.channels)
	submitted := make([]workItem, 0)
	submittedByType := make([]int, 2)
	submittedByQueue := make([]int, len(channelQueues))
	next := 0

	quitting := false
	var stopDone chan struct{}

	canSend := func(p *packet.Packet) bool {
		if len(submitted) >= len(channelQueues)+4 {
			return false
		}
		if submittedByType[typeIndex(p.Type())] >= s.channels+2 {
			return false
		}
		if idx := queueIndex(p, s.channels); idx >= 0 && submittedByQueue[idx] >= 2 {
			return false
		}
		return true
	}

	admit := func(item workItem) {
		if err := s.dev.Send(item.req.Data()); err != nil {
			item.callback(nil, err)
			return
		}
		if idx := queueIndex(item.req, s.channels); idx >= 0 {
			submittedByType[typeIndex(item.req.Type())]++
			submittedByQueue[idx]++
		}
		submitted = append(submitted, item)
	}

	queued := func() int {
		n := len(deviceQueue)
		for _, q := range channelQueues {
			n += len(q)
		}
		return n
	}

	for {
		if quitting && queued() == 0 && len(submitted) == 0 {
			break
		}

		item := <-s.work
		switch item.kind {
		case kindStop:
			quitting = true
			stopDone = item.done

		case kindSubmit:
			idx := queueIndex(item.req, s.channels)
			if idx < 0 {
				deviceQueue = append(deviceQueue, item)
			} else {
				channelQueues[idx] = append(channelQueues[idx], item)
			}

		case kindResponse:
			if len(submitted) > 0 {
				head := submitted[0]
				submitted = submitted[1:]
				if idx := queueIndex(head.req, s.channels); idx >= 0 {
					submittedByType[typeIndex(head.req.Type())]--
					submittedByQueue[idx]--
				}
				head.callback(item.resp, item.respErr)
			}
		}

		for len(deviceQueue) > 0 && canSend(deviceQueue[0].req) {
			admit(deviceQueue[0])
			deviceQueue = deviceQueue[1:]
		}

		queues := len(channelQueues)
		for j := 0; j < queues && queued() > 0; j, next = j+1, (next+1)%queues {
			if len(channelQueues[next]) == 0 {
				continue
			}
			if !canSend(channelQueues[next][0].req) {
				continue
			}
			admit(channelQueues[next][0])
			channelQueues[next] = channelQueues[next][1:]
			j = 0
		}
	}

	if stopDone != nil {
		close(stopDone)
	}
}

var _ Scheduler = (*MultiQueueScheduler)(nil)
