package scheduler

import (
	"sync"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/packet"
)

// mockFifoDevice is an in-memory device.FifoDevice. When respond is set,
// every Send is answered synchronously with its computed response (as if
// the chip replied instantly); tests that need to control response timing
// leave respond nil and hand responses to the scheduler with deliver.
type mockFifoDevice struct {
	mu       sync.Mutex
	recv     device.FifoCallback
	channels int
	parity   bool
	sent     [][]byte

	// respond, if set, is called for every Send with the request bytes; its
	// return value is delivered as the response. If nil, Send never
	// responds on its own (the test drives recv directly).
	respond func(req []byte) []byte
}

func (d *mockFifoDevice) Start() error { return nil }
func (d *mockFifoDevice) Stop() error  { return nil }
func (d *mockFifoDevice) Channels() int { return d.channels }

func (d *mockFifoDevice) UsesParity() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parity
}

func (d *mockFifoDevice) SetUsesParity(v bool) {
	d.mu.Lock()
	d.parity = v
	d.mu.Unlock()
}

func (d *mockFifoDevice) SetCallback(recv device.FifoCallback) device.FifoCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.recv
	d.recv = recv
	return old
}

func (d *mockFifoDevice) Send(pkt []byte) error {
	d.mu.Lock()
	d.sent = append(d.sent, pkt)
	respond := d.respond
	recv := d.recv
	d.mu.Unlock()

	if respond != nil {
		resp := respond(pkt)
		if recv != nil {
			recv(resp)
		}
	}
	return nil
}

func (d *mockFifoDevice) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func (d *mockFifoDevice) sentAt(i int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent[i]
}

// deliver simulates the device responding to req by handing it back,
// unmodified, to the scheduler's installed callback (an echo response is
// enough to exercise admission bookkeeping; tests don't care about payload
// contents here).
func (d *mockFifoDevice) deliver(req []byte) {
	d.mu.Lock()
	recv := d.recv
	d.mu.Unlock()
	if recv != nil {
		recv(req)
	}
}

// mockTaggingDevice is an in-memory device.TaggingDevice: Send returns at
// once and, on its own goroutine, delivers the response tagged with the
// request's tag — the request itself, or respond's result when respond is
// set, so respond may delay or block without holding up the sender.
type mockTaggingDevice struct {
	mu      sync.Mutex
	recv    device.TaggedCallback
	channels int
	parity   bool
	respond  func(tag int32, req []byte) []byte
}

func (d *mockTaggingDevice) Start() error   { return nil }
func (d *mockTaggingDevice) Stop() error    { return nil }
func (d *mockTaggingDevice) Channels() int  { return d.channels }

func (d *mockTaggingDevice) UsesParity() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parity
}

func (d *mockTaggingDevice) SetUsesParity(v bool) {
	d.mu.Lock()
	d.parity = v
	d.mu.Unlock()
}

func (d *mockTaggingDevice) SetCallback(recv device.TaggedCallback) device.TaggedCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.recv
	d.recv = recv
	return old
}

func (d *mockTaggingDevice) Send(tag int32, pkt []byte) error {
	d.mu.Lock()
	respond := d.respond
	recv := d.recv
	d.mu.Unlock()

	go func() {
		var resp []byte
		if respond != nil {
			resp = respond(tag, pkt)
		} else {
			resp = pkt
		}
		if recv != nil {
			recv(tag, resp)
		}
	}()
	return nil
}

// controlRequest builds a finalized CONTROL packet with no channel selector
// (e.g. RESET), used by tests that only care about device-queue admission.
func controlRequest(field packet.FieldType) *packet.Packet {
	p := packet.New(packet.Control)
	p.AppendPlain(field)
	p.Finalize(false)
	return p
}

// channelRequest builds a finalized packet addressed to a channel, carrying
// a single CHANND/READY-style plain field after the channel selector.
func channelRequest(t packet.PacketType, channel int, field packet.FieldType) *packet.Packet {
	p := packet.New(t)
	_ = p.AppendChannel(channel)
	p.AppendPlain(field)
	p.Finalize(false)
	return p
}
