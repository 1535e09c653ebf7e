package api

import (
	"sync"
	"testing"
	"time"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/packet"
)

// parityOnly implements only device.UsesParity, enough for API operations
// that never touch reset or raw device writes.
type parityOnly struct {
	mu     sync.Mutex
	parity bool
}

func (p *parityOnly) UsesParity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parity
}

func (p *parityOnly) SetUsesParity(v bool) {
	p.mu.Lock()
	p.parity = v
	p.mu.Unlock()
}

var _ device.UsesParity = (*parityOnly)(nil)

// echoScheduler answers PRODID and PARITYMODE requests, finalizing its
// response with whatever parity mode the request itself was sent under,
// except that the response to a PARITYMODE request already uses the mode it
// selects — what a real chip does (spec.md §4.6: parity mode takes effect
// starting with the response to the very request that changes it).
type echoScheduler struct{}

func (echoScheduler) Submit(req *packet.Packet) (*packet.Packet, error) {
	field := packet.FieldType(req.Payload()[0])
	resp := packet.New(req.Type())
	withParity := req.HasParity()
	switch field {
	case packet.PRODID:
		resp.Append(append([]byte{byte(packet.PRODID)}, []byte("AMBE3003\x00")...))
	case packet.PARITYMODE:
		resp.Append([]byte{byte(packet.PARITYMODE), 0})
		withParity = req.Payload()[1] != 0
	}
	resp.Finalize(withParity)
	return packet.Parse(resp.Data(), withParity, false)
}

// TestAPI_ParityToggle matches spec scenario 5: submit PRODID with parity
// on, then PARITYMODE(off), then PRODID again; both PRODID calls must parse
// correctly under their own request's parity setting.
func TestAPI_ParityToggle(t *testing.T) {
	dev := &parityOnly{parity: true}
	a := New(dev, echoScheduler{}, true)

	id1, err := a.ProdID()
	if err != nil {
		t.Fatalf("first ProdID: %v", err)
	}
	if id1 != "AMBE3003" {
		t.Fatalf("first ProdID = %q, want AMBE3003", id1)
	}

	if err := a.ParityMode(false); err != nil {
		t.Fatalf("ParityMode(false): %v", err)
	}
	if dev.UsesParity() {
		t.Fatal("parity still enabled after ParityMode(false)")
	}

	id2, err := a.ProdID()
	if err != nil {
		t.Fatalf("second ProdID: %v", err)
	}
	if id2 != "AMBE3003" {
		t.Fatalf("second ProdID = %q, want AMBE3003", id2)
	}
}

// fakeResetDevice implements device.FifoDevice + device.HardResetCapable:
// HardReset asynchronously feeds garbage followed by a READY packet to
// whatever callback is currently installed.
type fakeResetDevice struct {
	mu     sync.Mutex
	parity bool
	recv   device.FifoCallback
}

// newFakeResetDevice returns a fakeResetDevice with parity enabled, matching
// a real chip's power-on-reset default (pkg/serialdev's newUartDevice).
func newFakeResetDevice() *fakeResetDevice {
	return &fakeResetDevice{parity: true}
}

func (d *fakeResetDevice) Start() error  { return nil }
func (d *fakeResetDevice) Stop() error   { return nil }
func (d *fakeResetDevice) Channels() int { return 1 }

func (d *fakeResetDevice) UsesParity() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parity
}

func (d *fakeResetDevice) SetUsesParity(v bool) {
	d.mu.Lock()
	d.parity = v
	d.mu.Unlock()
}

func (d *fakeResetDevice) SetCallback(recv device.FifoCallback) device.FifoCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.recv
	d.recv = recv
	return old
}

func (d *fakeResetDevice) Send(pkt []byte) error { return nil }

func (d *fakeResetDevice) HardReset() error {
	go func() {
		d.mu.Lock()
		recv := d.recv
		d.mu.Unlock()
		if recv == nil {
			return
		}
		recv([]byte{0xff, 0xfe, 0x00}) // garbage: should be silently ignored
		time.Sleep(5 * time.Millisecond)

		ready := packet.New(packet.Control)
		ready.AppendPlain(packet.READY)
		recv(ready.Finalize(true))
	}()
	return nil
}

type noopScheduler struct{}

func (noopScheduler) Submit(req *packet.Packet) (*packet.Packet, error) {
	return nil, ErrInvalidResponse
}

// TestAPI_HardReset matches spec scenario 6: Reset(true) must resolve only
// after READY is observed (ignoring the leading garbage) and must restore
// the previously installed callback afterward.
func TestAPI_HardReset(t *testing.T) {
	dev := newFakeResetDevice()

	var priorCalls int
	var mu sync.Mutex
	dev.SetCallback(func(pkt []byte) {
		mu.Lock()
		priorCalls++
		mu.Unlock()
	})

	a := New(dev, noopScheduler{}, true)

	done := make(chan error, 1)
	go func() { done <- a.Reset(true) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Reset(true): %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reset(true) did not return after READY was sent")
	}

	dev.mu.Lock()
	recv := dev.recv
	dev.mu.Unlock()
	recv([]byte{0x61, 0x00, 0x00, 0x00})

	mu.Lock()
	defer mu.Unlock()
	if priorCalls != 1 {
		t.Fatalf("prior callback invoked %d times after restore, want 1", priorCalls)
	}
}
