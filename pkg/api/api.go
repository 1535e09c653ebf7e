// Package api implements the high-level AMBE control surface: reset,
// configuration, and compress/decompress, built entirely out of
// pkg/packet requests submitted through a pkg/scheduler.Scheduler.
package api

import (
	"time"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/packet"
)

// hardResetTimeout bounds how long Reset(true) waits for a READY packet
// after driving the reset line.
const hardResetTimeout = 2 * time.Second

// Scheduler is the subset of scheduler.Scheduler the API layer needs:
// submit a request, block for its response.
type Scheduler interface {
	Submit(req *packet.Packet) (*packet.Packet, error)
}

// resettable is the capability set hardReset needs: a device that can
// drive its own hardware reset line and temporarily swap its receive
// callback while waiting for the READY packet that follows.
type resettable interface {
	device.HardResetCapable
	SetCallback(device.FifoCallback) device.FifoCallback
}

// API is the façade original_source/api.h calls API: it turns method calls
// into packets, submits them through a Scheduler, and decodes the
// response. It works uniformly against a local FifoDevice+
// MultiQueueScheduler pair or a remote TaggingDevice+FifoScheduler pair;
// dev only needs to expose the shared parity flag, and hard/soft reset
// degrade gracefully when the concrete device doesn't support the
// capabilities they need (see hardReset/softReset below).
type API struct {
	dev         device.UsesParity
	scheduler   Scheduler
	checkParity bool
}

// New returns an API bound to dev and scheduler. checkParity mirrors
// original_source/api.h's check_parity constructor flag: when true, every
// response with a parity field has its parity independently reverified
// before the payload is trusted.
func New(dev device.UsesParity, scheduler Scheduler, checkParity bool) *API {
	return &API{dev: dev, scheduler: scheduler, checkParity: checkParity}
}

func (a *API) verify(resp *packet.Packet) error {
	if a.checkParity && a.dev.UsesParity() && resp.HasParity() {
		ok, err := resp.CheckParity()
		if err != nil {
			return err
		}
		if !ok {
			return ErrParity
		}
	}
	return nil
}

func (a *API) submit(req *packet.Packet) (*packet.Packet, error) {
	req.Finalize(a.dev.UsesParity())
	resp, err := a.scheduler.Submit(req)
	if err != nil {
		return nil, err
	}
	if err := a.verify(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func parseStatus(resp *packet.Packet, want packet.FieldType) error {
	payload := resp.Payload()
	if len(payload) < 2 || packet.FieldType(payload[0]) != want {
		return ErrInvalidResponse
	}
	if payload[1] != 0 {
		return ErrRequestFailed
	}
	return nil
}

func channelFieldType(channel int) (packet.FieldType, error) {
	if channel < 0 || channel > 2 {
		return 0, ErrInvalidChannel
	}
	return packet.CHANNEL0 + packet.FieldType(channel), nil
}

// parseChannelStatus decodes the leading StatusField every multi-channel
// response carries — confirming the CHANNELc selector — followed by the
// command's own field/status pair (spec.md §4.6).
func parseChannelStatus(resp *packet.Packet, channel int, want packet.FieldType) error {
	chType, err := channelFieldType(channel)
	if err != nil {
		return err
	}
	payload := resp.Payload()
	if len(payload) < 4 {
		return ErrInvalidResponse
	}
	if packet.FieldType(payload[0]) != chType || payload[1] != 0 {
		return ErrWrongChannel
	}
	if packet.FieldType(payload[2]) != want {
		return ErrInvalidResponse
	}
	if payload[3] != 0 {
		return ErrRequestFailed
	}
	return nil
}

// Reset resets the chip. A hard reset drives the device's hardware reset
// line and waits for READY; a soft reset flushes any partial packet with
// zero bytes and then submits a RESET request with parity forced on so the
// chip accepts it no matter what parity state it was left in (spec.md
// §4.6; see DESIGN.md decision 4 on the source's inconsistent comment).
// Either way, the device's parity flag is left set to true afterward,
// matching the chip's own post-reset default.
func (a *API) Reset(hard bool) error {
	var err error
	if hard {
		err = a.hardReset()
	} else {
		err = a.softReset()
	}
	if err != nil {
		return err
	}
	a.dev.SetUsesParity(true)
	return nil
}

func (a *API) hardReset() error {
	rd, ok := a.dev.(resettable)
	if !ok {
		return ErrHardResetUnsupported
	}

	ready := make(chan struct{}, 1)
	prev := rd.SetCallback(func(raw []byte) {
		p, err := packet.Parse(raw, true, false)
		if err != nil || p.Type() != packet.Control {
			return
		}
		payload := p.Payload()
		if len(payload) != 1 || packet.FieldType(payload[0]) != packet.READY {
			return
		}
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer rd.SetCallback(prev)

	if err := rd.HardReset(); err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-time.After(hardResetTimeout):
		return ErrHardResetTimeout
	}
}

func (a *API) softReset() error {
	// Terminate any partially-sent packet the chip may be mid-way through
	// receiving, the same way DVSI's own Linux client does. This only
	// applies to a locally-attached FifoDevice; a remote client has no
	// direct byte-level access to the chip and skips straight to the RESET
	// request below (the server's own API instance is responsible for the
	// zero-padding dance against its local device).
	if fd, ok := a.dev.(device.FifoDevice); ok {
		zero := make([]byte, 10)
		for i := 0; i < 3500; i++ {
			if err := fd.Send(zero); err != nil {
				return err
			}
		}
	}

	req := packet.New(packet.Control)
	req.AppendPlain(packet.RESET)
	req.Finalize(true)
	resp, err := a.scheduler.Submit(req)
	if err != nil {
		return err
	}
	payload := resp.Payload()
	if len(payload) != 1 || packet.FieldType(payload[0]) != packet.READY {
		return ErrInvalidResponse
	}
	return nil
}

// ParityMode enables or disables the trailing parity field on every future
// packet in both directions. The device's parity flag is updated before
// the request is sent so the response itself is parsed under the new
// setting, per spec.md §4.6.
func (a *API) ParityMode(enabled bool) error {
	req := packet.New(packet.Control)
	req.AppendParityMode(enabled)
	req.Finalize(a.dev.UsesParity())

	a.dev.SetUsesParity(enabled)
	resp, err := a.scheduler.Submit(req)
	if err != nil {
		return err
	}
	if err := a.verify(resp); err != nil {
		return err
	}
	return parseStatus(resp, packet.PARITYMODE)
}

// Compand enables or disables input/output companding and selects A-law
// versus u-law.
func (a *API) Compand(enabled, alaw bool) error {
	req := packet.New(packet.Control)
	req.AppendCompand(enabled, alaw)
	resp, err := a.submit(req)
	if err != nil {
		return err
	}
	return parseStatus(resp, packet.COMPAND)
}

// ProdID returns the chip's product ID string.
func (a *API) ProdID() (string, error) {
	req := packet.New(packet.Control)
	req.AppendPlain(packet.PRODID)
	resp, err := a.submit(req)
	if err != nil {
		return "", err
	}
	return resp.StringValue(packet.PRODID)
}

// VerString returns the chip's firmware version string.
func (a *API) VerString() (string, error) {
	req := packet.New(packet.Control)
	req.AppendPlain(packet.VERSTRING)
	resp, err := a.submit(req)
	if err != nil {
		return "", err
	}
	return resp.StringValue(packet.VERSTRING)
}

func (a *API) setMode(channel int, t packet.FieldType, nsE, cpS, cpE, dtxE, tdE, tsE bool) error {
	if _, err := channelFieldType(channel); err != nil {
		return err
	}
	req := packet.New(packet.Control)
	if err := req.AppendChannel(channel); err != nil {
		return err
	}
	req.AppendMode(t, nsE, cpS, cpE, dtxE, tdE, tsE)
	resp, err := a.submit(req)
	if err != nil {
		return err
	}
	return parseChannelStatus(resp, channel, t)
}

// ECMode configures the encoder's noise suppression, companding, DTX, and
// tone parameters on channel.
func (a *API) ECMode(channel int, nsE, cpS, cpE, dtxE, tdE, tsE bool) error {
	return a.setMode(channel, packet.ECMODE, nsE, cpS, cpE, dtxE, tdE, tsE)
}

// DCMode configures the decoder's noise suppression, companding, DTX, and
// tone parameters on channel.
func (a *API) DCMode(channel int, nsE, cpS, cpE, dtxE, tdE, tsE bool) error {
	return a.setMode(channel, packet.DCMODE, nsE, cpS, cpE, dtxE, tdE, tsE)
}

// RateT selects a coding rate on channel by table index.
func (a *API) RateT(channel int, index uint8) error {
	if _, err := channelFieldType(channel); err != nil {
		return err
	}
	req := packet.New(packet.Control)
	if err := req.AppendChannel(channel); err != nil {
		return err
	}
	req.AppendRatet(index)
	resp, err := a.submit(req)
	if err != nil {
		return err
	}
	return parseChannelStatus(resp, channel, packet.RATET)
}

// RateP selects a coding rate on channel by six raw rate control words.
func (a *API) RateP(channel int, rcw [6]uint16) error {
	if _, err := channelFieldType(channel); err != nil {
		return err
	}
	req := packet.New(packet.Control)
	if err := req.AppendChannel(channel); err != nil {
		return err
	}
	req.AppendRatep(rcw)
	resp, err := a.submit(req)
	if err != nil {
		return err
	}
	return parseChannelStatus(resp, channel, packet.RATEP)
}

// Rate selects a coding rate on channel, dispatching to RateT or RateP
// depending on r.Kind.
func (a *API) Rate(channel int, r Rate) error {
	switch r.Kind {
	case RateT:
		return a.RateT(channel, r.Index)
	case RateP:
		return a.RateP(channel, r.RCW)
	default:
		return ErrInvalidRate
	}
}

// Init enables or disables the encoder and/or decoder on channel.
func (a *API) Init(channel int, encoder, decoder bool) error {
	if _, err := channelFieldType(channel); err != nil {
		return err
	}
	req := packet.New(packet.Control)
	if err := req.AppendChannel(channel); err != nil {
		return err
	}
	req.AppendInit(encoder, decoder)
	resp, err := a.submit(req)
	if err != nil {
		return err
	}
	return parseChannelStatus(resp, channel, packet.INIT)
}

// Compress submits a frame of PCM samples for AMBE encoding on channel.
// The result arrives asynchronously via the returned channel, which
// receives exactly one value.
func (a *API) Compress(channel int, samples AudioFrame) <-chan Result {
	out := make(chan Result, 1)
	req := packet.New(packet.Speech)
	if err := req.AppendChannel(channel); err != nil {
		out <- Result{Err: err}
		close(out)
		return out
	}
	if err := req.AppendSpchd(samples[:]); err != nil {
		out <- Result{Err: err}
		close(out)
		return out
	}
	req.Finalize(a.dev.UsesParity())
	go a.deliverBits(req, channel, out)
	return out
}

// Decompress submits a frame of AMBE-compressed bits for decoding on
// channel. The result arrives asynchronously via the returned channel,
// which receives exactly one value.
func (a *API) Decompress(channel int, frame AmbeFrame) <-chan Result {
	out := make(chan Result, 1)
	req := packet.New(packet.Channel)
	if err := req.AppendChannel(channel); err != nil {
		out <- Result{Err: err}
		close(out)
		return out
	}
	if err := req.AppendChand(frame.Bits, frame.Data); err != nil {
		out <- Result{Err: err}
		close(out)
		return out
	}
	req.Finalize(a.dev.UsesParity())
	go a.deliverSamples(req, channel, out)
	return out
}

// Result carries the outcome of an asynchronous Compress/Decompress call:
// on success exactly one of Ambe/Samples is set and Err is nil; on failure
// only Err is set.
type Result struct {
	Samples *AudioFrame
	Ambe    *AmbeFrame
	Err     error
}

func (a *API) deliverBits(req *packet.Packet, channel int, out chan<- Result) {
	defer close(out)
	resp, err := a.scheduler.Submit(req)
	if err != nil {
		out <- Result{Err: err}
		return
	}
	if err := a.verify(resp); err != nil {
		out <- Result{Err: err}
		return
	}
	if ch, ok := resp.Channel(); !ok || ch != channel {
		out <- Result{Err: ErrWrongChannel}
		return
	}
	bits, data, err := resp.Bits()
	if err != nil {
		out <- Result{Err: err}
		return
	}
	out <- Result{Ambe: &AmbeFrame{Bits: bits, Data: data}}
}

func (a *API) deliverSamples(req *packet.Packet, channel int, out chan<- Result) {
	defer close(out)
	resp, err := a.scheduler.Submit(req)
	if err != nil {
		out <- Result{Err: err}
		return
	}
	if err := a.verify(resp); err != nil {
		out <- Result{Err: err}
		return
	}
	if ch, ok := resp.Channel(); !ok || ch != channel {
		out <- Result{Err: ErrWrongChannel}
		return
	}
	samples, err := resp.Samples()
	if err != nil {
		out <- Result{Err: err}
		return
	}
	var frame AudioFrame
	copy(frame[:], samples)
	out <- Result{Samples: &frame}
}
