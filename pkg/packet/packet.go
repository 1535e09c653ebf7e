// Package packet implements the framed binary wire format used by DVSI AMBE
// vocoder chips: a 4-byte header, a sequence of typed fields, and an
// optional trailing XOR parity field.
package packet

import "encoding/binary"

// StartByte begins every packet on the wire.
const StartByte byte = 0x61

// headerSize is the size of the fixed header: start byte, 16-bit length,
// packet type.
const headerSize = 4

// parityFieldSize is the size of the trailing parity field: type byte plus
// the XOR value byte.
const parityFieldSize = 2

// PacketType is the one-byte type carried in the packet header.
type PacketType byte

const (
	Control PacketType = 0x00
	Channel PacketType = 0x01
	Speech  PacketType = 0x02
)

func (t PacketType) valid() bool {
	switch t {
	case Control, Channel, Speech:
		return true
	default:
		return false
	}
}

// Packet is a length-framed byte sequence: a 4-byte header followed by a
// sequence of typed fields and an optional 2-byte parity field.
//
// A Packet is mutated only while being built (via Append*); once Finalize
// has been called it should be treated as frozen, per the lifecycle rule in
// the data model.
type Packet struct {
	buf       []byte
	hasParity bool
}

// New allocates a packet with only the header, payload length 0, and no
// parity field.
func New(t PacketType) *Packet {
	buf := make([]byte, headerSize)
	buf[0] = StartByte
	buf[3] = byte(t)
	return &Packet{buf: buf}
}

// Parse validates and wraps a received byte slice as a Packet.
//
// If expectParity is true, the trailing two bytes must be a well-formed
// parity field; if checkParity is additionally true, its XOR value is
// recomputed and verified. The parity check, when requested, is performed
// before any other validation so that a corrupted packet fails fast (§4.1
// rationale).
func Parse(data []byte, expectParity, checkParity bool) (*Packet, error) {
	if expectParity {
		if len(data) < headerSize+parityFieldSize {
			return nil, ErrTooShort
		}
		parityType := FieldType(data[len(data)-parityFieldSize])
		if parityType != PARITY {
			return nil, ErrBadParityField
		}
		if checkParity {
			value := data[len(data)-1]
			if xorRange(data) != value {
				return nil, ErrParityMismatch
			}
		}
	}

	if len(data) < headerSize {
		return nil, ErrTooShort
	}
	if data[0] != StartByte {
		return nil, ErrBadStartByte
	}
	declared := int(binary.BigEndian.Uint16(data[1:3]))
	if declared != len(data)-headerSize {
		return nil, ErrBadLength
	}
	t := PacketType(data[3])
	if !t.valid() {
		return nil, ErrBadType
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return &Packet{buf: buf, hasParity: expectParity}, nil
}

// xorRange computes the XOR over every byte of buf except the start byte
// (index 0) and the trailing parity value byte (the last byte).
func xorRange(buf []byte) byte {
	var v byte
	for _, b := range buf[1 : len(buf)-1] {
		v ^= b
	}
	return v
}

// Type returns the packet's type.
func (p *Packet) Type() PacketType {
	return PacketType(p.buf[3])
}

// Data returns the packet's raw wire bytes. Valid only after Finalize.
func (p *Packet) Data() []byte {
	return p.buf
}

// Len returns the total length of the packet on the wire, header included.
func (p *Packet) Len() int {
	return len(p.buf)
}

// HasParity reports whether the packet carries a trailing parity field.
func (p *Packet) HasParity() bool {
	return p.hasParity
}

// payloadEnd returns the index one past the last payload byte (i.e. where
// the parity field, if any, begins).
func (p *Packet) payloadEnd() int {
	if p.hasParity {
		return len(p.buf) - parityFieldSize
	}
	return len(p.buf)
}

// Payload returns the packet's field bytes, excluding the header and any
// trailing parity field.
func (p *Packet) Payload() []byte {
	return p.buf[headerSize:p.payloadEnd()]
}

// appendRaw appends raw bytes to the payload, before any parity field. It
// is used internally by the typed Append* helpers.
func (p *Packet) appendRaw(b []byte) {
	if p.hasParity {
		// Insert ahead of the existing trailing parity field; it will be
		// recomputed and re-appended again on Finalize.
		end := p.payloadEnd()
		tail := make([]byte, len(p.buf)-end)
		copy(tail, p.buf[end:])
		p.buf = append(p.buf[:end], append(b, tail...)...)
	} else {
		p.buf = append(p.buf, b...)
	}
}

// Append appends a raw field (type byte plus payload) to the packet. Most
// callers should prefer the typed Append* helpers below, which validate
// their inputs the way the chip's field constructors do.
func (p *Packet) Append(raw []byte) {
	p.appendRaw(raw)
}

// AppendPlain appends a field with no payload (e.g. PRODID, VERSTRING,
// RESET, READY).
func (p *Packet) AppendPlain(t FieldType) {
	p.appendRaw([]byte{byte(t)})
}

// AppendChannel appends a CHANNEL0/1/2 selector field.
func (p *Packet) AppendChannel(channel int) error {
	b, err := encodeChannel(channel)
	if err != nil {
		return err
	}
	p.appendRaw(b)
	return nil
}

// AppendSpchd appends an SPCHD field carrying up to 255 speech samples.
func (p *Packet) AppendSpchd(samples []int16) error {
	b, err := encodeSpchd(samples)
	if err != nil {
		return err
	}
	p.appendRaw(b)
	return nil
}

// AppendChand appends a CHAND field carrying bits compressed bits, stored
// in ceil(bits/8) bytes of data.
func (p *Packet) AppendChand(bits int, data []byte) error {
	b, err := encodeChand(bits, data)
	if err != nil {
		return err
	}
	p.appendRaw(b)
	return nil
}

// AppendRatet appends a RATET field selecting a rate table index.
func (p *Packet) AppendRatet(index uint8) {
	p.appendRaw(encodeRatet(index))
}

// AppendRatep appends a RATEP field carrying six custom rate control words.
func (p *Packet) AppendRatep(rcw [6]uint16) {
	p.appendRaw(encodeRatep(rcw))
}

// AppendInit appends an INIT field enabling/disabling the encoder/decoder.
func (p *Packet) AppendInit(encoder, decoder bool) {
	p.appendRaw(encodeInit(encoder, decoder))
}

// AppendCompand appends a COMPAND field.
func (p *Packet) AppendCompand(enabled, alaw bool) {
	p.appendRaw(encodeCompand(enabled, alaw))
}

// AppendParityMode appends a PARITYMODE field.
func (p *Packet) AppendParityMode(enabled bool) {
	p.appendRaw(encodeParityMode(enabled))
}

// AppendMode appends an ECMODE or DCMODE field.
func (p *Packet) AppendMode(t FieldType, nsE, cpS, cpE, dtxE, tdE, tsE bool) {
	p.appendRaw(encodeMode(t, nsE, cpS, cpE, dtxE, tdE, tsE))
}

// Finalize freezes the packet: if withParity and no parity field is
// present, one is appended; if a parity field is present but withParity is
// false, it is truncated. The header length is updated and, when a parity
// field is present, its XOR value is (re)computed.
func (p *Packet) Finalize(withParity bool) []byte {
	switch {
	case withParity && !p.hasParity:
		p.buf = append(p.buf, byte(PARITY), 0)
		p.hasParity = true
	case !withParity && p.hasParity:
		p.buf = p.buf[:len(p.buf)-parityFieldSize]
		p.hasParity = false
	}

	binary.BigEndian.PutUint16(p.buf[1:3], uint16(len(p.buf)-headerSize))

	if p.hasParity {
		p.buf[len(p.buf)-1] = xorRange(p.buf)
	}
	return p.buf
}

// CheckParity recomputes the packet's parity and reports whether it matches
// the stored value. It returns ErrNoParityField if the packet has no parity
// field; callers should check HasParity first.
func (p *Packet) CheckParity() (bool, error) {
	if !p.hasParity {
		return false, ErrNoParityField
	}
	return xorRange(p.buf) == p.buf[len(p.buf)-1], nil
}

// firstFieldType returns the type of the first field in the payload, or
// false if the payload is empty.
func (p *Packet) firstFieldType() (FieldType, bool) {
	payload := p.Payload()
	if len(payload) < 1 {
		return 0, false
	}
	return FieldType(payload[0]), true
}

// Channel returns the channel number the packet is for, if its first
// payload field is CHANNEL0/1/2, and false otherwise. A single packet can
// in principle carry fields for multiple channels; this method, like the
// original implementation, only ever looks at the first field.
func (p *Packet) Channel() (int, bool) {
	t, ok := p.firstFieldType()
	if !ok {
		return -1, false
	}
	ch := channelFromFieldType(t)
	if ch < 0 {
		return -1, false
	}
	return ch, true
}

// Samples returns the speech samples carried by a SPEECH packet whose first
// field is a channel selector followed by an SPCHD field.
func (p *Packet) Samples() ([]int16, error) {
	if p.Type() != Speech {
		return nil, ErrWrongType
	}
	payload := p.Payload()
	if _, ok := p.Channel(); !ok {
		return nil, ErrWrongChannel
	}
	if len(payload) < 2 || FieldType(payload[1]) != SPCHD {
		return nil, ErrWrongType
	}
	return decodeSpchd(payload[2:])
}

// Bits returns the AMBE-compressed bits carried by a CHANNEL packet whose
// first field is a channel selector followed by a CHAND field.
func (p *Packet) Bits() (bits int, data []byte, err error) {
	if p.Type() != Channel {
		return 0, nil, ErrWrongType
	}
	payload := p.Payload()
	if _, ok := p.Channel(); !ok {
		return 0, nil, ErrWrongChannel
	}
	if len(payload) < 2 || FieldType(payload[1]) != CHAND {
		return 0, nil, ErrWrongType
	}
	return decodeChand(payload[2:])
}

// StringValue decodes a PRODID/VERSTRING-style response: a single field
// whose type must equal want, carrying a string that is bounded by the
// field's declared payload length and terminated early by the first NUL
// byte, whichever comes first (neither field is guaranteed to be
// NUL-terminated on the wire).
func (p *Packet) StringValue(want FieldType) (string, error) {
	t, ok := p.firstFieldType()
	if !ok || t != want {
		return "", ErrWrongType
	}
	return decodeString(p.Payload()[1:]), nil
}
