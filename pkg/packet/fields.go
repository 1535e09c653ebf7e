package packet

import "encoding/binary"

// FieldType is the one-byte tag that precedes every field in a packet's
// payload. Values are fixed by the DVSI AMBE-3000/3003 datasheet.
type FieldType byte

const (
	SPCHD        FieldType = 0x00 // speech samples
	CHAND        FieldType = 0x01 // AMBE channel bits
	ECMODE       FieldType = 0x05 // encoder cmode flags
	DCMODE       FieldType = 0x06 // decoder cmode flags
	RATET        FieldType = 0x09 // rate table index
	RATEP        FieldType = 0x0a // custom rate control words
	INIT         FieldType = 0x0b // initialize encoder/decoder
	LOWPOWER     FieldType = 0x10
	CHANFMT      FieldType = 0x15
	SPCHFMT      FieldType = 0x16
	PARITY       FieldType = 0x2f // trailing per-packet parity
	PRODID       FieldType = 0x30
	VERSTRING    FieldType = 0x31
	COMPAND      FieldType = 0x32
	RESET        FieldType = 0x33
	RESETSOFTCFG FieldType = 0x34
	HALT         FieldType = 0x35
	GETCFG       FieldType = 0x36
	READCFG      FieldType = 0x37
	READY        FieldType = 0x39
	PARITYMODE   FieldType = 0x3f
	CHANNEL0     FieldType = 0x40
	CHANNEL1     FieldType = 0x41
	CHANNEL2     FieldType = 0x42
	DELAYNUS     FieldType = 0x49
	DELAYNNS     FieldType = 0x4a
	GAIN         FieldType = 0x4b
	RTSTHRESH    FieldType = 0x4e
)

// channelFieldType returns the CHANNELn field type for channel n (0..2).
func channelFieldType(channel int) (FieldType, error) {
	if channel < 0 || channel > 2 {
		return 0, ErrBadChannel
	}
	return CHANNEL0 + FieldType(channel), nil
}

// channelFromFieldType returns the channel number for a CHANNELn field
// type, or -1 if t is not one of CHANNEL0/1/2.
func channelFromFieldType(t FieldType) int {
	switch t {
	case CHANNEL0:
		return 0
	case CHANNEL1:
		return 1
	case CHANNEL2:
		return 2
	default:
		return -1
	}
}

// encodeChannel appends a CHANNELn field (no payload).
func encodeChannel(channel int) ([]byte, error) {
	t, err := channelFieldType(channel)
	if err != nil {
		return nil, err
	}
	return []byte{byte(t)}, nil
}

// encodeSpchd appends an SPCHD field: u8 sample count, then count 16-bit
// big-endian samples.
func encodeSpchd(samples []int16) ([]byte, error) {
	if len(samples) > 255 {
		return nil, ErrTooManySamples
	}
	buf := make([]byte, 2+2*len(samples))
	buf[0] = byte(SPCHD)
	buf[1] = byte(len(samples))
	for i, s := range samples {
		binary.BigEndian.PutUint16(buf[2+2*i:], uint16(s))
	}
	return buf, nil
}

// decodeSpchd decodes an SPCHD field's payload (the bytes following the
// field type byte) into samples.
func decodeSpchd(payload []byte) ([]int16, error) {
	if len(payload) < 1 {
		return nil, ErrTooShort
	}
	count := int(payload[0])
	if len(payload) < 1+2*count {
		return nil, ErrTooShort
	}
	out := make([]int16, count)
	for i := 0; i < count; i++ {
		out[i] = int16(binary.BigEndian.Uint16(payload[1+2*i:]))
	}
	return out, nil
}

func byteLength(bits int) int {
	return bits/8 + boolToInt(bits%8 != 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeChand appends a CHAND field: u8 bit count, then ceil(bits/8) raw bytes.
func encodeChand(bits int, data []byte) ([]byte, error) {
	if bits > 255 {
		return nil, ErrTooManyBits
	}
	n := byteLength(bits)
	if len(data) != n {
		return nil, ErrTooShort
	}
	buf := make([]byte, 2+n)
	buf[0] = byte(CHAND)
	buf[1] = byte(bits)
	copy(buf[2:], data)
	return buf, nil
}

// decodeChand decodes a CHAND field's payload into a bit count and its raw bytes.
func decodeChand(payload []byte) (bits int, data []byte, err error) {
	if len(payload) < 1 {
		return 0, nil, ErrTooShort
	}
	bits = int(payload[0])
	n := byteLength(bits)
	if len(payload) < 1+n {
		return 0, nil, ErrTooShort
	}
	return bits, payload[1 : 1+n], nil
}

// encodeRatet appends a RATET field: u8 table index.
func encodeRatet(index uint8) []byte {
	return []byte{byte(RATET), index}
}

// encodeRatep appends a RATEP field: six 16-bit big-endian rate control words.
func encodeRatep(rcw [6]uint16) []byte {
	buf := make([]byte, 1+12)
	buf[0] = byte(RATEP)
	for i, w := range rcw {
		binary.BigEndian.PutUint16(buf[1+2*i:], w)
	}
	return buf
}

func decodeRatep(payload []byte) ([6]uint16, error) {
	var rcw [6]uint16
	if len(payload) < 12 {
		return rcw, ErrTooShort
	}
	for i := range rcw {
		rcw[i] = binary.BigEndian.Uint16(payload[2*i:])
	}
	return rcw, nil
}

// encodeInit appends an INIT field: bit0 = encoder enable, bit1 = decoder enable.
func encodeInit(encoder, decoder bool) []byte {
	var params byte
	if encoder {
		params |= 1
	}
	if decoder {
		params |= 2
	}
	return []byte{byte(INIT), params}
}

// encodeCompand appends a COMPAND field: bit0 = enabled, bit1 = a-law.
func encodeCompand(enabled, alaw bool) []byte {
	var param byte
	if enabled {
		param |= 1
	}
	if alaw {
		param |= 2
	}
	return []byte{byte(COMPAND), param}
}

// encodeParityMode appends a PARITYMODE field: 0 = disabled, 1 = enabled.
func encodeParityMode(enabled bool) []byte {
	var mode byte
	if enabled {
		mode = 1
	}
	return []byte{byte(PARITYMODE), mode}
}

// modeParams packs the ECMODE/DCMODE single-byte parameter.
//
// The DVSI AMBE-3003 datasheet lays the byte out as: bit6 VAD/noise
// suppression enable, bit3 DTX enable, bit4 tone detection enable, bit7
// compand enable. Companding select (A-law/u-law) and tone send belong to
// the separate COMPAND field, not here; they are accepted as parameters for
// source compatibility with the original API and folded into the nearest
// matching bit rather than silently dropped (see DESIGN.md).
func modeParams(nsE, cpS, cpE, dtxE, tdE, tsE bool) byte {
	var p byte
	if nsE {
		p |= 1 << 6
	}
	if dtxE {
		p |= 1 << 3
	}
	if tdE || tsE {
		p |= 1 << 4
	}
	if cpE || cpS {
		p |= 1 << 7
	}
	return p
}

// encodeMode appends an ECMODE or DCMODE field.
func encodeMode(t FieldType, nsE, cpS, cpE, dtxE, tdE, tsE bool) []byte {
	return []byte{byte(t), modeParams(nsE, cpS, cpE, dtxE, tdE, tsE)}
}

// decodeStatus decodes a one-byte status field's payload. status == 0 means OK.
func decodeStatus(payload []byte) (byte, error) {
	if len(payload) < 1 {
		return 0, ErrTooShort
	}
	return payload[0], nil
}

// decodeString reads a string field's payload, stopping at the declared
// payload boundary or the first NUL byte, whichever comes first. Neither
// PRODID nor VERSTRING responses are guaranteed to be NUL-terminated (spec
// Open Question #2), so the declared field boundary is the hard bound.
func decodeString(payload []byte) string {
	for i, b := range payload {
		if b == 0 {
			return string(payload[:i])
		}
	}
	return string(payload)
}
