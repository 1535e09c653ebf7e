package api

// SampleRate is the fixed PCM sample rate every AMBE chip operates at.
const SampleRate = 8000

// FrameDurationMs is the fixed frame duration, matching original_source's
// FRAME_DURATION.
const FrameDurationMs = 20

// FrameSize is the number of 16-bit samples in one AudioFrame:
// SampleRate/1000*FrameDurationMs.
const FrameSize = SampleRate / 1000 * FrameDurationMs

// AudioFrame is one 20ms frame of linear 16-bit PCM, big-endian on the
// wire (the codec field encodes/decodes the endianness; in memory it is
// plain Go int16).
type AudioFrame [FrameSize]int16

// AmbeFrame is one frame of AMBE-compressed bits, corresponding to a single
// AudioFrame. Bits is the number of significant bits in Data; Data is
// ceil(Bits/8) bytes.
type AmbeFrame struct {
	Bits int
	Data []byte
}
