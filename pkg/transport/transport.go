// Package transport turns a byte stream into a sequence of whole AMBE
// packets and back, with cancelable blocking reads.
package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// ErrCancelled is returned by ReadPacket when the cancel channel closes
// before a whole packet has been read.
var ErrCancelled = errors.New("transport: read cancelled")

const (
	startByte  = 0x61
	headerSize = 4
)

// CancelableReader reads bytes from a source, returning early with
// ErrCancelled if cancel closes before any data is available. Devices
// that cannot interrupt their own blocking Read (most serial port and
// socket libraries) get this for free from GoroutineReader below.
type CancelableReader interface {
	ReadCancelable(buf []byte, cancel <-chan struct{}) (int, error)
}

// GoroutineReader adapts a plain io.Reader into a CancelableReader the way
// the teacher's uartTransaction does: spin a goroutine to perform the
// blocking read and select between its result and the cancel signal. The
// goroutine is not killed if cancel fires first; it exits on its own once
// the underlying Read call returns, which happens as soon as the caller
// closes the underlying stream (Stop on the owning device does this).
type GoroutineReader struct {
	r io.Reader
}

// NewGoroutineReader wraps r as a CancelableReader.
func NewGoroutineReader(r io.Reader) *GoroutineReader {
	return &GoroutineReader{r: r}
}

type readResult struct {
	n   int
	err error
}

func (g *GoroutineReader) ReadCancelable(buf []byte, cancel <-chan struct{}) (int, error) {
	ch := make(chan readResult, 1)
	go func() {
		n, err := g.r.Read(buf)
		ch <- readResult{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-cancel:
		return 0, ErrCancelled
	}
}

// FramedReader reassembles whole packets from a cancelable byte source.
type FramedReader struct {
	src CancelableReader
}

// NewFramedReader wraps src.
func NewFramedReader(src CancelableReader) *FramedReader {
	return &FramedReader{src: src}
}

// readFull reads exactly len(buf) bytes, appending into buf via repeated
// ReadCancelable calls (a single call may return fewer bytes than
// requested).
func (f *FramedReader) readFull(buf []byte, cancel <-chan struct{}) error {
	for read := 0; read < len(buf); {
		n, err := f.src.ReadCancelable(buf[read:], cancel)
		if n > 0 {
			read += n
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrNoProgress
		}
	}
	return nil
}

// ReadPacket reads one whole framed packet, resyncing on garbage: if a byte
// other than the start byte appears while a header is expected, it is
// discarded and the search for a start byte continues. Returns
// ErrCancelled if cancel closes mid-read.
func (f *FramedReader) ReadPacket(cancel <-chan struct{}) ([]byte, error) {
	one := make([]byte, 1)
	for {
		if err := f.readFull(one, cancel); err != nil {
			return nil, err
		}
		if one[0] == startByte {
			break
		}
	}

	header := make([]byte, headerSize)
	header[0] = startByte
	if err := f.readFull(header[1:], cancel); err != nil {
		return nil, err
	}

	length := int(binary.BigEndian.Uint16(header[1:3]))
	packet := make([]byte, headerSize+length)
	copy(packet, header)
	if err := f.readFull(packet[headerSize:], cancel); err != nil {
		return nil, err
	}
	return packet, nil
}

// FramedWriter writes whole packets to a byte sink. WritePacket holds a
// mutex for the whole write, so concurrent calls never interleave their
// bytes; the scheduler layer additionally funnels writes through a single
// writer (spec.md §5).
type FramedWriter struct {
	dst io.Writer
	mu  sync.Mutex
}

// NewFramedWriter wraps dst.
func NewFramedWriter(dst io.Writer) *FramedWriter {
	return &FramedWriter{dst: dst}
}

// WritePacket writes all of the given bytes atomically with respect to
// other WritePacket calls.
func (f *FramedWriter) WritePacket(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for written := 0; written < len(b); {
		n, err := f.dst.Write(b[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		written += n
	}
	return nil
}
