package transport

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestReadPacketResyncsOnGarbage(t *testing.T) {
	pr, pw := io.Pipe()
	fr := NewFramedReader(NewGoroutineReader(pr))

	want := []byte{0x61, 0x00, 0x02, 0x00, 0xaa, 0xbb}
	go func() {
		pw.Write([]byte{0xff, 0xfe, 0x00}) // garbage before the start byte
		pw.Write(want)
	}()

	cancel := make(chan struct{})
	got, err := fr.ReadPacket(cancel)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func TestReadPacketCancellation(t *testing.T) {
	pr, _ := io.Pipe()
	fr := NewFramedReader(NewGoroutineReader(pr))

	cancel := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := fr.ReadPacket(cancel)
		done <- err
	}()

	close(cancel)

	select {
	case err := <-done:
		if err != ErrCancelled {
			t.Fatalf("got %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadPacket did not honor cancellation in time")
	}
}

func TestWritePacketWritesAllBytes(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFramedWriter(&buf)
	pkt := []byte{0x61, 0x00, 0x01, 0x00, 0x30}
	if err := fw.WritePacket(pkt); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), pkt) {
		t.Fatalf("got % x, want % x", buf.Bytes(), pkt)
	}
}

func TestFramedRoundTrip(t *testing.T) {
	pr, pw := io.Pipe()
	fr := NewFramedReader(NewGoroutineReader(pr))
	fw := NewFramedWriter(pw)

	pkt := []byte{0x61, 0x00, 0x03, 0x01, 0x42, 0x09, 0x21}
	errCh := make(chan error, 1)
	go func() { errCh <- fw.WritePacket(pkt) }()

	got, err := fr.ReadPacket(make(chan struct{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pkt) {
		t.Fatalf("got % x, want % x", got, pkt)
	}
}
