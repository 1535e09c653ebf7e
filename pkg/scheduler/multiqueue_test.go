package scheduler

import (
	"testing"
	"time"

	"github.com/janakj/ambe/pkg/packet"
)

func waitSentCount(t *testing.T, dev *mockFifoDevice, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if dev.sentCount() >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d sends, got %d", want, dev.sentCount())
		case <-time.After(time.Millisecond):
		}
	}
}

// TestMultiQueueScheduler_PerQueueAdmissionBound exercises spec scenario 3:
// submitted_by_queue[q] must never exceed 2, so a third request to the same
// channel/type queue stays queued until an earlier one's response arrives.
func TestMultiQueueScheduler_PerQueueAdmissionBound(t *testing.T) {
	dev := &mockFifoDevice{channels: 3}
	s, err := NewMultiQueueScheduler(dev, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	results := make([]chan struct{}, 3)
	for i := range results {
		results[i] = make(chan struct{}, 1)
		ch := results[i]
		s.SubmitAsync(channelRequest(packet.Speech, 0, packet.SPCHD), func(resp *packet.Packet, err error) {
			ch <- struct{}{}
		})
	}

	waitSentCount(t, dev, 2)
	time.Sleep(20 * time.Millisecond)
	if n := dev.sentCount(); n != 2 {
		t.Fatalf("sent %d requests, want exactly 2 admitted before any response frees a slot", n)
	}

	dev.deliver(dev.sentAt(0))
	<-results[0]

	waitSentCount(t, dev, 3)

	dev.deliver(dev.sentAt(1))
	<-results[1]
	dev.deliver(dev.sentAt(2))
	<-results[2]

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}

// TestMultiQueueScheduler_DeviceQueueRequestsHaveNoChannelAffinity checks
// that channel-less requests (RESET, PARITYMODE, ...) are admitted via the
// device queue rather than any per-channel queue, and are not subject to
// the per-queue cap.
func TestMultiQueueScheduler_DeviceQueueRequestsHaveNoChannelAffinity(t *testing.T) {
	dev := &mockFifoDevice{channels: 1}
	s, err := NewMultiQueueScheduler(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		s.SubmitAsync(controlRequest(packet.RESET), func(resp *packet.Packet, err error) {
			done <- struct{}{}
		})
	}

	waitSentCount(t, dev, 3)
	for i := 0; i < 3; i++ {
		dev.deliver(dev.sentAt(i))
	}
	for i := 0; i < 3; i++ {
		<-done
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}

// TestMultiQueueScheduler_StopIsIdempotentAndDrains matches the
// idempotent-stop testable property: Stop on an already-stopped scheduler
// returns immediately, and every outstanding callback still ran exactly
// once.
func TestMultiQueueScheduler_StopIsIdempotentAndDrains(t *testing.T) {
	dev := &mockFifoDevice{channels: 1}
	dev.respond = func(req []byte) []byte { return req }

	s, err := NewMultiQueueScheduler(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	calls := 0
	done := make(chan struct{})
	s.SubmitAsync(controlRequest(packet.RESET), func(resp *packet.Packet, err error) {
		calls++
		close(done)
	})
	<-done

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("callback ran %d times, want 1", calls)
	}
}

func TestNewMultiQueueScheduler_RejectsTooManyChannels(t *testing.T) {
	dev := &mockFifoDevice{channels: 8}
	if _, err := NewMultiQueueScheduler(dev, 8); err == nil {
		t.Fatal("expected an error for an out-of-range channel count")
	}
}
