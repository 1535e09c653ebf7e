package serialdev

import "testing"

func TestChannelCounts(t *testing.T) {
	if n := NewUsb3003("/dev/ttyUSB0").Channels(); n != 3 {
		t.Fatalf("Usb3003.Channels() = %d, want 3", n)
	}
	if n := NewUsb3000("/dev/ttyUSB0").Channels(); n != 1 {
		t.Fatalf("Usb3000.Channels() = %d, want 1", n)
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	d := NewUsb3003("/dev/ttyUSB0")
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() on unstarted device = %v, want nil", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop() = %v, want nil", err)
	}
}

func TestDefaultUsesParity(t *testing.T) {
	d := NewUsb3000("/dev/ttyUSB0")
	if !d.UsesParity() {
		t.Fatal("new device should default to parity enabled, matching chip reset default")
	}
	d.SetUsesParity(false)
	if d.UsesParity() {
		t.Fatal("SetUsesParity(false) did not take effect")
	}
}
