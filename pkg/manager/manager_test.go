package manager

import "testing"

func TestAcquireReleaseChannel(t *testing.T) {
	m := New()
	if err := m.Add("dev1", nil, nil, 2); err != nil {
		t.Fatal(err)
	}

	ch, err := m.AcquireChannel("dev1")
	if err != nil {
		t.Fatal(err)
	}
	if ch != 0 {
		t.Fatalf("got %d, want 0", ch)
	}

	ch2, err := m.AcquireChannel("dev1")
	if err != nil {
		t.Fatal(err)
	}
	if ch2 != 1 {
		t.Fatalf("got %d, want 1", ch2)
	}

	if _, err := m.AcquireChannel("dev1"); err != ErrNoFreeChannel {
		t.Fatalf("got %v, want ErrNoFreeChannel", err)
	}

	if err := m.ReleaseChannel("dev1", 0); err != nil {
		t.Fatal(err)
	}
	ch3, err := m.AcquireChannel("dev1")
	if err != nil {
		t.Fatal(err)
	}
	if ch3 != 0 {
		t.Fatalf("got %d, want 0 after release", ch3)
	}

	if _, err := m.AcquireChannel("missing"); err != ErrUnknownDevice {
		t.Fatalf("got %v, want ErrUnknownDevice", err)
	}
}

func TestReleaseChannelErrors(t *testing.T) {
	m := New()
	if err := m.Add("dev1", nil, nil, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.ReleaseChannel("missing", 0); err != ErrUnknownDevice {
		t.Fatalf("got %v, want ErrUnknownDevice", err)
	}
	if err := m.ReleaseChannel("dev1", 5); err != ErrBadChannel {
		t.Fatalf("got %v, want ErrBadChannel", err)
	}
}

func TestAddDuplicate(t *testing.T) {
	m := New()
	if err := m.Add("dev1", nil, nil, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Add("dev1", nil, nil, 1); err != ErrDeviceExists {
		t.Fatalf("got %v, want ErrDeviceExists", err)
	}
}
