package uri

import "testing"

func TestParseUsb(t *testing.T) {
	u, err := Parse("usb:/dev/ttyUSB0")
	if err != nil {
		t.Fatal(err)
	}
	if u.Type != USB || u.Authority != "/dev/ttyUSB0" {
		t.Fatalf("got %+v", u)
	}
}

func TestParseWs(t *testing.T) {
	u, err := Parse("WS:ambe.example.com:8443")
	if err != nil {
		t.Fatal(err)
	}
	if u.Type != WS || u.Authority != "ambe.example.com:8443" {
		t.Fatalf("got %+v", u)
	}
}

func TestParseUnknownScheme(t *testing.T) {
	u, err := Parse("foo:bar")
	if err != nil {
		t.Fatal(err)
	}
	if u.Type != Unknown {
		t.Fatalf("got %+v, want Unknown", u)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(""); err != ErrEmpty {
		t.Fatalf("got %v, want ErrEmpty", err)
	}
	if _, err := Parse("no-scheme"); err != ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}
