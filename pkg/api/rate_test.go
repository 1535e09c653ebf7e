package api

import "testing"

func TestParseRate_TableIndex(t *testing.T) {
	r, err := ParseRate("33")
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != RateT || r.Index != 33 {
		t.Fatalf("got %+v, want RateT index 33", r)
	}
	if r.String() != "33" {
		t.Fatalf("String() = %q, want 33", r.String())
	}
}

func TestParseRate_CustomWords(t *testing.T) {
	r, err := ParseRate("0x0558,0x086b,0x1030,0x0000,0x0000,0x0190")
	if err != nil {
		t.Fatal(err)
	}
	want := [6]uint16{0x0558, 0x086b, 0x1030, 0x0000, 0x0000, 0x0190}
	if r.Kind != RateP || r.RCW != want {
		t.Fatalf("got %+v, want RateP %v", r, want)
	}
}

func TestParseRate_Invalid(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "0x1ffff,0,0,0,0,0", "not-a-rate"} {
		if _, err := ParseRate(s); err == nil {
			t.Fatalf("ParseRate(%q) accepted invalid input", s)
		}
	}
}
