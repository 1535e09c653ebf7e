package api

import (
	"fmt"
	"strconv"
	"strings"
)

// RateKind distinguishes the two ways a chip's coding rate can be
// configured: a fixed table index (RATET) or six raw rate control words
// (RATEP).
type RateKind int

const (
	RateT RateKind = iota
	RateP
)

// Rate selects a coding rate for a channel, grounded on
// original_source/api.h's Rate union.
type Rate struct {
	Kind  RateKind
	Index uint8     // valid when Kind == RateT
	RCW   [6]uint16 // valid when Kind == RateP
}

// NewRateT returns a table-index rate.
func NewRateT(index uint8) Rate {
	return Rate{Kind: RateT, Index: index}
}

// NewRateP returns a custom rate control word rate.
func NewRateP(rcw [6]uint16) Rate {
	return Rate{Kind: RateP, RCW: rcw}
}

// ParseRate parses a rate the same way Rate::Rate(const char*) does: try it
// as a single decimal or 0x-prefixed hex table index first (0..255); if
// that fails, require exactly six comma-separated decimal/hex words, each
// 0..65535.
func ParseRate(s string) (Rate, error) {
	if index, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16); err == nil && index <= 255 {
		return NewRateT(uint8(index)), nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return Rate{}, ErrInvalidRate
	}
	var rcw [6]uint16
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 32)
		if err != nil || v > 65535 {
			return Rate{}, ErrInvalidRate
		}
		rcw[i] = uint16(v)
	}
	return NewRateP(rcw), nil
}

// String renders the rate the way ambe::operator<<(ostream&, const Rate&)
// does: a bare decimal index, or six 0x-prefixed 4-digit hex words.
func (r Rate) String() string {
	switch r.Kind {
	case RateT:
		return strconv.Itoa(int(r.Index))
	case RateP:
		words := make([]string, 6)
		for i, w := range r.RCW {
			words[i] = fmt.Sprintf("0x%04x", w)
		}
		return strings.Join(words, ",")
	default:
		return ""
	}
}
