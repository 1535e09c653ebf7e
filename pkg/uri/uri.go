// Package uri parses the tiny <scheme>:<authority> device addresses used
// throughout the codebase to name a local serial port or a remote AMBE
// server, e.g. "usb:/dev/ttyUSB0" or "ws:ambe.example.com:8443".
package uri

import (
	"errors"
	"strings"
)

// ErrEmpty is returned by Parse for an empty input string.
var ErrEmpty = errors.New("uri: URI string must not be empty")

// ErrMalformed is returned by Parse when the input has no ':' separator.
var ErrMalformed = errors.New("uri: expected <scheme>:<authority>")

// Type classifies the URI's scheme.
type Type int

const (
	Unknown Type = iota
	USB
	WS
)

// URI is a parsed <scheme>:<authority> address. Scheme retains the input's
// original case; Type is derived from its lowercased form.
type URI struct {
	Type      Type
	Scheme    string
	Authority string
}

// Parse splits uri at its first ':' into scheme and authority, exactly as
// original_source/uri.cc does (the authority may itself contain colons,
// e.g. a host:port pair, so only the first separator is significant).
func Parse(uri string) (URI, error) {
	if len(uri) == 0 {
		return URI{}, ErrEmpty
	}
	i := strings.IndexByte(uri, ':')
	if i < 0 {
		return URI{}, ErrMalformed
	}
	scheme := uri[:i]
	authority := uri[i+1:]

	switch strings.ToLower(scheme) {
	case "usb":
		return URI{Type: USB, Scheme: scheme, Authority: authority}, nil
	case "ws":
		return URI{Type: WS, Scheme: scheme, Authority: authority}, nil
	default:
		return URI{Type: Unknown, Scheme: scheme, Authority: authority}, nil
	}
}
