// Package aprs implements the TNC2 text packet format used by APRS-IS
// (`SOURCE>DEST,PATH:PAYLOAD`), callsign validation, the APRS-IS passcode
// algorithm, and the path provenance markers used for S2S loop detection.
package aprs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aprsd/internal/constants"
)

var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrInvalidCallsign = errors.New("invalid callsign")
	ErrPathTooLong     = errors.New("path too long")
)

// Callsign is a station identifier: 1-6 alphanumeric characters plus an
// optional SSID 0-15. SSID 0 serializes without a suffix, so N0CALL-0 and
// N0CALL are the same station.
type Callsign struct {
	Base string
	SSID int
}

func ParseCallsign(s string) (Callsign, error) {
	base := s
	ssid := 0
	if i := strings.IndexByte(s, '-'); i >= 0 {
		base = s[:i]
		n, err := strconv.Atoi(s[i+1:])
		if err != nil || n < 0 || n > 15 {
			return Callsign{}, fmt.Errorf("%w: bad SSID in %q", ErrInvalidCallsign, s)
		}
		ssid = n
	}
	if len(base) < 1 || len(base) > 6 {
		return Callsign{}, fmt.Errorf("%w: %q", ErrInvalidCallsign, s)
	}
	for i := 0; i < len(base); i++ {
		c := base[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return Callsign{}, fmt.Errorf("%w: %q", ErrInvalidCallsign, s)
		}
	}
	return Callsign{Base: strings.ToUpper(base), SSID: ssid}, nil
}

func (c Callsign) String() string {
	if c.SSID == 0 {
		return c.Base
	}
	return c.Base + "-" + strconv.Itoa(c.SSID)
}

// Packet is one parsed TNC2 line. Path elements are kept verbatim
// (including `*` used-markers and q-constructs) so serialization is the
// exact inverse of parsing. The payload is opaque.
type Packet struct {
	Source  Callsign
	Dest    Callsign
	Path    []string
	Payload string
}

// ParsePacket parses a single TNC2 line. The caller strips line endings.
func ParsePacket(line string) (*Packet, error) {
	gt := strings.IndexByte(line, '>')
	if gt <= 0 {
		return nil, fmt.Errorf("%w: missing source", ErrMalformedPacket)
	}
	colon := strings.IndexByte(line[gt+1:], ':')
	if colon < 0 {
		return nil, fmt.Errorf("%w: missing payload separator", ErrMalformedPacket)
	}
	colon += gt + 1

	src, err := ParseCallsign(line[:gt])
	if err != nil {
		return nil, err
	}

	header := line[gt+1 : colon]
	if header == "" {
		return nil, fmt.Errorf("%w: empty destination", ErrMalformedPacket)
	}
	fields := strings.Split(header, ",")
	dest, err := ParseCallsign(fields[0])
	if err != nil {
		return nil, err
	}

	path := fields[1:]
	if len(path) > constants.MaxPathElements {
		return nil, fmt.Errorf("%w: %d elements", ErrPathTooLong, len(path))
	}
	for _, el := range path {
		if !validPathElement(el) {
			return nil, fmt.Errorf("%w: bad path element %q", ErrMalformedPacket, el)
		}
	}

	p := &Packet{
		Source:  src,
		Dest:    dest,
		Payload: line[colon+1:],
	}
	if len(path) > 0 {
		p.Path = append(p.Path, path...)
	}
	return p, nil
}

// validPathElement accepts digipeater calls (with optional SSID and `*`
// used-marker), q-constructs and server names. It only rejects what would
// break reserialization.
func validPathElement(el string) bool {
	if el == "" || len(el) > 12 {
		return false
	}
	for i := 0; i < len(el); i++ {
		c := el[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '*':
		default:
			return false
		}
	}
	return true
}

func (p *Packet) String() string {
	var b strings.Builder
	b.WriteString(p.Source.String())
	b.WriteByte('>')
	b.WriteString(p.Dest.String())
	for _, el := range p.Path {
		b.WriteByte(',')
		b.WriteString(el)
	}
	b.WriteByte(':')
	b.WriteString(p.Payload)
	return b.String()
}

// PathContains reports whether the path already carries the given server
// or peer name, ignoring a trailing `*` used-marker and letter case. This
// is the loop-detection primitive shared by the router and the peering
// layer: a packet whose path names us has been relayed by us before.
func (p *Packet) PathContains(name string) bool {
	for _, el := range p.Path {
		el = strings.TrimSuffix(el, "*")
		if strings.EqualFold(el, name) {
			return true
		}
	}
	return false
}

// MarkPath returns a copy of the packet with the local server name
// appended to the path, marking provenance on peer-bound copies. It
// returns ErrPathTooLong when the path is already at its bound; the
// caller must not forward such a copy to peers, since it would travel
// unmarked.
func (p *Packet) MarkPath(server string) (*Packet, error) {
	if p.PathContains(server) {
		return p, nil
	}
	if len(p.Path) >= constants.MaxPathElements {
		return nil, ErrPathTooLong
	}
	marked := &Packet{
		Source:  p.Source,
		Dest:    p.Dest,
		Path:    make([]string, 0, len(p.Path)+1),
		Payload: p.Payload,
	}
	marked.Path = append(marked.Path, p.Path...)
	marked.Path = append(marked.Path, server)
	return marked, nil
}

// Type returns the APRS data type identifier (the first payload byte),
// or 0 for an empty payload.
func (p *Packet) Type() byte {
	if len(p.Payload) == 0 {
		return 0
	}
	return p.Payload[0]
}
