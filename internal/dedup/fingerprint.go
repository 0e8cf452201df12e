// Package dedup provides packet fingerprinting and the time-bounded
// duplicate cache shared by all sessions.
package dedup

import (
	"github.com/cespare/xxhash/v2"

	"aprsd/internal/aprs"
)

// Fingerprint derives a packet's dedup key from source, destination and
// payload. The path is deliberately excluded: the same packet arriving via
// different digipeater or peer paths must still be recognized as one event.
func Fingerprint(p *aprs.Packet) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(p.Source.String())
	_, _ = h.Write([]byte{'>'})
	_, _ = h.WriteString(p.Dest.String())
	_, _ = h.Write([]byte{':'})
	_, _ = h.WriteString(p.Payload)
	return h.Sum64()
}
