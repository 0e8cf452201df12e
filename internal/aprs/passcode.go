package aprs

import (
	"strings"

	"aprsd/internal/constants"
)

// Passcode computes the APRS-IS login checksum for a callsign: strip the
// SSID, uppercase, XOR successive bytes into a 0x73e2-seeded accumulator
// with alternating high/low shifts, mask to 15 bits.
func Passcode(callsign string) int {
	cs := strings.ToUpper(callsign)
	if i := strings.IndexByte(cs, '-'); i >= 0 {
		cs = cs[:i]
	}
	hash := 0x73e2
	for i := 0; i < len(cs); i++ {
		if i&1 == 0 {
			hash ^= int(cs[i]) << 8
		} else {
			hash ^= int(cs[i])
		}
	}
	return hash & 0x7fff
}

// VerifyPasscode reports whether a passcode authenticates a callsign.
// The reserved value -1 always verifies and grants receive-only access.
// This is a local computation; no external service is consulted.
func VerifyPasscode(callsign string, passcode int) bool {
	if passcode == constants.ReadOnlyPasscode {
		return true
	}
	return passcode == Passcode(callsign)
}
