package peering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aprsd/internal/constants"
)

var ErrInvalidS2SLogin = errors.New("invalid s2s login line")

// S2SLogin is the aprsc-style server-to-server handshake line:
// `# aprsc 2.1.5 s2s <name> <passcode> <port>`.
type S2SLogin struct {
	Name     string
	Passcode int
	Port     int
}

func ParseS2SLogin(line string) (S2SLogin, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	// find the "s2s" keyword; the software/version prefix varies
	idx := -1
	for i, f := range fields {
		if strings.EqualFold(f, "s2s") {
			idx = i
			break
		}
	}
	if idx < 0 || len(fields) < idx+3 {
		return S2SLogin{}, ErrInvalidS2SLogin
	}

	name := fields[idx+1]
	passcode, err := strconv.Atoi(fields[idx+2])
	if err != nil {
		return S2SLogin{}, ErrInvalidS2SLogin
	}
	port := 0
	if len(fields) > idx+3 {
		port, err = strconv.Atoi(fields[idx+3])
		if err != nil {
			return S2SLogin{}, ErrInvalidS2SLogin
		}
	}
	return S2SLogin{Name: name, Passcode: passcode, Port: port}, nil
}

// FormatS2SLogin renders the login line this server sends on S2S links.
func FormatS2SLogin(serverName string, passcode, s2sPort int) string {
	return fmt.Sprintf("# %s %s s2s %s %d %d",
		constants.Software, constants.Version, serverName, passcode, s2sPort)
}
