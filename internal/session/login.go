package session

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidLogin = errors.New("invalid login line")

// Login is a parsed APRS-IS client login line:
// `user CALLSIGN pass PASSCODE [vers SOFTWARE VERSION] [filter EXPR]`.
type Login struct {
	Callsign string
	Passcode int
	Software string
	Version  string
	Filter   string
}

func ParseLogin(line string) (Login, error) {
	fields := strings.Fields(line)
	var l Login
	havePass := false

	for i := 0; i < len(fields); i++ {
		switch strings.ToLower(fields[i]) {
		case "user":
			if i+1 >= len(fields) {
				return Login{}, ErrInvalidLogin
			}
			i++
			l.Callsign = fields[i]
		case "pass":
			if i+1 >= len(fields) {
				return Login{}, ErrInvalidLogin
			}
			i++
			n, err := strconv.Atoi(fields[i])
			if err != nil {
				return Login{}, ErrInvalidLogin
			}
			l.Passcode = n
			havePass = true
		case "vers":
			if i+1 < len(fields) && !strings.EqualFold(fields[i+1], "filter") {
				i++
				l.Software = fields[i]
			}
			if i+1 < len(fields) && !strings.EqualFold(fields[i+1], "filter") {
				i++
				l.Version = fields[i]
			}
		case "filter":
			// the rest of the line is the filter expression
			l.Filter = strings.Join(fields[i+1:], " ")
			i = len(fields)
		}
	}

	if l.Callsign == "" || !havePass {
		return Login{}, ErrInvalidLogin
	}
	return l, nil
}
