package peering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS2SLogin(t *testing.T) {
	l, err := ParseS2SLogin("# aprsc 2.1.5 s2s PEER1 12345 14579")
	require.NoError(t, err)
	assert.Equal(t, "PEER1", l.Name)
	assert.Equal(t, 12345, l.Passcode)
	assert.Equal(t, 14579, l.Port)
}

func TestParseS2SLoginOwnFormat(t *testing.T) {
	line := FormatS2SLogin("SRV1", 999, 14579)
	l, err := ParseS2SLogin(line)
	require.NoError(t, err)
	assert.Equal(t, "SRV1", l.Name)
	assert.Equal(t, 999, l.Passcode)
	assert.Equal(t, 14579, l.Port)
}

func TestParseS2SLoginNoPort(t *testing.T) {
	l, err := ParseS2SLogin("# something 1.0 s2s NAME 42")
	require.NoError(t, err)
	assert.Equal(t, 42, l.Passcode)
	assert.Equal(t, 0, l.Port)
}

func TestParseS2SLoginErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"# aprsc 2.1.5",
		"# aprsc 2.1.5 s2s NAME",
		"# aprsc 2.1.5 s2s NAME notanumber",
		"user N0CALL pass 13023",
	} {
		_, err := ParseS2SLogin(line)
		assert.ErrorIs(t, err, ErrInvalidS2SLogin, "line %q", line)
	}
}
