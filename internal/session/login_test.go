package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogin(t *testing.T) {
	l, err := ParseLogin("user N0CALL-5 pass 13023 vers aprsd 1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL-5", l.Callsign)
	assert.Equal(t, 13023, l.Passcode)
	assert.Equal(t, "aprsd", l.Software)
	assert.Equal(t, "1.0.0", l.Version)
	assert.Empty(t, l.Filter)
}

func TestParseLoginMinimal(t *testing.T) {
	l, err := ParseLogin("user CALL pass -1")
	require.NoError(t, err)
	assert.Equal(t, "CALL", l.Callsign)
	assert.Equal(t, -1, l.Passcode)
}

func TestParseLoginWithFilter(t *testing.T) {
	l, err := ParseLogin("user N0CALL pass 13023 vers sw 1.0 filter r/60/25/100 p/K1")
	require.NoError(t, err)
	assert.Equal(t, "r/60/25/100 p/K1", l.Filter)
	assert.Equal(t, "sw", l.Software)
	assert.Equal(t, "1.0", l.Version)
}

func TestParseLoginFilterWithoutVersion(t *testing.T) {
	l, err := ParseLogin("user N0CALL pass 13023 vers onlysw filter p/K1")
	require.NoError(t, err)
	assert.Equal(t, "onlysw", l.Software)
	assert.Empty(t, l.Version)
	assert.Equal(t, "p/K1", l.Filter)
}

func TestParseLoginCaseInsensitiveKeywords(t *testing.T) {
	l, err := ParseLogin("USER n0call PASS 13023")
	require.NoError(t, err)
	assert.Equal(t, "n0call", l.Callsign)
}

func TestParseLoginErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"user N0CALL",
		"pass 13023",
		"user N0CALL pass abc",
		"user pass 13023",
	} {
		_, err := ParseLogin(line)
		assert.ErrorIs(t, err, ErrInvalidLogin, "line %q", line)
	}
}
