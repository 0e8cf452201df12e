package aprs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacket(t *testing.T) {
	p, err := ParsePacket("N0CALL-5>APRS,TCPIP*:status test")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL", p.Source.Base)
	assert.Equal(t, 5, p.Source.SSID)
	assert.Equal(t, "APRS", p.Dest.Base)
	assert.Equal(t, []string{"TCPIP*"}, p.Path)
	assert.Equal(t, "status test", p.Payload)
}

func TestParsePacketNoPath(t *testing.T) {
	p, err := ParsePacket("CALL>DEST:msg")
	require.NoError(t, err)
	assert.Empty(t, p.Path)
	assert.Equal(t, "msg", p.Payload)
}

func TestParsePacketLowercaseNormalized(t *testing.T) {
	p, err := ParsePacket("n0call>aprs:hi")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL", p.Source.Base)
	assert.Equal(t, "APRS", p.Dest.Base)
}

func TestParsePacketPayloadWithColons(t *testing.T) {
	p, err := ParsePacket("N0CALL>APRS,WIDE1-1::CQ       :hello:world")
	require.NoError(t, err)
	assert.Equal(t, ":CQ       :hello:world", p.Payload)
}

func TestParsePacketErrors(t *testing.T) {
	cases := map[string]error{
		"":                          ErrMalformedPacket,
		"N0CALL payload":            ErrMalformedPacket,
		":no source":                ErrMalformedPacket,
		"N0CALL>:payload":           ErrMalformedPacket,
		"TOOLONGCALL>APRS:x":        ErrInvalidCallsign,
		"N0CALL-16>APRS:x":          ErrInvalidCallsign,
		"N0!A>APRS:x":               ErrInvalidCallsign,
		"N0CALL>APRS,BAD PATH:x":    ErrMalformedPacket,
		"N0CALL>APRS,A,B,C,D,E,F,G,H,I:x": ErrPathTooLong,
	}
	for line, want := range cases {
		_, err := ParsePacket(line)
		assert.ErrorIs(t, err, want, "line %q", line)
	}
}

func TestRoundTrip(t *testing.T) {
	lines := []string{
		"N0CALL>APRS:>status",
		"N0CALL-5>APRS,TCPIP*:status test",
		"N0CALL-9>APDW16,WIDE1-1,WIDE2-2:!4903.50N/07201.75W>Test",
		"K1ABC>APRS,TCPIP*,QAC,SERVER1:payload with spaces",
		"CALL>DEST:",
	}
	for _, line := range lines {
		p, err := ParsePacket(line)
		require.NoError(t, err, line)
		assert.Equal(t, line, p.String(), "round trip of %q", line)
	}
}

func TestParseCallsignSSIDZero(t *testing.T) {
	c, err := ParseCallsign("N0CALL-0")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL", c.String())
}

func TestPathContains(t *testing.T) {
	p, err := ParsePacket("N0CALL>APRS,TCPIP*,SRV1,SRV2*:x")
	require.NoError(t, err)
	assert.True(t, p.PathContains("SRV1"))
	assert.True(t, p.PathContains("srv2"), "used-marker and case are ignored")
	assert.False(t, p.PathContains("SRV3"))
}

func TestMarkPath(t *testing.T) {
	p, err := ParsePacket("N0CALL>APRS,TCPIP*:x")
	require.NoError(t, err)

	m, err := p.MarkPath("SRV1")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL>APRS,TCPIP*,SRV1:x", m.String())
	assert.Equal(t, []string{"TCPIP*"}, p.Path, "original packet untouched")

	// marking twice is a no-op
	m2, err := m.MarkPath("SRV1")
	require.NoError(t, err)
	assert.Equal(t, m.String(), m2.String())
}

func TestMarkPathFull(t *testing.T) {
	p, err := ParsePacket("N0CALL>APRS,A,B,C,D,E,F,G,H:x")
	require.NoError(t, err)
	_, err = p.MarkPath("SRV1")
	assert.ErrorIs(t, err, ErrPathTooLong)
}

func TestExtractPosition(t *testing.T) {
	lat, lon, ok := ExtractPosition("!4903.50N/07201.75W>Test")
	require.True(t, ok)
	assert.InDelta(t, 49.0583, lat, 0.01)
	assert.InDelta(t, -72.0291, lon, 0.01)

	_, _, ok = ExtractPosition(">just a status")
	assert.False(t, ok)
	_, _, ok = ExtractPosition("!short")
	assert.False(t, ok)
}

func TestExtractMessageAddressee(t *testing.T) {
	assert.Equal(t, "DEST", ExtractMessageAddressee(":DEST     :Hello"))
	assert.Equal(t, "N0CALL-9", ExtractMessageAddressee(":N0CALL-9 :ack1"))
	assert.Equal(t, "", ExtractMessageAddressee("plain payload"))
	assert.Equal(t, "", ExtractMessageAddressee(":         :no dest"))
}
