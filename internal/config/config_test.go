package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFull(t *testing.T) {
	data := []byte(`
server_name = "SRV1"
user_port = 1234
server_port = 5678
s2s_port = 14579
dedup_window_secs = 45

[uplink]
host = "rotate.aprs2.net"
port = 14580
callsign = "N0CALL"
passcode = 13023

[[s2s_peers]]
host = "peer1.aprs.net"
port = 14580
passcode = 12345
peer_name = "PEER1"

[[s2s_peers]]
host = "peer2.aprs.net"
port = 14580
passcode = 54321
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "SRV1", cfg.ServerName)
	assert.Equal(t, 1234, cfg.UserPort)
	assert.Equal(t, 5678, cfg.ServerPort)
	assert.Equal(t, 45, cfg.DedupWindowSecs)

	require.NotNil(t, cfg.Uplink)
	assert.Equal(t, "rotate.aprs2.net", cfg.Uplink.Host)
	assert.Equal(t, 13023, cfg.Uplink.Passcode)

	require.Len(t, cfg.S2SPeers, 2)
	assert.Equal(t, "PEER1", cfg.S2SPeers[0].PeerName)
	assert.Empty(t, cfg.S2SPeers[1].PeerName)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`server_name = "SRV1"`))
	require.NoError(t, err)
	assert.Equal(t, 14580, cfg.UserPort)
	assert.Equal(t, 10152, cfg.ServerPort)
	assert.Equal(t, 14579, cfg.S2SPort)
	assert.Equal(t, 14501, cfg.DashboardPort)
	assert.Equal(t, 30, cfg.DedupWindowSecs)
	assert.Nil(t, cfg.Uplink)
	assert.Empty(t, cfg.S2SPeers)
}

func TestValidateErrors(t *testing.T) {
	cases := []string{
		``,                                       // missing server name
		`server_name = "WAY-TOO-LONG-NAME"`,      // not callsign-like
		"server_name = \"SRV1\"\nuser_port = 0",  // port range
		"server_name = \"SRV1\"\ndedup_window_secs = -1",
		"server_name = \"SRV1\"\n[uplink]\nhost = \"\"\nport = 14580\ncallsign = \"N0CALL\"",
		"server_name = \"SRV1\"\n[[s2s_peers]]\nhost = \"\"\nport = 14580\npasscode = 1",
	}
	for _, data := range cases {
		_, err := Parse([]byte(data))
		assert.Error(t, err, "config %q", data)
	}
}
