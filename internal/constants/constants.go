package constants

import "time"

// Software identification, sent in login lines and the S2S handshake.
const (
	Software = "aprsd"
	Version  = "1.0.0"
)

// Network defaults
const (
	DefaultUserPort      = 14580
	DefaultServerPort    = 10152
	DefaultS2SPort       = 14579
	DefaultDashboardPort = 14501
	MinPort              = 1
	MaxPort              = 65535
	DialTimeout          = 10 * time.Second
	WriteTimeout         = 10 * time.Second
	MaxClients           = 512
)

// Session settings
const (
	LoginTimeout     = 30 * time.Second
	WriteQueueSize   = 256
	MaxBadPackets    = 10
	MaxLineLength    = 1024
	MaxPathElements  = 8
	ReadOnlyPasscode = -1
)

// S2S peering
const (
	HeartbeatInterval = 60 * time.Second
	PeerIdleTimeout   = 180 * time.Second
	HandshakeTimeout  = 15 * time.Second
	BackoffMin        = 1 * time.Second
	BackoffMax        = 60 * time.Second
	StableConnection  = 60 * time.Second
)

// Dedup cache
const (
	DefaultDedupWindow = 30 * time.Second
	DedupSweepInterval = 15 * time.Second
)

// Dashboard
const (
	DashboardWSReadBuffer    = 4096
	DashboardWSWriteBuffer   = 4096
	DashboardPushInterval    = 2 * time.Second
	DashboardMaxPackets      = 100
	DashboardShutdownTimeout = 5 * time.Second
)

// Protocol lines sent to clients and peers
const (
	MsgInvalidLogin    = "# invalid login"
	MsgInvalidPasscode = "# invalid passcode"
	MsgLoginTimeout    = "# login timeout"
	MsgInvalidFilter   = "# invalid filter"
	MsgFilterSet       = "# filter set"
	MsgKeepalive       = "# keepalive"
	MsgS2SRejected     = "# s2s login rejected"
)
