package types

import "time"

type ServerStatus struct {
	ServerName       string  `json:"server_name"`
	Software         string  `json:"software"`
	Version          string  `json:"version"`
	UptimeSeconds    uint64  `json:"uptime_seconds"`
	Clients          int     `json:"clients"`
	PeersConnected   int     `json:"peers_connected"`
	PeersConfigured  int     `json:"peers_configured"`
	PacketsRx        uint64  `json:"packets_rx"`
	PacketsTx        uint64  `json:"packets_tx"`
	PacketsDuplicate uint64  `json:"packets_duplicate"`
	PacketsLoop      uint64  `json:"packets_loop"`
	PacketsInvalid   uint64  `json:"packets_invalid"`
	PacketsPerSecond float64 `json:"packets_per_second"`
	DedupCacheSize   int     `json:"dedup_cache_size"`
}

type ClientInfo struct {
	ID          string    `json:"id"`
	Callsign    string    `json:"callsign"`
	RemoteAddr  string    `json:"remote_addr"`
	Verified    bool      `json:"verified"`
	Filter      string    `json:"filter,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	PacketsRx   uint64    `json:"packets_rx"`
	PacketsTx   uint64    `json:"packets_tx"`
	BytesRx     uint64    `json:"bytes_rx"`
	BytesTx     uint64    `json:"bytes_tx"`
}
