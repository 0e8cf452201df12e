package types

import "time"

type PeerInfo struct {
	Name          string     `json:"name"`
	Host          string     `json:"host"`
	Port          int        `json:"port"`
	State         string     `json:"state"`
	LastConnect   *time.Time `json:"last_connect,omitempty"`
	NextRetry     *time.Time `json:"next_retry,omitempty"`
	PacketsRx     uint64     `json:"packets_rx"`
	PacketsTx     uint64     `json:"packets_tx"`
	BytesRx       uint64     `json:"bytes_rx"`
	BytesTx       uint64     `json:"bytes_tx"`
	ConnectErrors uint64     `json:"connect_errors"`
	LastError     string     `json:"last_error,omitempty"`
}
