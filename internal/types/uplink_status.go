package types

import "time"

type UplinkStatus struct {
	Host          string     `json:"host"`
	Port          int        `json:"port"`
	Callsign      string     `json:"callsign"`
	Connected     bool       `json:"connected"`
	LastConnect   *time.Time `json:"last_connect,omitempty"`
	PacketsRx     uint64     `json:"packets_rx"`
	PacketsTx     uint64     `json:"packets_tx"`
	BytesRx       uint64     `json:"bytes_rx"`
	BytesTx       uint64     `json:"bytes_tx"`
	ConnectErrors uint64     `json:"connect_errors"`
	ReadErrors    uint64     `json:"read_errors"`
	WriteErrors   uint64     `json:"write_errors"`
	LastError     string     `json:"last_error,omitempty"`
	LastRxTime    *time.Time `json:"last_rx_time,omitempty"`
	LastTxTime    *time.Time `json:"last_tx_time,omitempty"`
}
