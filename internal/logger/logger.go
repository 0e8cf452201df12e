package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Event      string    `json:"event"`
	Kind       string    `json:"kind,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Callsign   string    `json:"callsign,omitempty"`
	Peer       string    `json:"peer,omitempty"`
	Size       int       `json:"size,omitempty"`
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Logger appends JSON event lines to a per-run log file under the
// user's home directory.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	logPath string
}

func NewLogger(serverName string) (*Logger, error) {
	logDir, err := getLogDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get log directory: %w", err)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", serverName, time.Now().Format("20060102-150405")))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:    file,
		enc:     json.NewEncoder(file),
		logPath: logPath,
	}, nil
}

func getLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".aprsd", "logs"), nil
}

func (l *Logger) Log(entry LogEntry) {
	if l == nil {
		return
	}
	entry.Timestamp = time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(entry)
}

func (l *Logger) Event(event, message string) {
	l.Log(LogEntry{Event: event, Message: message})
}

func (l *Logger) SessionEvent(event, kind, remoteAddr, callsign string) {
	l.Log(LogEntry{Event: event, Kind: kind, RemoteAddr: remoteAddr, Callsign: callsign})
}

func (l *Logger) PeerEvent(event, peer, errMsg string) {
	l.Log(LogEntry{Event: event, Kind: "peer", Peer: peer, Error: errMsg})
}

func (l *Logger) DropEvent(event, remoteAddr string, size int, errMsg string) {
	l.Log(LogEntry{Event: event, RemoteAddr: remoteAddr, Size: size, Error: errMsg})
}

func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.logPath
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
