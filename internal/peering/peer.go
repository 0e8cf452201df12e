// Package peering maintains the S2S mesh: one Peer descriptor per
// configured peer, live sessions registered with the router, heartbeats,
// idle detection, and reconnect with exponential backoff.
package peering

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"aprsd/internal/aprs"
	"aprsd/internal/config"
	"aprsd/internal/constants"
	"aprsd/internal/logger"
	"aprsd/internal/router"
	"aprsd/internal/types"
	"aprsd/internal/utils"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	}
	return "unknown"
}

// Peer is the descriptor for one configured S2S peer. Only the manager
// transitions its connection state; the router never touches it.
type Peer struct {
	cfg  config.S2SPeer
	name string

	state atomic.Int32

	mu            sync.Mutex
	lastConnect   time.Time
	nextRetry     time.Time
	lastError     string
	connectErrors uint64

	packetsRx atomic.Uint64
	packetsTx atomic.Uint64
	bytesRx   atomic.Uint64
	bytesTx   atomic.Uint64
}

func newPeer(cfg config.S2SPeer) *Peer {
	name := cfg.PeerName
	if name == "" {
		name = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	return &Peer{cfg: cfg, name: name}
}

func (p *Peer) setState(s State) {
	p.state.Store(int32(s))
}

func (p *Peer) State() State {
	return State(p.state.Load())
}

func (p *Peer) recordError(err error) {
	p.mu.Lock()
	p.lastError = err.Error()
	p.connectErrors++
	p.mu.Unlock()
}

func (p *Peer) Info() types.PeerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := types.PeerInfo{
		Name:          p.name,
		Host:          p.cfg.Host,
		Port:          p.cfg.Port,
		State:         p.State().String(),
		PacketsRx:     p.packetsRx.Load(),
		PacketsTx:     p.packetsTx.Load(),
		BytesRx:       p.bytesRx.Load(),
		BytesTx:       p.bytesTx.Load(),
		ConnectErrors: p.connectErrors,
		LastError:     p.lastError,
	}
	if !p.lastConnect.IsZero() {
		t := p.lastConnect
		info.LastConnect = &t
	}
	if p.State() == StateBackoff && !p.nextRetry.IsZero() {
		t := p.nextRetry
		info.NextRetry = &t
	}
	return info
}

// session is one live S2S connection bound to a Peer descriptor. It
// implements router.Sink.
type session struct {
	id     string
	peer   *Peer
	conn   net.Conn
	router *router.Router
	log    *logger.Logger

	out      chan string
	closed   chan struct{}
	closeOnc sync.Once
}

func newSession(p *Peer, conn net.Conn, rt *router.Router, lg *logger.Logger) *session {
	return &session{
		id:     uuid.NewString(),
		peer:   p,
		conn:   conn,
		router: rt,
		log:    lg,
		out:    make(chan string, constants.WriteQueueSize),
		closed: make(chan struct{}),
	}
}

// run services an established, authenticated link until it drops. It
// registers the session with the router, exchanges heartbeats, and
// dispatches inbound packets. Blocking; returns after teardown.
func (s *session) run() {
	s.peer.setState(StateConnected)
	s.peer.mu.Lock()
	s.peer.lastConnect = time.Now()
	s.peer.lastError = ""
	s.peer.mu.Unlock()

	s.router.Register(s)
	s.log.PeerEvent("peer_connected", s.peer.name, "")
	defer s.Close()

	go s.writer()
	go s.heartbeat()

	reader := bufio.NewReaderSize(s.conn, constants.MaxLineLength)
	for {
		// any traffic, data or keepalive, resets the idle clock
		_ = s.conn.SetReadDeadline(time.Now().Add(constants.PeerIdleTimeout))
		line, err := utils.ReadLine(reader, constants.MaxLineLength)
		if err != nil {
			var nerr net.Error
			switch {
			case errors.As(err, &nerr) && nerr.Timeout():
				log.Printf("🔗 peer %s idle for %s, disconnecting", s.peer.name, constants.PeerIdleTimeout)
				s.peer.recordError(errors.New("peer idle"))
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrDeadlineExceeded):
				log.Printf("🔗 peer %s closed the connection", s.peer.name)
			default:
				log.Printf("🔗 peer %s read error: %v", s.peer.name, err)
				s.peer.recordError(err)
			}
			return
		}
		if line == "" {
			continue
		}
		s.peer.packetsRx.Add(1)
		s.peer.bytesRx.Add(uint64(len(line)))

		if line[0] == '#' {
			// keepalive or status comment
			continue
		}

		pkt, err := aprs.ParsePacket(line)
		if err != nil {
			s.router.CountInvalid()
			s.log.DropEvent("invalid_packet", s.peer.name, len(line), err.Error())
			continue
		}
		s.router.Dispatch(pkt, s.id, false)
	}
}

func (s *session) writer() {
	for {
		select {
		case <-s.closed:
			return
		case line := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
				s.peer.recordError(err)
				s.Close()
				return
			}
			s.peer.packetsTx.Add(1)
			s.peer.bytesTx.Add(uint64(len(line)))
		}
	}
}

func (s *session) heartbeat() {
	ticker := time.NewTicker(constants.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			if !s.Enqueue(constants.MsgKeepalive) {
				return
			}
		}
	}
}

// Router sink interface

func (s *session) ID() string            { return s.id }
func (s *session) Kind() router.SinkKind { return router.KindPeer }
func (s *session) Name() string          { return s.peer.name }

func (s *session) Wants(*aprs.Packet) bool { return true }

func (s *session) Enqueue(line string) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.out <- line:
		return true
	default:
		return false
	}
}

func (s *session) Close() {
	s.closeOnc.Do(func() {
		s.router.Deregister(s.id)
		close(s.closed)
		s.conn.Close()
		s.peer.setState(StateDisconnected)
		s.log.PeerEvent("peer_disconnected", s.peer.name, "")
	})
}

func (s *session) Describe() types.ClientInfo {
	return types.ClientInfo{
		ID:         s.id,
		Callsign:   s.peer.name,
		RemoteAddr: s.conn.RemoteAddr().String(),
		Verified:   true,
		PacketsRx:  s.peer.packetsRx.Load(),
		PacketsTx:  s.peer.packetsTx.Load(),
	}
}
