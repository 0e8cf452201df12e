package peering

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"aprsd/internal/config"
	"aprsd/internal/constants"
	"aprsd/internal/logger"
	"aprsd/internal/metrics"
	"aprsd/internal/router"
	"aprsd/internal/types"
	"aprsd/internal/utils"
)

// Manager owns the configured peer table and the lifecycle of all peer
// sessions. It drives outbound connects with backoff and admits inbound
// S2S connections; live sessions are handed to the router by
// registration, never by transferring ownership.
type Manager struct {
	peers      []*Peer
	router     *router.Router
	log        *logger.Logger
	serverName string
	s2sPort    int

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewManager(cfgs []config.S2SPeer, rt *router.Router, lg *logger.Logger, serverName string, s2sPort int) *Manager {
	m := &Manager{
		router:     rt,
		log:        lg,
		serverName: serverName,
		s2sPort:    s2sPort,
		stop:       make(chan struct{}),
	}
	for _, cfg := range cfgs {
		m.peers = append(m.peers, newPeer(cfg))
	}
	return m
}

// Start launches one connect loop per configured peer.
func (m *Manager) Start() {
	for _, p := range m.peers {
		m.wg.Add(1)
		go func(p *Peer) {
			defer m.wg.Done()
			m.connectLoop(p)
		}(p)
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// connectLoop keeps one outbound peer link alive: dial, handshake, run,
// then back off and retry. The interval doubles up to the cap and resets
// after any connection that held for StableConnection.
func (m *Manager) connectLoop(p *Peer) {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	backoff := NewBackoff(constants.BackoffMin, constants.BackoffMax)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		p.setState(StateConnecting)
		metrics.PeerReconnects.WithLabelValues(p.name).Inc()

		conn, err := net.DialTimeout("tcp", addr, constants.DialTimeout)
		if err != nil {
			p.recordError(fmt.Errorf("connect: %w", err))
			if !m.waitBackoff(p, backoff) {
				return
			}
			continue
		}

		if err := m.handshakeOutbound(p, conn); err != nil {
			conn.Close()
			p.recordError(fmt.Errorf("handshake: %w", err))
			log.Printf("🔗 peer %s handshake failed: %v", p.name, err)
			m.log.PeerEvent("peer_handshake_failed", p.name, err.Error())
			if !m.waitBackoff(p, backoff) {
				return
			}
			continue
		}

		log.Printf("🔗 Connected to S2S peer %s (%s)", p.name, addr)
		started := time.Now()
		sess := newSession(p, conn, m.router, m.log)
		go m.closeOnStop(sess)
		sess.run()

		if time.Since(started) >= constants.StableConnection {
			backoff.Reset()
		}
		if !m.waitBackoff(p, backoff) {
			return
		}
	}
}

// closeOnStop tears a session down when the manager shuts down, so
// connectLoop's blocking run() returns.
func (m *Manager) closeOnStop(sess *session) {
	select {
	case <-m.stop:
		sess.Close()
	case <-sess.closed:
	}
}

func (m *Manager) waitBackoff(p *Peer, backoff *Backoff) bool {
	d := backoff.Next()
	p.setState(StateBackoff)
	p.mu.Lock()
	p.nextRetry = time.Now().Add(d)
	p.mu.Unlock()

	select {
	case <-m.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// handshakeOutbound sends our login line and waits for the acceptor's
// own login/ack within HandshakeTimeout.
func (m *Manager) handshakeOutbound(p *Peer, conn net.Conn) error {
	p.setState(StateHandshaking)

	login := FormatS2SLogin(m.serverName, p.cfg.Passcode, m.s2sPort)
	_ = conn.SetWriteDeadline(time.Now().Add(constants.HandshakeTimeout))
	if _, err := conn.Write([]byte(login + "\r\n")); err != nil {
		return fmt.Errorf("login send: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(constants.HandshakeTimeout))
	reader := bufio.NewReaderSize(conn, constants.MaxLineLength)
	line, err := utils.ReadLine(reader, constants.MaxLineLength)
	if err != nil {
		return fmt.Errorf("login ack: %w", err)
	}
	if strings.HasPrefix(strings.TrimSpace(line), "# s2s login rejected") {
		return fmt.Errorf("rejected by peer: %s", line)
	}
	if ack, err := ParseS2SLogin(line); err == nil {
		log.Printf("🔗 peer %s identified as %s", p.name, ack.Name)
	}
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})
	return nil
}

// HandleInbound runs one accepted S2S connection. The connection is
// admitted at the transport level; the per-peer passcode in the login
// line is the sole authentication gate, and unconfigured sources are
// rejected after the handshake with an explanatory line.
func (m *Manager) HandleInbound(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log.Printf("🔗 Incoming S2S connection from %s", remote)

	_ = conn.SetReadDeadline(time.Now().Add(constants.HandshakeTimeout))
	reader := bufio.NewReaderSize(conn, constants.MaxLineLength)
	line, err := utils.ReadLine(reader, constants.MaxLineLength)
	if err != nil {
		log.Printf("🔗 %s disconnected before S2S login", remote)
		conn.Close()
		return
	}

	login, err := ParseS2SLogin(line)
	if err != nil {
		m.reject(conn, remote, "malformed login")
		return
	}

	p := m.matchPeer(login)
	if p == nil {
		m.reject(conn, remote, fmt.Sprintf("unknown peer %s", login.Name))
		return
	}

	// answer with our own login line
	ack := FormatS2SLogin(m.serverName, p.cfg.Passcode, m.s2sPort)
	_ = conn.SetWriteDeadline(time.Now().Add(constants.HandshakeTimeout))
	if _, err := conn.Write([]byte(ack + "\r\n")); err != nil {
		log.Printf("🔗 %s S2S ack failed: %v", remote, err)
		conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	log.Printf("🔗 S2S peer %s authenticated from %s", p.name, remote)
	sess := newSession(p, conn, m.router, m.log)
	go m.closeOnStop(sess)
	sess.run()
}

func (m *Manager) reject(conn net.Conn, remote, reason string) {
	log.Printf("🔗 rejecting S2S connection from %s: %s", remote, reason)
	m.log.PeerEvent("peer_rejected", remote, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
	_, _ = conn.Write([]byte(constants.MsgS2SRejected + " " + reason + "\r\n"))
	conn.Close()
}

// matchPeer finds the configured peer a login line authenticates as:
// the passcode must match, and when the peer has a configured name the
// name must match too.
func (m *Manager) matchPeer(login S2SLogin) *Peer {
	for _, p := range m.peers {
		if p.cfg.Passcode != login.Passcode {
			continue
		}
		if p.cfg.PeerName != "" && !strings.EqualFold(p.cfg.PeerName, login.Name) {
			continue
		}
		return p
	}
	return nil
}

// Snapshot lists all configured peers and their live state for the
// dashboard.
func (m *Manager) Snapshot() []types.PeerInfo {
	infos := make([]types.PeerInfo, 0, len(m.peers))
	for _, p := range m.peers {
		infos = append(infos, p.Info())
	}
	return infos
}

func (m *Manager) Configured() int {
	return len(m.peers)
}
