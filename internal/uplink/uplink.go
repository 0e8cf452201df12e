// Package uplink maintains the optional client-mode connection to an
// upstream APRS-IS server: it logs in with the configured callsign,
// injects the upstream feed into the router, and forwards locally
// originated traffic back out.
package uplink

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"aprsd/internal/aprs"
	"aprsd/internal/config"
	"aprsd/internal/constants"
	"aprsd/internal/logger"
	"aprsd/internal/peering"
	"aprsd/internal/router"
	"aprsd/internal/types"
	"aprsd/internal/utils"
)

type Uplink struct {
	cfg    config.Uplink
	router *router.Router
	log    *logger.Logger

	mu     sync.Mutex
	status types.UplinkStatus

	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg config.Uplink, rt *router.Router, lg *logger.Logger) *Uplink {
	return &Uplink{
		cfg:    cfg,
		router: rt,
		log:    lg,
		status: types.UplinkStatus{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Callsign: cfg.Callsign,
		},
		stop: make(chan struct{}),
	}
}

// Start runs the connect loop in the background.
func (u *Uplink) Start() {
	go u.loop()
}

func (u *Uplink) Stop() {
	u.stopOnce.Do(func() { close(u.stop) })
}

func (u *Uplink) loop() {
	addr := fmt.Sprintf("%s:%d", u.cfg.Host, u.cfg.Port)
	backoff := peering.NewBackoff(constants.BackoffMin, constants.BackoffMax)

	for {
		select {
		case <-u.stop:
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, constants.DialTimeout)
		if err != nil {
			u.recordConnectError(fmt.Errorf("connect: %w", err))
			if !u.wait(backoff.Next()) {
				return
			}
			continue
		}

		started := time.Now()
		u.run(conn)
		if time.Since(started) >= constants.StableConnection {
			backoff.Reset()
		}
		if !u.wait(backoff.Next()) {
			return
		}
	}
}

func (u *Uplink) wait(d time.Duration) bool {
	select {
	case <-u.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// run services one established uplink connection until it drops.
func (u *Uplink) run(conn net.Conn) {
	log.Printf("⬆️  Connected to uplink %s:%d", u.cfg.Host, u.cfg.Port)
	now := time.Now()
	u.mu.Lock()
	u.status.Connected = true
	u.status.LastConnect = &now
	u.status.LastError = ""
	u.mu.Unlock()

	sess := &session{
		id:   uuid.NewString(),
		u:    u,
		conn: conn,
		out:  make(chan string, constants.WriteQueueSize),
		done: make(chan struct{}),
	}
	defer sess.close()

	login := fmt.Sprintf("user %s pass %d vers %s %s",
		u.cfg.Callsign, u.cfg.Passcode, constants.Software, constants.Version)
	_ = conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
	if _, err := conn.Write([]byte(login + "\r\n")); err != nil {
		u.recordWriteError(fmt.Errorf("login send: %w", err))
		return
	}
	u.countTx(len(login))

	u.router.Register(sess)
	go sess.writer()
	go u.stopWatch(sess)

	reader := bufio.NewReaderSize(conn, constants.MaxLineLength)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(constants.PeerIdleTimeout))
		line, err := utils.ReadLine(reader, constants.MaxLineLength)
		if err != nil {
			u.recordReadError(fmt.Errorf("read: %w", err))
			log.Printf("⬆️  Uplink disconnected: %v", err)
			return
		}
		u.countRx(len(line))
		if line == "" || line[0] == '#' {
			continue
		}

		pkt, err := aprs.ParsePacket(line)
		if err != nil {
			u.router.CountInvalid()
			continue
		}
		u.router.Dispatch(pkt, sess.id, false)
	}
}

func (u *Uplink) stopWatch(sess *session) {
	select {
	case <-u.stop:
		sess.close()
	case <-sess.done:
	}
}

func (u *Uplink) Status() types.UplinkStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

func (u *Uplink) recordConnectError(err error) {
	log.Printf("⬆️  Uplink connect error: %v", err)
	u.log.PeerEvent("uplink_connect_failed", u.cfg.Host, err.Error())
	u.mu.Lock()
	u.status.Connected = false
	u.status.ConnectErrors++
	u.status.LastError = err.Error()
	u.mu.Unlock()
}

func (u *Uplink) recordReadError(err error) {
	u.mu.Lock()
	u.status.Connected = false
	u.status.ReadErrors++
	u.status.LastError = err.Error()
	u.mu.Unlock()
}

func (u *Uplink) recordWriteError(err error) {
	u.mu.Lock()
	u.status.Connected = false
	u.status.WriteErrors++
	u.status.LastError = err.Error()
	u.mu.Unlock()
}

func (u *Uplink) countRx(n int) {
	now := time.Now()
	u.mu.Lock()
	u.status.PacketsRx++
	u.status.BytesRx += uint64(n)
	u.status.LastRxTime = &now
	u.mu.Unlock()
}

func (u *Uplink) countTx(n int) {
	now := time.Now()
	u.mu.Lock()
	u.status.PacketsTx++
	u.status.BytesTx += uint64(n)
	u.status.LastTxTime = &now
	u.mu.Unlock()
}

// session is the router sink for one live uplink connection.
type session struct {
	id   string
	u    *Uplink
	conn net.Conn
	out  chan string

	done     chan struct{}
	closeOnc sync.Once
}

func (s *session) ID() string              { return s.id }
func (s *session) Kind() router.SinkKind   { return router.KindUplink }
func (s *session) Name() string            { return s.u.cfg.Host }
func (s *session) Wants(*aprs.Packet) bool { return true }

func (s *session) Enqueue(line string) bool {
	select {
	case <-s.done:
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

func (s *session) Close() { s.close() }

func (s *session) close() {
	s.closeOnc.Do(func() {
		s.u.router.Deregister(s.id)
		close(s.done)
		s.conn.Close()
		s.u.mu.Lock()
		s.u.status.Connected = false
		s.u.mu.Unlock()
	})
}

func (s *session) writer() {
	for {
		select {
		case <-s.done:
			return
		case line := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
				s.u.recordWriteError(err)
				s.close()
				return
			}
			s.u.countTx(len(line))
		}
	}
}

func (s *session) Describe() types.ClientInfo {
	return types.ClientInfo{
		ID:         s.id,
		Callsign:   s.u.cfg.Callsign,
		RemoteAddr: s.conn.RemoteAddr().String(),
		Verified:   true,
	}
}
