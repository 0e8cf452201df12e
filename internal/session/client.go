// Package session implements inbound client connections on the APRS-IS
// user and server ports: login handshake, subscription filters, packet
// reads, and the bounded outbound write queue.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"aprsd/internal/aprs"
	"aprsd/internal/constants"
	"aprsd/internal/filter"
	"aprsd/internal/logger"
	"aprsd/internal/router"
	"aprsd/internal/types"
	"aprsd/internal/utils"
)

type Client struct {
	id     string
	conn   net.Conn
	router *router.Router
	log    *logger.Logger

	remote   string
	callsign string
	verified bool
	software string

	filterMu   sync.RWMutex
	filters    filter.Set
	filterSpec string

	out      chan string
	closed   chan struct{}
	closeOnc sync.Once

	connectedAt time.Time
	packetsRx   atomic.Uint64
	packetsTx   atomic.Uint64
	bytesRx     atomic.Uint64
	bytesTx     atomic.Uint64
}

// Handle runs one client connection to completion. The accept loop calls
// it in its own goroutine.
func Handle(conn net.Conn, rt *router.Router, lg *logger.Logger) {
	c := &Client{
		id:          uuid.NewString(),
		conn:        conn,
		router:      rt,
		log:         lg,
		remote:      conn.RemoteAddr().String(),
		out:         make(chan string, constants.WriteQueueSize),
		closed:      make(chan struct{}),
		connectedAt: time.Now(),
	}
	log.Printf("📡 New connection from %s", c.remote)

	c.writeLine(fmt.Sprintf("# %s %s", constants.Software, constants.Version))

	reader := bufio.NewReaderSize(conn, constants.MaxLineLength)
	if !c.login(reader) {
		c.conn.Close()
		return
	}

	rt.Register(c)
	lg.SessionEvent("login", "client", c.remote, c.callsign)
	go c.writer()
	defer c.Close()

	badLines := 0
	for {
		line, err := utils.ReadLine(reader, constants.MaxLineLength)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("📡 %s read error: %v", c.remote, err)
			} else {
				log.Printf("📡 %s disconnected", c.remote)
			}
			return
		}
		if line == "" {
			continue
		}
		c.packetsRx.Add(1)
		c.bytesRx.Add(uint64(len(line)))

		if line[0] == '#' {
			c.handleCommand(line)
			continue
		}

		pkt, err := aprs.ParsePacket(line)
		if err != nil {
			rt.CountInvalid()
			lg.DropEvent("invalid_packet", c.remote, len(line), err.Error())
			badLines++
			if badLines > constants.MaxBadPackets {
				log.Printf("📡 %s sent %d bad lines, disconnecting", c.remote, badLines)
				return
			}
			continue
		}

		rt.Dispatch(pkt, c.id, !c.verified)
	}
}

// login drives the AwaitingLogin state: one valid login line within
// LoginTimeout, or the session is rejected with a diagnostic comment.
func (c *Client) login(reader *bufio.Reader) bool {
	_ = c.conn.SetReadDeadline(time.Now().Add(constants.LoginTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	line, err := utils.ReadLine(reader, constants.MaxLineLength)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			c.writeLine(constants.MsgLoginTimeout)
			log.Printf("📡 %s login timeout", c.remote)
		} else {
			log.Printf("📡 %s disconnected before login", c.remote)
		}
		return false
	}

	l, err := ParseLogin(line)
	if err != nil {
		c.writeLine(constants.MsgInvalidLogin)
		log.Printf("📡 %s rejected: %v", c.remote, err)
		return false
	}
	if _, err := aprs.ParseCallsign(l.Callsign); err != nil {
		c.writeLine(constants.MsgInvalidLogin)
		log.Printf("📡 %s rejected: %v", c.remote, err)
		return false
	}
	if !aprs.VerifyPasscode(l.Callsign, l.Passcode) {
		c.writeLine(constants.MsgInvalidPasscode)
		log.Printf("📡 %s rejected: bad passcode for %s", c.remote, l.Callsign)
		c.log.SessionEvent("auth_failed", "client", c.remote, l.Callsign)
		return false
	}

	c.callsign = strings.ToUpper(l.Callsign)
	c.verified = l.Passcode != constants.ReadOnlyPasscode
	c.software = strings.TrimSpace(l.Software + " " + l.Version)
	if l.Filter != "" {
		c.setFilter(l.Filter)
	}

	verified := "verified"
	if !c.verified {
		verified = "unverified, receive-only"
	}
	c.writeLine(fmt.Sprintf("# logresp %s %s, server %s", c.callsign, verified, c.router.ServerName()))
	log.Printf("✅ %s logged in as %s (%s)", c.remote, c.callsign, verified)
	return true
}

// handleCommand processes comment-prefixed control lines. Anything not
// recognized is an ordinary keepalive/comment and is ignored.
func (c *Client) handleCommand(line string) {
	trimmed := strings.TrimSpace(strings.TrimLeft(line, "# "))
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "filter "):
		c.setFilter(trimmed[len("filter "):])
	case lower == "stats":
		c.Enqueue(fmt.Sprintf("# stats: uptime=%s received=%d sent=%d rx=%s tx=%s",
			utils.FormatDuration(time.Since(c.connectedAt)),
			c.packetsRx.Load(), c.packetsTx.Load(),
			utils.FormatBytes(c.bytesRx.Load()), utils.FormatBytes(c.bytesTx.Load())))
	}
}

func (c *Client) setFilter(expr string) {
	set, errs := filter.ParseSet(expr)
	for _, err := range errs {
		c.Enqueue(fmt.Sprintf("%s: %v", constants.MsgInvalidFilter, err))
	}
	if len(errs) > 0 && len(set) == 0 {
		return
	}

	c.filterMu.Lock()
	c.filters = set
	c.filterSpec = set.String()
	c.filterMu.Unlock()

	c.Enqueue(constants.MsgFilterSet)
	log.Printf("🔎 %s set filter: %s", c.remote, set.String())
}

// writeLine writes directly, bypassing the queue. Only used before the
// writer goroutine starts and for login diagnostics.
func (c *Client) writeLine(line string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
	_, _ = c.conn.Write([]byte(line + "\r\n"))
}

func (c *Client) writer() {
	for {
		select {
		case <-c.closed:
			return
		case line := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
				c.Close()
				return
			}
			c.packetsTx.Add(1)
			c.bytesTx.Add(uint64(len(line)))
		}
	}
}

// Router sink interface

func (c *Client) ID() string            { return c.id }
func (c *Client) Kind() router.SinkKind { return router.KindClient }
func (c *Client) Name() string          { return c.callsign }

func (c *Client) Wants(p *aprs.Packet) bool {
	// messages addressed to this station are always delivered
	if addr := aprs.ExtractMessageAddressee(p.Payload); addr != "" && strings.EqualFold(addr, c.callsign) {
		return true
	}
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.filters.Matches(p)
}

func (c *Client) Enqueue(line string) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- line:
		return true
	default:
		return false
	}
}

// Close deregisters the session before releasing the socket so no
// dispatch writes to a dead connection. Safe to call concurrently from
// the read loop, the writer, and the router.
func (c *Client) Close() {
	c.closeOnc.Do(func() {
		c.router.Deregister(c.id)
		close(c.closed)
		c.conn.Close()
		c.log.SessionEvent("disconnect", "client", c.remote, c.callsign)
	})
}

func (c *Client) Describe() types.ClientInfo {
	c.filterMu.RLock()
	spec := c.filterSpec
	c.filterMu.RUnlock()

	return types.ClientInfo{
		ID:          c.id,
		Callsign:    c.callsign,
		RemoteAddr:  c.remote,
		Verified:    c.verified,
		Filter:      spec,
		ConnectedAt: c.connectedAt,
		PacketsRx:   c.packetsRx.Load(),
		PacketsTx:   c.packetsTx.Load(),
		BytesRx:     c.bytesRx.Load(),
		BytesTx:     c.bytesTx.Load(),
	}
}

