// Package router is the dispatch hub: every session hands parsed packets
// to a single Router, which applies loop prevention and duplicate
// suppression and fans the survivors out to all other registered sinks.
package router

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"aprsd/internal/aprs"
	"aprsd/internal/constants"
	"aprsd/internal/dedup"
	"aprsd/internal/logger"
	"aprsd/internal/metrics"
	"aprsd/internal/types"
)

type SinkKind int

const (
	KindClient SinkKind = iota
	KindPeer
	KindUplink
)

func (k SinkKind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindPeer:
		return "peer"
	case KindUplink:
		return "uplink"
	}
	return "unknown"
}

// Sink is a registered delivery endpoint. Implementations own their
// socket and write queue; the router holds only this handle.
type Sink interface {
	ID() string
	Kind() SinkKind
	// Name is the peer name for peer sinks, the callsign for clients.
	Name() string
	// Wants evaluates the client's subscription filter. Peer sinks
	// return true; peering policy is applied by the router.
	Wants(p *aprs.Packet) bool
	// Enqueue places a serialized line (without line ending) on the
	// sink's bounded outbound queue. It returns false when the queue is
	// full or the sink is closed.
	Enqueue(line string) bool
	// Close tears the session down; it must be safe to call more than
	// once and concurrently with an in-flight dispatch.
	Close()
	Describe() types.ClientInfo
}

type Router struct {
	serverName string

	mu    sync.Mutex
	sinks map[string]Sink

	dupes dedup.Store
	log   *logger.Logger

	started time.Time

	packetsRx    atomic.Uint64
	packetsTx    atomic.Uint64
	dupesDropped atomic.Uint64
	loopsDropped atomic.Uint64
	invalid      atomic.Uint64

	recent    atomic.Uint64 // dispatches since the last rate tick
	perSecond atomic.Uint64 // dispatches during the previous tick

	packetHook atomic.Value // func(line string)

	stop     chan struct{}
	stopOnce sync.Once
}

func New(serverName string, dupes dedup.Store, lg *logger.Logger) *Router {
	r := &Router{
		serverName: serverName,
		sinks:      make(map[string]Sink),
		dupes:      dupes,
		log:        lg,
		started:    time.Now(),
		stop:       make(chan struct{}),
	}
	go r.rateLoop()
	return r
}

// SetPacketHook installs a callback invoked with every forwarded line.
// The dashboard uses it for its live packet feed.
func (r *Router) SetPacketHook(fn func(line string)) {
	r.packetHook.Store(fn)
}

func (r *Router) Register(s Sink) {
	r.mu.Lock()
	r.sinks[s.ID()] = s
	r.mu.Unlock()

	switch s.Kind() {
	case KindClient:
		metrics.ActiveClients.Inc()
	case KindPeer:
		metrics.ConnectedPeers.Inc()
	}
}

// Deregister removes a sink from the fan-out set. Sessions call it from
// their close path before releasing the socket, so no dispatch enqueues
// to a dead session.
func (r *Router) Deregister(id string) {
	r.mu.Lock()
	s, ok := r.sinks[id]
	if ok {
		delete(r.sinks, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	switch s.Kind() {
	case KindClient:
		metrics.ActiveClients.Dec()
	case KindPeer:
		metrics.ConnectedPeers.Dec()
	}
}

// Dispatch routes one packet. originID identifies the session the packet
// arrived on; originReadOnly marks packets from unverified (passcode -1)
// clients, which are delivered to local clients only.
//
// The loop check runs before the dedup check: a packet that already
// carries this server's path marker is dropped regardless of cache state.
func (r *Router) Dispatch(p *aprs.Packet, originID string, originReadOnly bool) {
	if p.PathContains(r.serverName) {
		r.loopsDropped.Add(1)
		metrics.PacketsLoop.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	seen, err := r.dupes.Seen(ctx, dedup.Fingerprint(p))
	cancel()
	if err != nil {
		// A broken dedup backend must not stop traffic; deliver and log.
		log.Printf("⚠️  dedup check failed: %v", err)
		r.log.DropEvent("dedup_error", "", 0, err.Error())
		seen = false
	}
	if seen {
		r.dupesDropped.Add(1)
		metrics.PacketsDuplicate.Inc()
		return
	}

	r.packetsRx.Add(1)
	r.recent.Add(1)

	line := p.String()

	// The marked copy travels to peers and the uplink. A packet whose
	// path is already at its bound cannot carry provenance, so it stays
	// local rather than travel unmarked and loop forever.
	var markedLine string
	if marked, err := p.MarkPath(r.serverName); err == nil {
		markedLine = marked.String()
	}

	r.mu.Lock()
	snapshot := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	delivered := false
	for _, s := range snapshot {
		if s.ID() == originID {
			continue
		}

		var out string
		switch s.Kind() {
		case KindClient:
			if !s.Wants(p) {
				continue
			}
			out = line
		default:
			if originReadOnly {
				continue
			}
			if markedLine == "" {
				continue
			}
			if s.Name() != "" && p.PathContains(s.Name()) {
				// Already passed through that peer once.
				continue
			}
			out = markedLine
		}

		if !s.Enqueue(out) {
			log.Printf("🐌 %s %s cannot keep up, disconnecting", s.Kind(), s.Name())
			metrics.QueueOverflows.Inc()
			r.log.SessionEvent("queue_overflow", s.Kind().String(), "", s.Name())
			go s.Close()
			continue
		}
		delivered = true
		r.packetsTx.Add(1)
		metrics.PacketsDelivered.Inc()
	}

	metrics.PacketsReceived.WithLabelValues(kindLabel(originReadOnly)).Inc()
	if delivered {
		if fn, ok := r.packetHook.Load().(func(string)); ok && fn != nil {
			fn(line)
		}
	}
}

func kindLabel(readOnly bool) string {
	if readOnly {
		return "readonly"
	}
	return "verified"
}

// CountInvalid records a line that failed parsing; sessions call it so
// the counter covers every port.
func (r *Router) CountInvalid() {
	r.invalid.Add(1)
	metrics.PacketsInvalid.Inc()
}

func (r *Router) rateLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.perSecond.Store(r.recent.Swap(0))
			if size := r.dupes.Size(); size >= 0 {
				metrics.DedupCacheSize.Set(float64(size))
			}
		}
	}
}

// Status snapshots the read-only counters the dashboard polls.
func (r *Router) Status() types.ServerStatus {
	r.mu.Lock()
	clients, peers := 0, 0
	for _, s := range r.sinks {
		switch s.Kind() {
		case KindClient:
			clients++
		case KindPeer:
			peers++
		}
	}
	r.mu.Unlock()

	size := r.dupes.Size()
	return types.ServerStatus{
		ServerName:       r.serverName,
		Software:         constants.Software,
		Version:          constants.Version,
		UptimeSeconds:    uint64(time.Since(r.started).Seconds()),
		Clients:          clients,
		PeersConnected:   peers,
		PacketsRx:        r.packetsRx.Load(),
		PacketsTx:        r.packetsTx.Load(),
		PacketsDuplicate: r.dupesDropped.Load(),
		PacketsLoop:      r.loopsDropped.Load(),
		PacketsInvalid:   r.invalid.Load(),
		PacketsPerSecond: float64(r.perSecond.Load()),
		DedupCacheSize:   size,
	}
}

// Clients lists the registered client sessions for the dashboard.
func (r *Router) Clients() []types.ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]types.ClientInfo, 0, len(r.sinks))
	for _, s := range r.sinks {
		if s.Kind() != KindClient {
			continue
		}
		infos = append(infos, s.Describe())
	}
	return infos
}

// Close stops the rate loop and closes every registered sink.
func (r *Router) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	snapshot := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		s.Close()
	}
}

func (r *Router) ServerName() string {
	return r.serverName
}
