package router

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aprsd/internal/aprs"
	"aprsd/internal/dedup"
	"aprsd/internal/filter"
	"aprsd/internal/types"
)

type fakeSink struct {
	id      string
	kind    SinkKind
	name    string
	filters filter.Set
	full    bool

	mu     sync.Mutex
	lines  []string
	closed bool
}

func (f *fakeSink) ID() string     { return f.id }
func (f *fakeSink) Kind() SinkKind { return f.kind }
func (f *fakeSink) Name() string   { return f.name }
func (f *fakeSink) Wants(p *aprs.Packet) bool {
	return f.filters.Matches(p)
}
func (f *fakeSink) Enqueue(line string) bool {
	if f.full {
		return false
	}
	f.mu.Lock()
	f.lines = append(f.lines, line)
	f.mu.Unlock()
	return true
}
func (f *fakeSink) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
func (f *fakeSink) Describe() types.ClientInfo {
	return types.ClientInfo{ID: f.id, Callsign: f.name}
}

func (f *fakeSink) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r := New("SRV1", dedup.NewMemoryStore(time.Minute), nil)
	t.Cleanup(r.Close)
	return r
}

func mustPacket(t *testing.T, line string) *aprs.Packet {
	t.Helper()
	p, err := aprs.ParsePacket(line)
	require.NoError(t, err)
	return p
}

func TestDispatchFanOut(t *testing.T) {
	r := newTestRouter(t)
	a := &fakeSink{id: "a", kind: KindClient, name: "N0CALL-5"}
	b := &fakeSink{id: "b", kind: KindClient, name: "K1ABC"}
	peer := &fakeSink{id: "p", kind: KindPeer, name: "PEER1"}
	r.Register(a)
	r.Register(b)
	r.Register(peer)

	r.Dispatch(mustPacket(t, "N0CALL-5>APRS,TCPIP*:status test"), "a", false)

	assert.Empty(t, a.received(), "origin must not see its own packet")
	require.Len(t, b.received(), 1)
	assert.Equal(t, "N0CALL-5>APRS,TCPIP*:status test", b.received()[0],
		"client copies are unmarked")
	require.Len(t, peer.received(), 1)
	assert.Equal(t, "N0CALL-5>APRS,TCPIP*,SRV1:status test", peer.received()[0],
		"peer copies carry this server's path marker")
}

func TestDispatchDedup(t *testing.T) {
	r := newTestRouter(t)
	b := &fakeSink{id: "b", kind: KindClient}
	r.Register(b)

	r.Dispatch(mustPacket(t, "N0CALL>APRS:status"), "a", false)
	// same fingerprint, different path
	r.Dispatch(mustPacket(t, "N0CALL>APRS,WIDE1-1:status"), "a", false)

	assert.Len(t, b.received(), 1, "exactly one delivery within the window")
}

func TestDispatchLoopDrop(t *testing.T) {
	r := newTestRouter(t)
	b := &fakeSink{id: "b", kind: KindClient}
	r.Register(b)

	// fresh dedup cache: the loop check alone must drop this
	r.Dispatch(mustPacket(t, "N0CALL>APRS,PEER1,SRV1:status"), "a", false)
	assert.Empty(t, b.received())

	// marker with used-flag counts too
	r.Dispatch(mustPacket(t, "N0CALL>APRS,SRV1*:other"), "a", false)
	assert.Empty(t, b.received())
}

func TestDispatchPeerPolicy(t *testing.T) {
	r := newTestRouter(t)
	peer1 := &fakeSink{id: "p1", kind: KindPeer, name: "PEER1"}
	peer2 := &fakeSink{id: "p2", kind: KindPeer, name: "PEER2"}
	r.Register(peer1)
	r.Register(peer2)

	// already routed through PEER1: only PEER2 gets a copy
	r.Dispatch(mustPacket(t, "N0CALL>APRS,PEER1:status"), "x", false)
	assert.Empty(t, peer1.received())
	require.Len(t, peer2.received(), 1)
	assert.Equal(t, "N0CALL>APRS,PEER1,SRV1:status", peer2.received()[0])
}

func TestDispatchReadOnlyOrigin(t *testing.T) {
	r := newTestRouter(t)
	client := &fakeSink{id: "c", kind: KindClient}
	peer := &fakeSink{id: "p", kind: KindPeer, name: "PEER1"}
	r.Register(client)
	r.Register(peer)

	r.Dispatch(mustPacket(t, "N0CALL>APRS:status"), "x", true)

	assert.Len(t, client.received(), 1, "read-only traffic stays local")
	assert.Empty(t, peer.received(), "read-only traffic never reaches peers")
}

func TestDispatchClientFilter(t *testing.T) {
	r := newTestRouter(t)
	set, errs := filter.ParseSet("p/K1")
	require.Empty(t, errs)
	filtered := &fakeSink{id: "f", kind: KindClient, filters: set}
	open := &fakeSink{id: "o", kind: KindClient}
	r.Register(filtered)
	r.Register(open)

	r.Dispatch(mustPacket(t, "N0CALL>APRS:one"), "x", false)
	r.Dispatch(mustPacket(t, "K1ABC>APRS:two"), "x", false)

	assert.Len(t, open.received(), 2)
	require.Len(t, filtered.received(), 1)
	assert.Contains(t, filtered.received()[0], "K1ABC")
}

func TestDispatchQueueOverflowClosesSink(t *testing.T) {
	r := newTestRouter(t)
	slow := &fakeSink{id: "s", kind: KindClient, full: true}
	ok := &fakeSink{id: "o", kind: KindClient}
	r.Register(slow)
	r.Register(ok)

	r.Dispatch(mustPacket(t, "N0CALL>APRS:status"), "x", false)

	assert.Len(t, ok.received(), 1, "other sessions are unaffected")
	assert.Eventually(t, slow.isClosed, time.Second, 10*time.Millisecond,
		"slow consumer gets disconnected")
}

func TestDispatchFullPathStaysLocal(t *testing.T) {
	r := newTestRouter(t)
	client := &fakeSink{id: "c", kind: KindClient}
	peer := &fakeSink{id: "p", kind: KindPeer, name: "PEER1"}
	r.Register(client)
	r.Register(peer)

	r.Dispatch(mustPacket(t, "N0CALL>APRS,A,B,C,D,E,F,G,H:status"), "x", false)

	assert.Len(t, client.received(), 1)
	assert.Empty(t, peer.received(), "unmarkable packets must not travel to peers")
}

func TestRegisterDeregister(t *testing.T) {
	r := newTestRouter(t)
	s := &fakeSink{id: "a", kind: KindClient, name: "N0CALL"}
	r.Register(s)
	assert.Equal(t, 1, r.Status().Clients)
	assert.Len(t, r.Clients(), 1)

	r.Deregister("a")
	assert.Equal(t, 0, r.Status().Clients)

	r.Dispatch(mustPacket(t, "K1ABC>APRS:x"), "x", false)
	assert.Empty(t, s.received(), "deregistered sinks see no traffic")
}
