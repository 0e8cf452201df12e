// Package dashboard serves the HTTP status API, the websocket live
// feed, and the Prometheus scrape endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aprsd/internal/constants"
	"aprsd/internal/peering"
	"aprsd/internal/router"
	"aprsd/internal/types"
	"aprsd/internal/uplink"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  constants.DashboardWSReadBuffer,
	WriteBufferSize: constants.DashboardWSWriteBuffer,
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<ul>
<li><a href="/api/status">/api/status</a></li>
<li><a href="/api/clients">/api/clients</a></li>
<li><a href="/api/peers">/api/peers</a></li>
<li><a href="/api/uplink">/api/uplink</a></li>
<li><a href="/metrics">/metrics</a></li>
<li>/ws (websocket live feed)</li>
</ul>
</body>
</html>
`))

type Dashboard struct {
	router *router.Router
	peers  *peering.Manager
	uplink *uplink.Uplink

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	mu      sync.RWMutex
	packets []string

	server *http.Server
	port   int
	stop   chan struct{}
}

func New(port int, rt *router.Router, peers *peering.Manager, up *uplink.Uplink) *Dashboard {
	return &Dashboard{
		router:  rt,
		peers:   peers,
		uplink:  up,
		clients: make(map[*websocket.Conn]bool),
		port:    port,
		stop:    make(chan struct{}),
	}
}

func (d *Dashboard) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleIndex)
	mux.HandleFunc("/ws", d.handleWebSocket)
	mux.HandleFunc("/api/status", d.handleStatus)
	mux.HandleFunc("/api/clients", d.handleClients)
	mux.HandleFunc("/api/peers", d.handlePeers)
	mux.HandleFunc("/api/uplink", d.handleUplink)
	mux.Handle("/metrics", promhttp.Handler())

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", d.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	d.router.SetPacketHook(d.addPacket)
	go d.pushLoop()

	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Dashboard server error: %v", err)
		}
	}()

	return nil
}

func (d *Dashboard) Stop() error {
	close(d.stop)
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DashboardShutdownTimeout)
		defer cancel()
		return d.server.Shutdown(ctx)
	}
	return nil
}

// addPacket keeps a bounded ring of recent lines and pushes each one
// to connected websocket clients.
func (d *Dashboard) addPacket(line string) {
	d.mu.Lock()
	d.packets = append(d.packets, line)
	if len(d.packets) > constants.DashboardMaxPackets {
		d.packets = d.packets[len(d.packets)-constants.DashboardMaxPackets:]
	}
	d.mu.Unlock()

	go d.broadcast(map[string]interface{}{"type": "packet", "data": line})
}

func (d *Dashboard) pushLoop() {
	ticker := time.NewTicker(constants.DashboardPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.broadcast(map[string]interface{}{"type": "status", "data": d.status()})
		}
	}
}

func (d *Dashboard) broadcast(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()
	for client := range d.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(d.clients, client)
		}
	}
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	title := fmt.Sprintf("%s %s", d.router.ServerName(), constants.Software)
	if err := indexTemplate.Execute(w, map[string]string{"Title": title}); err != nil {
		log.Printf("Error rendering dashboard: %v", err)
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	d.mu.RLock()
	recent := make([]string, len(d.packets))
	copy(recent, d.packets)
	d.mu.RUnlock()

	// Replay before registering: broadcast writes to registered conns
	// under clientsMu, and a websocket conn allows only one writer.
	for _, line := range recent {
		data, _ := json.Marshal(map[string]interface{}{"type": "packet", "data": line})
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	defer func() {
		d.clientsMu.Lock()
		delete(d.clients, conn)
		d.clientsMu.Unlock()
	}()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// status enriches the router snapshot with what only the peer manager
// knows.
func (d *Dashboard) status() types.ServerStatus {
	st := d.router.Status()
	if d.peers != nil {
		st.PeersConfigured = d.peers.Configured()
	}
	return st
}

func (d *Dashboard) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.status())
}

func (d *Dashboard) handleClients(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.router.Clients())
}

func (d *Dashboard) handlePeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.peers == nil {
		json.NewEncoder(w).Encode([]interface{}{})
		return
	}
	json.NewEncoder(w).Encode(d.peers.Snapshot())
}

func (d *Dashboard) handleUplink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.uplink == nil {
		json.NewEncoder(w).Encode(map[string]bool{"configured": false})
		return
	}
	json.NewEncoder(w).Encode(d.uplink.Status())
}
