// Package metrics registers the prometheus collectors exposed on the
// dashboard's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsd_packets_received_total",
		Help: "Packets accepted for dispatch, by origin kind.",
	}, []string{"origin"})

	PacketsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aprsd_packets_delivered_total",
		Help: "Per-sink packet deliveries (one packet fanning out to three sinks counts three).",
	})

	PacketsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aprsd_packets_duplicate_total",
		Help: "Packets suppressed by the dedup cache.",
	})

	PacketsLoop = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aprsd_packets_loop_total",
		Help: "Packets dropped because the path already carried this server's marker.",
	})

	PacketsInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aprsd_packets_invalid_total",
		Help: "Lines that failed TNC2 parsing.",
	})

	QueueOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aprsd_queue_overflows_total",
		Help: "Sessions disconnected because their write queue filled up.",
	})

	ActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aprsd_active_clients",
		Help: "Authenticated client sessions currently registered.",
	})

	ConnectedPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aprsd_connected_peers",
		Help: "S2S peer sessions currently registered.",
	})

	DedupCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aprsd_dedup_cache_size",
		Help: "Live entries in the dedup cache (in-memory backend only).",
	})

	PeerReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aprsd_peer_reconnects_total",
		Help: "Outbound peer connection attempts, by peer name.",
	}, []string{"peer"})
)
