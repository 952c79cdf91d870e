// Package metrics exposes the Prometheus surface: connected-peer count,
// known-address count, peer kills by kind (handshake rejections as well as
// liveness timeouts and lifetime expiry), ping RTT.
// Grounded on the module's direct dependency on
// github.com/prometheus/client_golang, mirroring the metric-registration
// shape of cli/server/metrics.go (one package constructing and exposing
// a handful of named collectors).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors the peer manager updates.
type Metrics struct {
	ConnectedPeers prometheus.Gauge
	KnownAddrs     prometheus.Gauge
	KillsByKind    *prometheus.CounterVec
	PingRTT        prometheus.Histogram
}

// New constructs and registers the peer manager's collectors against reg.
// Passing a fresh *prometheus.Registry in tests avoids collisions with
// the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peerd",
			Name:      "connected_peers",
			Help:      "Number of peers currently connected (handshake complete).",
		}),
		KnownAddrs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peerd",
			Name:      "known_addrs",
			Help:      "Number of addresses currently in the known-but-undialed pool.",
		}),
		KillsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peerd",
			Name:      "peer_kills_total",
			Help:      "Peer kills, labeled by PeerException kind.",
		}, []string{"kind"}),
		PingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "peerd",
			Name:      "ping_rtt_seconds",
			Help:      "Observed ping round-trip times.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.ConnectedPeers, m.KnownAddrs, m.KillsByKind, m.PingRTT)
	return m
}
