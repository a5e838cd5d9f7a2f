// Package metrics provides Prometheus instrumentation for the client.
//
// Collectors are package-level and registered with the default registry,
// so one process exposes one set of client metrics. The Recorder type
// satisfies the client package's Metrics interface and is handed to the
// client via SetMetrics; Serve exposes the standard /metrics endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal counts successful broker handshakes, initial
	// connects and reconnects alike.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iotcore_connections_total",
		Help: "The total number of successful broker connections.",
	})

	// ReconnectAttemptsTotal counts reconnection attempts, including
	// failed ones.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iotcore_reconnect_attempts_total",
		Help: "The total number of reconnection attempts.",
	})

	// PacketsSentTotal counts outbound control packets by type.
	PacketsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iotcore_packets_sent_total",
		Help: "The total number of control packets sent, by packet type.",
	},
		[]string{"type"},
	)

	// PacketsReceivedTotal counts inbound control packets by type.
	PacketsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iotcore_packets_received_total",
		Help: "The total number of control packets received, by packet type.",
	},
		[]string{"type"},
	)

	// Connected reports whether the session currently holds an
	// established connection.
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iotcore_connected",
		Help: "Whether the client currently has an established broker connection.",
	})
)

// Recorder reports client events into the package collectors.
//
// The zero value is ready to use:
//
//	c.SetMetrics(metrics.Recorder{})
type Recorder struct{}

func (Recorder) PacketSent(packetType string) {
	PacketsSentTotal.WithLabelValues(packetType).Inc()
}

func (Recorder) PacketReceived(packetType string) {
	PacketsReceivedTotal.WithLabelValues(packetType).Inc()
}

func (Recorder) ConnectionEstablished() {
	ConnectionsTotal.Inc()
	Connected.Set(1)
}

func (Recorder) ConnectionLost() {
	Connected.Set(0)
}

func (Recorder) ReconnectAttempt() {
	ReconnectAttemptsTotal.Inc()
}

// Serve exposes /metrics on addr. Blocks; run it on its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
