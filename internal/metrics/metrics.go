// Package metrics holds the prometheus collectors shared by every
// rudp.Channel implementation. A process that never calls Register never
// pays for exposition; the collectors themselves are always safe to use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PacketsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rudp",
		Name:      "packets_sent_total",
		Help:      "Packets sent, by variant and packet type.",
	}, []string{"variant", "type"})

	PacketsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rudp",
		Name:      "packets_received_total",
		Help:      "Valid packets received, by variant and packet type.",
	}, []string{"variant", "type"})

	// ChecksumFailures has no variant label: it counts datagrams dropped
	// by pkg/netio, below the point where a channel's variant is known.
	ChecksumFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rudp",
		Name:      "checksum_failures_total",
		Help:      "Datagrams dropped for failing packet validation.",
	})

	Retransmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rudp",
		Name:      "retransmits_total",
		Help:      "Packets retransmitted after a timeout or fast-retransmit trigger.",
	}, []string{"variant"})

	WindowSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rudp",
		Name:      "window_size",
		Help:      "Current send window size (SR: occupancy, GBN: fixed capacity, RENO: congestion window).",
	}, []string{"variant"})
)

// Register adds every collector to r. Calling it is optional; an
// unregistered set of collectors still works, it just isn't exposed.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{PacketsSent, PacketsReceived, ChecksumFailures, Retransmits, WindowSize} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
