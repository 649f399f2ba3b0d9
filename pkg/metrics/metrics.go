package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ConnectionsActive prometheus.Gauge
	VoiceUsers        prometheus.Gauge
	MessagesTotal     *prometheus.CounterVec
	SignalsForwarded  *prometheus.CounterVec
	SnapshotWrites    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Number of open WebSocket connections.",
		}),
		VoiceUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_voice_users",
			Help: "Number of connections currently joined to voice.",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total inbound signaling messages by envelope type.",
		}, []string{"type"}),
		SignalsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_signals_forwarded_total",
			Help: "WebRTC offer/answer/ICE forwards by type and outcome.",
		}, []string{"type", "outcome"}),
		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_snapshot_writes_total",
			Help: "Mesh state snapshot writes by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.ConnectionsActive,
		m.VoiceUsers,
		m.MessagesTotal,
		m.SignalsForwarded,
		m.SnapshotWrites,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
