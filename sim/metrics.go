package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/encodeous/ripple/core"
	"github.com/encodeous/ripple/state"
)

// Metrics holds the Prometheus metrics of a simulation
type Metrics struct {
	MessagesSent      *prometheus.CounterVec
	MessagesDelivered *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	MessagesRejected  *prometheus.CounterVec
	RouterEvents      *prometheus.CounterVec
	LinkChanges       prometheus.Counter
	// ConvergenceSeconds is the simulated time of the last processed event
	ConvergenceSeconds prometheus.Gauge
}

// NewMetrics creates the simulation metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "sim",
			Name:      "messages_sent_total",
			Help:      "Messages handed to the network, by sending node",
		}, []string{"node"}),
		MessagesDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "sim",
			Name:      "messages_delivered_total",
			Help:      "Messages delivered, by receiving node",
		}, []string{"node"}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "sim",
			Name:      "messages_dropped_total",
			Help:      "Messages lost because their link was down or went down in flight, by sending node",
		}, []string{"node"}),
		MessagesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "sim",
			Name:      "messages_rejected_total",
			Help:      "Messages a node refused to apply, by receiving node",
		}, []string{"node"}),
		RouterEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "router",
			Name:      "events_total",
			Help:      "Router events, by node and event",
		}, []string{"node", "event"}),
		LinkChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ripple",
			Subsystem: "sim",
			Name:      "link_changes_total",
			Help:      "Link changes applied",
		}),
		ConvergenceSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ripple",
			Subsystem: "sim",
			Name:      "convergence_seconds",
			Help:      "Simulated time of the last processed event",
		}),
	}
}

func (m *Metrics) observe(id state.NodeId, event core.RouterEvent) {
	if m == nil {
		return
	}
	m.RouterEvents.WithLabelValues(string(id), event.String()).Inc()
}

func (m *Metrics) sent(id state.NodeId) {
	if m != nil {
		m.MessagesSent.WithLabelValues(string(id)).Inc()
	}
}

func (m *Metrics) delivered(id state.NodeId) {
	if m != nil {
		m.MessagesDelivered.WithLabelValues(string(id)).Inc()
	}
}

func (m *Metrics) dropped(id state.NodeId) {
	if m != nil {
		m.MessagesDropped.WithLabelValues(string(id)).Inc()
	}
}

func (m *Metrics) rejected(id state.NodeId) {
	if m != nil {
		m.MessagesRejected.WithLabelValues(string(id)).Inc()
	}
}

func (m *Metrics) linkChanged() {
	if m != nil {
		m.LinkChanges.Inc()
	}
}
