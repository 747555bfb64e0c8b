package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics records broadcaster and hub activity.
type RealtimeMetrics struct {
	published   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	busFailures prometheus.Counter
	clients     prometheus.Gauge
}

// NewRealtimeMetrics registers the realtime metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_published_total",
		Help: "Realtime events handed to the bus after commit.",
	}, []string{"event", "type"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_deliveries_dropped_total",
		Help: "Realtime frames dropped because a client buffer was full.",
	}, []string{"event"})
	busFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_bus_publish_failures_total",
		Help: "Deliveries the bus failed to publish.",
	})
	clients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connected_clients",
		Help: "Websocket clients connected to this instance.",
	})
	reg.MustRegister(published, dropped, busFailures, clients)
	return &RealtimeMetrics{
		published:   published,
		dropped:     dropped,
		busFailures: busFailures,
		clients:     clients,
	}
}

func (m *RealtimeMetrics) IncPublished(event, changeType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(event), normalizeLabel(changeType)).Inc()
}

func (m *RealtimeMetrics) IncDropped(event string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *RealtimeMetrics) IncBusFailure() {
	if m == nil || m.busFailures == nil {
		return
	}
	m.busFailures.Inc()
}

// ClientConnected and ClientDisconnected track the websocket gauge.
func (m *RealtimeMetrics) ClientConnected() {
	if m == nil || m.clients == nil {
		return
	}
	m.clients.Inc()
}

func (m *RealtimeMetrics) ClientDisconnected() {
	if m == nil || m.clients == nil {
		return
	}
	m.clients.Dec()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
