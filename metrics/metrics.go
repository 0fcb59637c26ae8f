// Package metrics instruments the engine with Prometheus collectors: a
// custom prometheus.Collector that pulls live state from a registry at
// scrape time, paired with promauto counters for discrete events that
// have no natural "current value" (packets received, sent and dropped,
// and frames processed).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quicbridge/engine/transport"
)

// registrySizer is the narrow contract this package needs from
// registry.Registry, avoiding a direct dependency that would create an
// import cycle if registry ever wanted to record metrics of its own.
type registrySizer interface {
	Len() int
}

// RegistryCollector reports the number of live connections a listener's
// registry currently tracks, pulled fresh on every scrape rather than
// cached in a gauge that could drift from the registry's actual state.
type RegistryCollector struct {
	reg registrySizer
	desc *prometheus.Desc
}

// NewRegistryCollector wraps reg (a *registry.Registry) with the given
// constant labels (e.g. listener address).
func NewRegistryCollector(reg registrySizer, constLabels prometheus.Labels) *RegistryCollector {
	return &RegistryCollector{
		reg: reg,
		desc: prometheus.NewDesc(
			"quicbridge_connections",
			"Number of connections currently tracked by the registry.",
			nil, constLabels,
		),
	}
}

func (c *RegistryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *RegistryCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.reg.Len()))
}

// EventCounters groups the discrete counters this engine exports, one
// instance shared by every connection in a process. Every field here is
// driven by ObserveLogEvent below, which is the qlog stream every
// connection already emits (transport/log.go) — no counter is left
// unincremented.
type EventCounters struct {
	PacketsReceived *prometheus.CounterVec
	PacketsSent *prometheus.CounterVec
	PacketsDropped *prometheus.CounterVec
	FramesProcessed *prometheus.CounterVec
}

// NewEventCounters registers every counter with reg (pass
// prometheus.DefaultRegisterer unless a test needs isolation).
func NewEventCounters(reg prometheus.Registerer) *EventCounters {
	factory := promauto.With(reg)
	return &EventCounters{
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "quicbridge_packets_received_total",
				Help: "QUIC packets successfully parsed and decrypted, by packet type.",
			}, []string{"type"}),
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "quicbridge_packets_sent_total",
				Help: "QUIC packets built and handed to the transport, by packet type.",
			}, []string{"type"}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "quicbridge_packets_dropped_total",
				Help: "QUIC packets dropped during parsing or decryption, by reason.",
			}, []string{"reason"}),
		FramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "quicbridge_frames_processed_total",
				Help: "QUIC frames processed, by frame type.",
			}, []string{"type"}),
	}
}

// ObserveLogEvent increments the packet/frame counters from one
// transport.LogEvent, intended to be wired as (part of) a connection's
// OnLogEvent sink alongside the qlog text logger (quicsrv/log.go).
func (m *EventCounters) ObserveLogEvent(e transport.LogEvent) {
	switch e.Type {
	case "packet_received":
		m.PacketsReceived.WithLabelValues(fieldStr(e, "packet_type")).Inc()
	case "packet_sent":
		m.PacketsSent.WithLabelValues(fieldStr(e, "packet_type")).Inc()
	case "packet_dropped":
		m.PacketsDropped.WithLabelValues(fieldStr(e, "trigger")).Inc()
	case "frames_processed":
		m.FramesProcessed.WithLabelValues(fieldStr(e, "frame_type")).Inc()
	}
}

func fieldStr(e transport.LogEvent, key string) string {
	for _, f := range e.Fields {
		if f.Key == key {
			if f.Str != "" {
				return f.Str
			}
			return ""
		}
	}
	return "unknown"
}
