package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quicbridge/engine/transport"
)

type fakeRegistrySizer int

func (f fakeRegistrySizer) Len() int { return int(f) }

func TestRegistryCollectorReportsLiveLen(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewRegistryCollector(fakeRegistrySizer(3), nil)
	reg.MustRegister(c)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "quicbridge_connections" {
			continue
		}
		found = true
		got := mf.GetMetric()[0].GetGauge().GetValue()
		if got != 3 {
			t.Fatalf("got %v, want 3", got)
		}
	}
	if !found {
		t.Fatalf("quicbridge_connections metric not found")
	}
}

func TestObserveLogEventIncrementsPacketsReceived(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters := NewEventCounters(reg)

	e := transport.LogEvent{
		Time: time.Unix(0, 0),
		Type: "packet_received",
		Fields: []transport.LogField{
			{Key: "packet_type", Str: "1RTT"},
		},
	}
	counters.ObserveLogEvent(e)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "quicbridge_packets_received_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 1 {
		t.Fatalf("got %v, want 1", total)
	}
}
