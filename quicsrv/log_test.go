package quicsrv

import (
	"strings"
	"testing"
	"time"

	"github.com/quicbridge/engine/transport"
)

func TestFormatLogEventIncludesPrefixAndFields(t *testing.T) {
	e := transport.LogEvent{
		Time: time.Unix(0, 0),
		Type: "packet_received",
		Fields: []transport.LogField{
			{Key: "packet_type", Str: "1RTT"},
		},
	}
	got := string(formatLogEvent(e, "addr=127.0.0.1:4433 scid=aabb"))
	for _, want := range []string{"packet_received", "addr=127.0.0.1:4433 scid=aabb", "packet_type"} {
		if !strings.Contains(got, want) {
			t.Fatalf("formatLogEvent output %q missing %q", got, want)
		}
	}
}

type countingMetrics struct{ n int }

func (c *countingMetrics) ObserveLogEvent(e transport.LogEvent) { c.n++ }

func TestTransactionLoggerFansOutToMetricsAndText(t *testing.T) {
	var sb strings.Builder
	m := &countingMetrics{}
	tl := transactionLogger{writer: &sb, prefix: "p", textLogged: true, metrics: m}
	tl.logEvent(transport.LogEvent{Time: time.Unix(0, 0), Type: "packet_sent"})
	if m.n != 1 {
		t.Fatalf("expected metrics sink to observe one event, got %d", m.n)
	}
	if sb.Len() == 0 {
		t.Fatalf("expected text log output, got none")
	}
}

func TestTransactionLoggerSkipsTextWhenDisabled(t *testing.T) {
	var sb strings.Builder
	tl := transactionLogger{writer: &sb, textLogged: false}
	tl.logEvent(transport.LogEvent{Time: time.Unix(0, 0), Type: "packet_sent"})
	if sb.Len() != 0 {
		t.Fatalf("expected no text output when textLogged is false, got %q", sb.String())
	}
}
