package quicsrv

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quicbridge/engine/transport"
)

// metricsSink is the narrow contract this package needs from
// metrics.EventCounters, kept local so quicsrv need not import metrics
// when a caller has no use for Prometheus.
type metricsSink interface {
	ObserveLogEvent(e transport.LogEvent)
}

// logLevel is a small off/error/info/debug/trace verbosity scale for
// quicbridged, backed by a purpose-built event sink on the hot path
// rather than a general-purpose logging library.
type logLevel int

const (
	levelOff logLevel = iota
	levelError
	levelInfo
	levelDebug
	levelTrace
)

// logger writes formatted QUIC transaction lines, attaching a
// per-connection transactionLogger only at levelDebug and above or when
// a metrics sink is set, so the hot receive/send path pays no cost
// otherwise.
type logger struct {
	level logLevel
	mu sync.Mutex
	writer io.Writer
	metrics metricsSink
}

func (s *logger) setWriter(w io.Writer) {
	s.mu.Lock()
	s.writer = w
	s.mu.Unlock()
}

func (s *logger) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return len(b), nil
	}
	return s.writer.Write(b)
}

func (s *logger) log(level logLevel, format string, values ...interface{}) {
	if s.level < level || s.writer == nil {
		return
	}
	b := bytes.Buffer{}
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(" ")
	fmt.Fprintf(&b, format, values...)
	b.WriteString("\n")
	s.Write(b.Bytes())
}

// attachLogger wires a connection's qlog event stream to this logger's
// writer, prefixed with its address and SCID.
func (s *logger) attachLogger(c *Conn) {
	textEnabled := s.level >= levelDebug && s.writer != nil
	if !textEnabled && s.metrics == nil {
		return
	}
	tl := transactionLogger{
		writer: s,
		prefix: fmt.Sprintf("track=%s addr=%s scid=%x", c.track, c.addr, c.conn.SCID()),
		textLogged: textEnabled,
		metrics: s.metrics,
	}
	c.conn.OnLogEvent(tl.logEvent)
}

func (s *logger) detachLogger(c *Conn) {
	c.conn.OnLogEvent(nil)
}

// SetMetrics wires a metrics.EventCounters into every connection's qlog
// stream alongside the text logger (hot-path event format;
// metrics/metrics.go's ObserveLogEvent consumes the same events).
func (s *logger) SetMetrics(m metricsSink) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

type transactionLogger struct {
	writer io.Writer
	prefix string
	textLogged bool
	metrics metricsSink
}

func (s *transactionLogger) logEvent(e transport.LogEvent) {
	if s.textLogged {
		s.writer.Write(formatLogEvent(e, s.prefix))
	}
	if s.metrics != nil {
		s.metrics.ObserveLogEvent(e)
	}
}

func formatLogEvent(e transport.LogEvent, prefix string) []byte {
	b := bytes.Buffer{}
	b.WriteString(e.Time.Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(e.Type)
	if prefix != "" {
		b.WriteString(" ")
		b.WriteString(prefix)
	}
	for _, f := range e.Fields {
		b.WriteString(" ")
		b.WriteString(f.String())
	}
	b.WriteString("\n")
	return b.Bytes()
}
