package quicsrv

import (
	"github.com/quicbridge/engine/h3mux"
	"github.com/quicbridge/engine/transport"
	"github.com/rs/xid"
)

// muxStreamID is the QUIC stream that carries the HTTP framing mux's
// byte stream (open question: mux_h3.c is treated as an
// HTTP/2-style framing layer, which multiplexes its own HEADERS/DATA
// streams atop a single ordered byte stream rather than individual QUIC
// stream ids; we carry that byte stream on the first client-initiated
// bidirectional QUIC stream, id 0, the same way HTTP/2 ran its framing
// directly over one TCP byte stream).
const muxStreamID = 0

// Conn is one QUIC connection as seen by a Handler: the transport engine
// plus, once established, the HTTP framing mux layered over it (
// "the two subsystems are tightly coupled through the same I/O tasklet").
type Conn struct {
	conn *transport.Conn
	mux *h3mux.Conn
	addr string

	// track is a sortable, loggable connection-tracking handle distinct
	// from the wire CID: unlike the peer-visible SCID, it is stable
	// across a CID update and safe to print in full in logs/metrics.
	track xid.ID

	cfg *Config

	closed bool
}

// RemoteAddr returns the connection's peer address in "ip:port" form.
func (c *Conn) RemoteAddr() string { return c.addr }

// TrackID returns the connection's log/metrics correlation handle.
func (c *Conn) TrackID() xid.ID { return c.track }

// Transport exposes the underlying transport.Conn for callers that need
// packet-level state (stats, events) beyond the mux.
func (c *Conn) Transport() *transport.Conn { return c.conn }

// Mux returns the HTTP framing mux, or nil before the handshake
// completes.
func (c *Conn) Mux() *h3mux.Conn { return c.mux }

// Close starts a locally initiated close of the connection.
func (c *Conn) Close(code uint64, reason string) error {
	if c.closed {
		return nil
	}
	return c.conn.Close(false, code, reason)
}

// pumpMux feeds any newly received bytes on muxStreamID into the HTTP
// framing mux once the handshake has completed, lazily constructing the
// mux on first use ('s demux FSM starts at PREFACE).
func (c *Conn) pumpMux() error {
	if !c.conn.IsEstablished() {
		return nil
	}
	if c.mux == nil {
		c.mux = h3mux.New(c.cfg.Mux)
	}
	for {
		b, ok := c.conn.ReadStream(muxStreamID)
		if !ok || len(b) == 0 {
			return nil
		}
		if err := c.mux.Write(b); err != nil {
			return err
		}
	}
}

// flushMux drains bytes the mux has queued for transmission onto
// muxStreamID. The mux's own send.go owns framing; quicsrv only needs to
// move its output buffer onto the QUIC stream.
func (c *Conn) flushMux() error {
	if c.mux == nil {
		return nil
	}
	out := c.mux.Drain()
	if len(out) == 0 {
		return nil
	}
	return c.conn.WriteStream(muxStreamID, out, false)
}
