package quicsrv

import "github.com/quicbridge/engine/transport"

// Handler is notified of per-connection events: one callback per
// tasklet wake-up, carrying every event accumulated since the previous
// call.
type Handler interface {
	Serve(c *Conn, events []transport.Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(c *Conn, events []transport.Event)

func (f HandlerFunc) Serve(c *Conn, events []transport.Event) { f(c, events) }
