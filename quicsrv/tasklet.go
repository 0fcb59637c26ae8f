package quicsrv

import (
	"net"
	"time"

	"github.com/quicbridge/engine/h3mux"
	"github.com/quicbridge/engine/transport"
)

// sender is the narrow contract a Tasklet needs to emit datagrams,
// satisfied by *net.UDPConn in both Server and Client.
type sender interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Tasklet is the connection-scoped cooperative task of /§5
// component 12: a single owner that drives recv -> parse -> decrypt ->
// dispatch -> build -> send for exactly one connection. All mutation of
// the connection happens inside run, which is the only goroutine that
// ever touches the wrapped *transport.Conn or *h3mux.Conn (
// "single-owner cooperative").
type Tasklet struct {
	c *Conn
	remote net.Addr
	udp sender
	handler Handler
	log *logger

	in chan []byte
	wake chan struct{}
	done chan struct{}
	onExit func(*Tasklet)

	sendBuf []byte
}

func newTasklet(c *Conn, remote net.Addr, udp sender, h Handler, lg *logger, onExit func(*Tasklet)) *Tasklet {
	t := &Tasklet{
		c: c,
		remote: remote,
		udp: udp,
		handler: h,
		log: lg,
		in: make(chan []byte, 32),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		onExit: onExit,
		sendBuf: make([]byte, transport.MaxPacketSize),
	}
	return t
}

// Deliver enqueues a received datagram for this connection. It never
// blocks the caller's read loop: a full queue means the tasklet is
// falling behind and the datagram is dropped, mirroring UDP's own
// best-effort delivery.
func (t *Tasklet) Deliver(b []byte) {
	cp := append([]byte(nil), b...)
	select {
	case t.in <- cp:
	default:
	}
}

// Wake re-triggers a processing pass without new input, used after a
// local WriteStream/Close call from outside the tasklet goroutine.
func (t *Tasklet) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Tasklet) run() {
	defer t.onExit(t)
	idle := time.NewTimer(24 * time.Hour)
	defer idle.Stop()
	t.rearm(idle)

	for {
		select {
		case b := <-t.in:
			if _, err := t.c.conn.Recv(b, time.Now()); err != nil {
				t.log.log(levelDebug, "recv error addr=%s err=%v", t.c.addr, err)
			}
			t.step()
		case <-t.wake:
			t.step()
		case <-idle.C:
			t.c.conn.OnTimeout()
			t.step()
		}
		t.rearm(idle)
		if t.c.conn.IsClosed() {
			return
		}
	}
}

// step implements one pass of the handshake-driver loop plus the
// §4.8 mux bridge: pump received mux bytes, flush queued mux output onto
// the QUIC stream, drain every packet the builder has ready, and deliver
// accumulated events to the handler.
func (t *Tasklet) step() {
	if err := t.c.pumpMux(); err != nil {
		code := h3mux.ErrInternalError
		if herr, ok := err.(*h3mux.Error); ok {
			code = herr.Code
		}
		t.c.conn.Close(true, uint64(code), "mux error")
	}
	if err := t.c.flushMux(); err != nil {
		t.log.log(levelError, "flushMux addr=%s err=%v", t.c.addr, err)
	}
	for {
		n, err := t.c.conn.Send(t.sendBuf)
		if err != nil {
			t.log.log(levelError, "send error addr=%s err=%v", t.c.addr, err)
			break
		}
		if n <= 0 {
			break
		}
		if _, err := t.udp.WriteTo(t.sendBuf[:n], t.remote); err != nil {
			t.log.log(levelError, "udp write addr=%s err=%v", t.c.addr, err)
			break
		}
	}
	if events := t.c.conn.Events(); len(events) > 0 && t.handler != nil {
		t.handler.Serve(t.c, events)
	}
}

func (t *Tasklet) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	d := t.c.conn.Timeout()
	if d <= 0 {
		d = 24 * time.Hour
	}
	timer.Reset(d)
}
