package quicsrv

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/quicbridge/engine/transport"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

// Client dials outgoing QUIC connections: a single UDP socket can
// originate many connections, each driven by its own Tasklet.
type Client struct {
	cfg *Config
	handler Handler
	log *logger

	udp *net.UDPConn

	mu sync.Mutex
	tasklets map[string]*Tasklet // keyed by local SCID

	group *errgroup.Group
	gctx context.Context
	cancel context.CancelFunc
}

// NewClient builds a Client from cfg.
func NewClient(cfg *Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	return &Client{
		cfg: cfg,
		tasklets: make(map[string]*Tasklet),
		log: &logger{},
		group: g,
		gctx: gctx,
		cancel: cancel,
	}
}

// SetHandler installs the connection event handler.
func (c *Client) SetHandler(h Handler) { c.handler = h }

// SetLogger configures verbosity and destination.
func (c *Client) SetLogger(level int, w io.Writer) {
	c.log.level = logLevel(level)
	c.log.setWriter(w)
}

// SetMetrics wires a metrics.EventCounters into every connection's qlog
// stream; pass nil to disable.
func (c *Client) SetMetrics(m metricsSink) { c.log.SetMetrics(m) }

// ListenAndServe binds the local UDP socket used to originate
// connections and starts the shared read loop.
func (c *Client) ListenAndServe(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	c.udp = conn
	c.group.Go(func() error {
			return c.readLoop()
		})
	return nil
}

func (c *Client) readLoop() error {
	buf := make([]byte, c.cfg.readBufferSize())
	for {
		if c.gctx.Err() != nil {
			return nil
		}
		n, remote, err := c.udp.ReadFromUDP(buf)
		if err != nil {
			if c.gctx.Err() != nil {
				return nil
			}
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
		ph, err := transport.PeekHeader(buf[:n], transport.LocalCIDLength)
		if err != nil {
			continue
		}
		c.mu.Lock()
		t, ok := c.tasklets[string(ph.DCID)]
		c.mu.Unlock()
		if ok {
			t.Deliver(buf[:n])
			continue
		}
		_ = remote
	}
}

// Connect dials a new connection to addr ("CLIENT_INITIAL").
func (c *Client) Connect(addr string) error {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	scid, err := transport.NewRandomCID(transport.LocalCIDLength)
	if err != nil {
		return err
	}
	dcid, err := transport.NewRandomCID(transport.LocalCIDLength)
	if err != nil {
		return err
	}
	cfg := c.cfg.Transport
	cfg.TLS = c.cfg.TLSFactory(true)
	tc, err := transport.Connect(&cfg, scid, dcid)
	if err != nil {
		return err
	}
	conn := &Conn{conn: tc, addr: remote.String(), cfg: c.cfg, track: xid.New()}
	c.log.attachLogger(conn)

	t := newTasklet(conn, remote, c.udp, c.handler, c.log, c.onTaskletExit)
	c.mu.Lock()
	c.tasklets[string(scid)] = t
	c.mu.Unlock()

	c.group.Go(func() error {
			t.run()
			return nil
		})
	t.Wake()
	return nil
}

func (c *Client) onTaskletExit(t *Tasklet) {
	c.mu.Lock()
	delete(c.tasklets, string(t.c.conn.SCID()))
	c.mu.Unlock()
	c.log.detachLogger(t.c)
}

// Close stops the read loop and every live connection tasklet.
func (c *Client) Close() error {
	c.cancel()
	if c.udp != nil {
		c.udp.SetReadDeadline(time.Now())
		c.udp.Close()
	}
	return c.group.Wait()
}
