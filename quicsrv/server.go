package quicsrv

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/quicbridge/engine/registry"
	"github.com/quicbridge/engine/transport"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

// Server accepts QUIC connections on a UDP socket, dispatching datagrams
// to per-connection tasklets. The read loop is the only goroutine that
// ever calls registry.Lookup/Register; each tasklet afterwards owns its
// connection exclusively.
type Server struct {
	cfg *Config
	handler Handler
	log *logger

	reg *registry.Registry

	udp *net.UDPConn

	mu sync.Mutex
	tasklets map[string]*Tasklet // keyed by local SCID

	group *errgroup.Group
	gctx context.Context
	cancel context.CancelFunc
}

// NewServer builds a Server from cfg; call ListenAndServe to start
// accepting.
func NewServer(cfg *Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	return &Server{
		cfg: cfg,
		reg: registry.New(),
		tasklets: make(map[string]*Tasklet),
		log: &logger{},
		group: g,
		gctx: gctx,
		cancel: cancel,
	}
}

// SetHandler installs the connection event handler.
func (s *Server) SetHandler(h Handler) { s.handler = h }

// SetLogger configures verbosity and destination, matching Client's
// SetLogger signature.
func (s *Server) SetLogger(level int, w io.Writer) {
	s.log.level = logLevel(level)
	s.log.setWriter(w)
}

// Registry exposes the connection lookup tables for metrics.
func (s *Server) Registry() *registry.Registry { return s.reg }

// SetMetrics wires a metrics.EventCounters into every connection's qlog
// stream; pass nil to disable.
func (s *Server) SetMetrics(m metricsSink) { s.log.SetMetrics(m) }

// ListenAndServe binds addr and runs the accept loop until Close.
// Per-connection tasklets are spawned on the same errgroup: Close
// cancels the group's context and every tasklet's run loop observes it
// on its next wake-up.
func (s *Server) ListenAndServe(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.udp = conn
	s.group.Go(func() error {
			return s.readLoop()
		})
	return s.group.Wait()
}

func (s *Server) readLoop() error {
	buf := make([]byte, s.cfg.readBufferSize())
	for {
		if s.gctx.Err() != nil {
			return nil
		}
		n, remote, err := s.udp.ReadFromUDP(buf)
		if err != nil {
			if s.gctx.Err() != nil {
				return nil
			}
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
		s.dispatch(append([]byte(nil), buf[:n]...), remote)
	}
}

// dispatch looks up the connection by local SCID for steady-state
// packets, or by extended DCID for a client's first Initial; it
// allocates a fresh connection for an unmatched Initial, otherwise
// drops the datagram.
func (s *Server) dispatch(b []byte, remote *net.UDPAddr) {
	ph, err := transport.PeekHeader(b, transport.LocalCIDLength)
	if err != nil {
		return
	}
	addrKey := remote.String()

	if !ph.IsLong {
		if e, ok := s.reg.Lookup(ph.DCID); ok {
			e.Wake()
			if t, ok := s.taskletFor(e); ok {
				t.Deliver(b)
			}
			return
		}
		return
	}

	if ph.Type != "initial" {
		if e, ok := s.reg.Lookup(ph.DCID); ok {
			if t, ok := s.taskletFor(e); ok {
				t.Deliver(b)
			}
		}
		return
	}

	if e, ok := s.reg.LookupInitial(ph.DCID, addrKey); ok {
		if t, ok := s.taskletFor(e); ok {
			t.Deliver(b)
		}
		return
	}
	if e, ok := s.reg.Lookup(ph.DCID); ok {
		if t, ok := s.taskletFor(e); ok {
			t.Deliver(b)
		}
		return
	}

	s.acceptNew(ph, b, remote, addrKey)
}

func (s *Server) acceptNew(ph transport.PeekedHeader, b []byte, remote *net.UDPAddr, addrKey string) {
	scid, err := transport.NewRandomCID(transport.LocalCIDLength)
	if err != nil {
		return
	}
	odcid := ph.DCID
	if s.cfg.RetryValidator != nil {
		// Once a token is present we validate it and restore the
		// client's original DCID; this engine does not emit Retry packets
		// itself, so the gate only restores address-validation state for
		// callers that already carry a token (e.g. issued by a front-end
		// load balancer sharing this key).
		if len(ph.Token) > 0 {
			orig, err := s.cfg.RetryValidator.Validate(ph.Token, addrKey, time.Now())
			if err != nil {
				return
			}
			odcid = orig
		}
	}
	cfg := s.cfg.Transport
	cfg.TLS = s.cfg.TLSFactory(false)
	tc, err := transport.Accept(&cfg, odcid, ph.DCID, scid)
	if err != nil {
		return
	}
	c := &Conn{conn: tc, addr: addrKey, cfg: s.cfg, track: xid.New()}
	s.log.attachLogger(c)

	entry := &registry.Entry{Conn: tc, SCID: scid, TrackID: c.track}
	t := newTasklet(c, remote, s.udp, s.handler, s.log, s.onTaskletExit)
	entry.Wake = t.Wake

	s.reg.RegisterInitial(ph.DCID, addrKey, entry)
	s.reg.RegisterSCID(scid, entry)

	s.mu.Lock()
	s.tasklets[string(scid)] = t
	s.mu.Unlock()

	s.group.Go(func() error {
			t.run()
			return nil
		})
	t.Deliver(b)
}

func (s *Server) taskletFor(e *registry.Entry) (*Tasklet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasklets[string(e.SCID)]
	return t, ok
}

func (s *Server) onTaskletExit(t *Tasklet) {
	s.reg.Remove([]transport.CID{t.c.conn.SCID()})
	s.mu.Lock()
	delete(s.tasklets, string(t.c.conn.SCID()))
	s.mu.Unlock()
	s.log.detachLogger(t.c)
}

// Close stops the accept loop and every live tasklet, waiting for them
// to exit.
func (s *Server) Close() error {
	s.cancel()
	if s.udp != nil {
		s.udp.SetReadDeadline(time.Now())
		s.udp.Close()
	}
	return s.group.Wait()
}
