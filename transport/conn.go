package transport

import (
	"time"
)

// EventType enumerates the notifications a Conn surfaces to its owner
// (quicsrv), generalizing addEvent/Events mechanism.
type EventType uint8

const (
	EventConnAccept EventType = iota
	EventConnEstablished
	EventConnClose
	EventStream
	EventStreamReadable
	EventStreamWritable
)

type Event struct {
	Type EventType
	StreamID uint64
}

func (t EventType) String() string {
	switch t {
	case EventConnAccept:
		return "conn_accept"
	case EventConnEstablished:
		return "conn_established"
	case EventConnClose:
		return "conn_close"
	case EventStream:
		return "stream"
	case EventStreamReadable:
		return "stream_readable"
	case EventStreamWritable:
		return "stream_writable"
	default:
		return "unknown"
	}
}

// connLevel groups one encryption level's pn space, crypto stream, and
// loss-detection state ("Encryption level").
type connLevel struct {
	pnSpace *packetNumberSpace
	crypto *cryptoStream
	loss *lossState
	pending [][]byte // datagrams buffered because rx secrets weren't set yet (step 6)
}

// Conn is a single QUIC connection ("QUIC connection"), driven
// entirely from within its owning tasklet . All exported
// methods assume single-threaded access by that tasklet; migration and
// idle-list membership are the only operations meant to cross threads,
// and those are implemented in quicsrv, not here.
type Conn struct {
	config *Config

	version uint32
	isClient bool

	odcid CID // original destination CID (server only, for transport params)
	dcid CID // current peer CID we address packets to
	scid CID // our current local CID

	localCIDSeq uint64

	levels [levelCount]connLevel
	hs *handshakeDriver

	state handshakeState

	localParams Parameters
	peerParams *Parameters

	connTxFlow flowControl // our sends vs. peer's MAX_DATA
	connRxFlow flowControl // peer's sends vs. our MAX_DATA

	streams *streamMap

	idleTimeout time.Duration
	lastRecvTime time.Time

	// anti-amplification: until the peer's address is validated (a
	// Handshake-level packet has been received from it), bytes sent are
	// bounded relative to bytes received (RFC 9001 §8, carried as ambient
	// protocol hygiene alongside this design's explicit invariants).
	addressValidated bool
	bytesReceived uint64
	bytesSent uint64

	closed bool
	closeErr *Error
	closeIsApp bool
	drainingTime time.Time

	events []Event

	logger func(LogEvent)

	now time.Time
}

func newConn(config *Config, isClient bool, odcid, dcid, scid CID) *Conn {
	c := &Conn{
		config: config,
		version: config.Version,
		isClient: isClient,
		odcid: odcid,
		dcid: dcid.Clone(),
		scid: scid.Clone(),
		localParams: config.Params,
		streams: newStreamMap(),
		idleTimeout: config.MaxIdleTime,
		now: time.Now(),
	}
	c.connTxFlow = flowControl{limit: 0}
	c.connRxFlow = flowControl{limit: config.Params.InitialMaxData}
	c.hs = newHandshakeDriver(config.TLS, isClient, dcid)
	for i := range c.hs.levels {
		c.levels[i].pnSpace = &c.hs.levels[i].pnSpace
		c.levels[i].crypto = &c.hs.levels[i].crypto
		c.levels[i].loss = newLossState(Level(i).Space())
	}
	config.TLS.SetTransportParams(&c.localParams)
	return c
}

// Connect creates a client-initiated connection ("CLIENT_INITIAL").
func Connect(config *Config, scid, dcid CID) (*Conn, error) {
	if config == nil || config.TLS == nil {
		return nil, newError(InternalError, "config/TLS required")
	}
	c := newConn(config, true, nil, dcid, scid)
	c.state = stateInitial
	if err := c.hs.progress(); err != nil {
		return nil, err
	}
	return c, nil
}

// Accept creates a server-side connection from a client's first Initial
// packet (step 5 "allocate one per §4.10").
func Accept(config *Config, odcid, dcid, scid CID) (*Conn, error) {
	if config == nil || config.TLS == nil {
		return nil, newError(InternalError, "config/TLS required")
	}
	c := newConn(config, false, odcid, dcid, scid)
	c.state = stateInitial
	c.localParams.OriginalDestinationCID = odcid
	config.TLS.SetTransportParams(&c.localParams)
	return c, nil
}

// IsEstablished reports whether the handshake has completed.
func (c *Conn) IsEstablished() bool {
	return c.state == stateHandshakeDone
}

// IsClosed reports whether the connection has entered its terminal state.
func (c *Conn) IsClosed() bool {
	return c.state == stateClosed
}

// Events drains and returns events accumulated since the last call.
func (c *Conn) Events() []Event {
	ev := c.events
	c.events = nil
	return ev
}

func (c *Conn) addEvent(e Event) {
	c.events = append(c.events, e)
}

// OnLogEvent attaches (or, with a nil argument, detaches) a qlog-style
// event sink, mirroring per-transaction logger attachment
// ("global mutable state" redesign: the sink is owned by the
// connection's constructor, not a package-level variable).
func (c *Conn) OnLogEvent(f func(LogEvent)) {
	c.logger = f
}

// SCID returns the connection's current local connection ID.
func (c *Conn) SCID() CID {
	return c.scid
}

// DCID returns the connection ID this endpoint currently addresses
// packets to.
func (c *Conn) DCID() CID {
	return c.dcid
}

// Recv processes one received datagram, applying the packet parser to
// every coalesced packet it contains.
func (c *Conn) Recv(b []byte, now time.Time) (int, error) {
	c.now = now
	c.lastRecvTime = now
	c.bytesReceived += uint64(len(b))

	total := 0
	for len(b) > 0 {
		n, err := c.recvOne(b, LocalCIDLength, now)
		if err != nil {
			c.logDropped(err)
			return total, err
		}
		if n <= 0 {
			break
		}
		total += n
		b = b[n:]
	}
	if err := c.driveHandshake(); err != nil {
		c.enterClosing(err, false)
	}
	return total, nil
}

func (c *Conn) recvOne(b []byte, dcidLen int, now time.Time) (int, error) {
	h, err := decodeHeader(b, dcidLen)
	if err != nil {
		return 0, err
	}
	if h.typ == packetTypeVersionNegotiation {
		return len(b), nil // version negotiation handling is out of scope (edge case)
	}
	level := h.typ.level()
	lvl := &c.levels[level]

	keys := &c.hs.levels[level].keys.rx
	if !keys.set {
		lvl.pending = append(lvl.pending, append([]byte(nil), b...))
		return len(b), nil
	}

	lc := &c.hs.levels[level]
	var altKeys *levelKeys
	if level == LevelApplication {
		altKeys, _ = lc.deriveNextRx() // best-effort; nil on derivation failure just disables the fallback
	}
	pp, n, err := parsePacketKeyPhase(b, dcidLen, keys, lvl.pnSpace, lc.keyPhaseRx, altKeys)
	if err != nil {
		return 0, err
	}
	if level == LevelApplication && pp.header.keyPhase != lc.keyPhaseRx {
		lc.commitNextRx() // packet opened under the next generation: adopt it (RFC 9001 §6)
	}
	if lvl.pnSpace.isPacketReceived(pp.header.packetNum) {
		return n, nil // duplicate, silently dropped
	}
	if level == LevelHandshake {
		c.addressValidated = true
	}
	lvl.pnSpace.onPacketReceived(pp.header.packetNum, now)
	if c.logger != nil {
		c.logger(newLogEventPacket(now, logEventPacketReceived, pp.header, len(pp.payload)))
	}
	if err := c.recvFrames(level, pp.payload); err != nil {
		return 0, err
	}
	return n, nil
}

// recvFrames dispatches every frame in a decrypted packet's payload,
// mirroring recvFrames switch over frame type codes.
func (c *Conn) recvFrames(level Level, b []byte) error {
	lvl := &c.levels[level]
	ackEliciting := false
	for len(b) > 0 {
		typ := b[0]
		switch {
		case typ == frameTypePadding:
			f := &paddingFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			continue
		case typ == frameTypePing:
			f := &pingFrame{}
			n, _ := f.decode(b)
			b = b[n:]
		case typ == frameTypeAck || typ == frameTypeAckECN:
			f := &ackFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if c.logger != nil {
				c.logger(newLogEventFrame(c.now, logEventFramesProcessed, f))
			}
			if err := c.onAckFrame(level, f); err != nil {
				return err
			}
			continue
		case typ == frameTypeCrypto:
			f := &cryptoFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if c.logger != nil {
				c.logger(newLogEventFrame(c.now, logEventFramesProcessed, f))
			}
			if err := c.hs.feedCrypto(level, f.offset, f.data); err != nil {
				return err
			}
		case typ == frameTypeNewToken:
			f := &newTokenFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
		case typ >= frameTypeStream && typ <= frameTypeStreamEnd:
			f := &streamFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if c.logger != nil {
				c.logger(newLogEventFrame(c.now, logEventFramesProcessed, f))
			}
			if err := c.onStreamFrame(f); err != nil {
				return err
			}
		case typ == frameTypeMaxData:
			f := &maxDataFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			c.connTxFlow.setLimit(f.maximumData)
		case typ == frameTypeMaxStreamData:
			f := &maxStreamDataFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if s, ok := c.streams.get(f.streamID); ok {
				s.tx.setLimit(f.maximumData)
			}
		case typ == frameTypeMaxStreamsBidi || typ == frameTypeMaxStreamsUni:
			f := &maxStreamsFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
		case typ == frameTypeDataBlocked:
			f := &dataBlockedFrame{}
			n, _ := f.decode(b)
			b = b[n:]
		case typ == frameTypeStreamDataBlocked:
			f := &streamDataBlockedFrame{}
			n, _ := f.decode(b)
			b = b[n:]
		case typ == frameTypeStreamsBlockedBidi || typ == frameTypeStreamsBlockedUni:
			f := &streamsBlockedFrame{}
			n, _ := f.decode(b)
			b = b[n:]
		case typ == frameTypeResetStream:
			f := &resetStreamFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if s, ok := c.streams.get(f.streamID); ok {
				s.resetByPeer = true
			}
			c.addEvent(Event{Type: EventStreamReadable, StreamID: f.streamID})
		case typ == frameTypeStopSending:
			f := &stopSendingFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
		case typ == frameTypeNewConnectionID:
			f := &newConnectionIDFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
		case typ == frameTypeRetireConnectionID:
			f := &retireConnectionIDFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
		case typ == frameTypeConnectionClose || typ == frameTypeApplicationClose:
			f := &connectionCloseFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			c.setDraining()
			c.addEvent(Event{Type: EventConnClose})
			return nil
		case typ == frameTypeHanshakeDone:
			f := &handshakeDoneFrame{}
			n, err := f.decode(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if c.isClient {
				c.state = stateHandshakeDone
				c.addEvent(Event{Type: EventConnEstablished})
			}
		default:
			return newError(FrameEncodingError, "unknown frame type")
		}
		ackEliciting = true
	}
	if ackEliciting {
		lvl.pnSpace.onAckEliciting()
	}
	return nil
}

func (c *Conn) onStreamFrame(f *streamFrame) error {
	s := c.streams.getOrCreate(f.streamID, c.localParams.InitialMaxStreamDataBidiRemote, c.peerInitialMaxStreamData())
	if err := s.onStreamFrame(f.offset, f.data, f.fin); err != nil {
		return err
	}
	c.addEvent(Event{Type: EventStream, StreamID: f.streamID})
	c.addEvent(Event{Type: EventStreamReadable, StreamID: f.streamID})
	return nil
}

func (c *Conn) peerInitialMaxStreamData() uint64 {
	if c.peerParams != nil {
		return c.peerParams.InitialMaxStreamDataBidiLocal
	}
	return 0
}

// onAckFrame implements the ACK processing pipeline of .
func (c *Conn) onAckFrame(level Level, f *ackFrame) error {
	pnSpace := c.levels[level].pnSpace
	if int64(f.firstAckRange) > f.largestAck || f.largestAck > pnSpace.txNextPN {
		return newError(ProtocolViolation, "ack beyond tx.next_pn")
	}
	pnSpace.onAcked(f.largestAck)
	acked := f.toRangeSet()
	loss := c.levels[level].loss
	loss.processAck(acked, ackCallbacks{
			onCryptoAcked: func(offset uint64, length int) { c.hs.onCryptoAcked(level, offset, length) },
			onCryptoLost: func(offset uint64, length int) {
				c.hs.onCryptoLost(level, offset, length)
			},
			onHandshakeDoneAcked: func() {},
		})
	return nil
}

// driveHandshake implements 's per-wake-up loop. Installing a
// level's rx secrets can unblock packets buffered earlier in the same
// Recv call (step 6: a coalesced Handshake packet arriving
// before its keys exist is archived in that level's pending queue
// rather than dropped); each round that installs new rx keys drains the
// newly readable levels and is re-run, since draining one level's
// pending packets can itself feed the CRYPTO stream that unlocks the
// next level.
func (c *Conn) driveHandshake() error {
	for {
		var hadRx [levelCount]bool
		for i := range c.hs.levels {
			hadRx[i] = c.hs.levels[i].keys.rx.set
		}
		if err := c.hs.progress(); err != nil {
			return err
		}
		c.state = c.hs.state
		if c.peerParams == nil {
			if pp := c.hs.tls.PeerTransportParams(); pp != nil {
				c.peerParams = pp
				c.connTxFlow.setLimit(pp.InitialMaxData)
			}
		}

		unlocked := false
		for i := range c.hs.levels {
			if !hadRx[i] && c.hs.levels[i].keys.rx.set {
				if err := c.drainPendingLevel(Level(i)); err != nil {
					return err
				}
				unlocked = true
			}
		}
		if !unlocked {
			break
		}
	}
	if c.state == stateHandshakeDone {
		c.addEvent(Event{Type: EventConnEstablished})
	}
	return nil
}

// drainPendingLevel reprocesses every datagram suffix buffered at level
// because its rx keys were not yet installed when first received,
// now that installSecrets has supplied them. Each buffered entry is the
// remainder of its original datagram starting at the packet that
// couldn't be opened, so it may itself contain further coalesced
// packets and is walked the same way Recv walks a fresh datagram.
func (c *Conn) drainPendingLevel(level Level) error {
	lvl := &c.levels[level]
	pending := lvl.pending
	lvl.pending = nil
	for _, b := range pending {
		for len(b) > 0 {
			n, err := c.recvOne(b, LocalCIDLength, c.now)
			if err != nil {
				c.logDropped(err)
				return err
			}
			if n <= 0 {
				break
			}
			b = b[n:]
		}
	}
	return nil
}

// Send produces the next outgoing datagram into out, per the builder's
// return discipline : n>0 committed, 0 nothing to send, err
// signaling full/fatal as documented on buildPacket.
func (c *Conn) Send(out []byte) (int, error) {
	if c.closed {
		return 0, nil
	}
	// Anti-amplification (RFC 9001 §8,): until the peer's
	// address is validated, a server may send at most 3x what it has
	// received.
	if !c.isClient && !c.addressValidated {
		budget := int64(c.bytesReceived)*3 - int64(c.bytesSent)
		if budget <= 0 {
			return 0, nil
		}
		if int64(len(out)) > budget {
			out = out[:budget]
		}
	}
	for level := LevelInitial; level < levelCount; level++ {
		lvl := &c.levels[level]
		keys := &c.hs.levels[level].keys.tx
		if !keys.set {
			continue
		}
		in := &buildInput{
			level: level,
			version: c.version,
			dcid: c.dcid,
			scid: c.scid,
			isClient: c.isClient,
			padToMin: c.isClient,
			pnSpace: lvl.pnSpace,
			keys: keys,
			cryptoInFlight: &c.hs.cryptoInFlight,
			ackRequired: lvl.pnSpace.ackRequired,
			ackDelay: 0,
		}
		if level.hasCryptoStream() {
			in.crypto = lvl.crypto
		}
		var candidate *pendingStreamSend
		if level == LevelApplication {
			in.keyPhase = c.hs.levels[LevelApplication].keyPhaseTx
			if c.state == stateHandshakeDone && !c.isClient {
				in.controlFrames = append(in.controlFrames, &handshakeDoneFrame{})
			}
			if c.state == stateHandshakeDone {
				candidate = c.nextStreamFrame(&in.streamFrames)
			}
		}
		n, desc, err := buildPacket(in, out)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			lvl.loss.onSent(desc)
			c.bytesSent += uint64(n)
			if c.logger != nil {
				c.logger(newLogEventPacketSent(c.now, level, desc.pn, n))
			}
			if candidate != nil && len(desc.streamIDs) > 0 {
				candidate.stream.send.markSent(candidate.n, candidate.fin)
				candidate.stream.tx.consume(candidate.n)
				c.connTxFlow.consume(candidate.n)
			}
			return n, nil
		}
	}
	return 0, nil
}

// streamSendQuantum bounds a single offered STREAM frame's payload so it
// reliably fits alongside any ACK/control/CRYPTO frames already claimed
// from the packet budget ('s per-packet budget accounting is
// exact for those frames but, per , this engine multiplexes
// at most one application stream's bytes per outgoing packet).
const streamSendQuantum = 1200

// pendingStreamSend records what nextStreamFrame offered, so Send can
// confirm the exact byte count actually included once buildPacket
// reports success.
type pendingStreamSend struct {
	stream *quicStream
	n int
	fin bool
}

// nextStreamFrame picks one stream with pending outbound bytes (bounded
// by its own and the connection's flow-control window) and appends a
// STREAM frame for it to frames.
func (c *Conn) nextStreamFrame(frames *[]frame) *pendingStreamSend {
	for id, s := range c.streams.streams {
		offset, pending, fin := s.send.pending()
		if len(pending) == 0 && !fin {
			continue
		}
		avail := s.tx.available()
		if connAvail := c.connTxFlow.available(); connAvail < avail {
			avail = connAvail
		}
		n := len(pending)
		if uint64(n) > avail {
			n = int(avail)
		}
		if n > streamSendQuantum {
			n = streamSendQuantum
		}
		if n == 0 && len(pending) > 0 {
			continue
		}
		sendFin := fin && n == len(pending)
		*frames = append(*frames, newStreamFrame(id, pending[:n], offset, sendFin))
		return &pendingStreamSend{stream: s, n: n, fin: sendFin}
	}
	return nil
}

// Timeout returns how long until the connection's idle timer fires
// ("a timer expires" suspension point).
func (c *Conn) Timeout() time.Duration {
	if c.idleTimeout <= 0 {
		return 0
	}
	elapsed := c.now.Sub(c.lastRecvTime)
	if elapsed >= c.idleTimeout {
		return 0
	}
	return c.idleTimeout - elapsed
}

// OnTimeout is invoked by the owning tasklet when Timeout has elapsed.
func (c *Conn) OnTimeout() {
	if c.state == stateDraining {
		c.state = stateClosed
		c.closed = true
		c.addEvent(Event{Type: EventConnClose})
		return
	}
	c.enterClosing(newError(NoError, "idle timeout"), false)
}

// UpdateKeys triggers a local key update at the Application level (RFC
// 9001 §6.1, "Key update").
func (c *Conn) UpdateKeys() error {
	if c.state != stateHandshakeDone {
		return newError(KeyUpdateError, "handshake not complete")
	}
	return c.hs.initiateKeyUpdate()
}

// Close starts a locally initiated close (propagation: "Any
// write to an already-errored connection is a no-op").
func (c *Conn) Close(app bool, code uint64, reason string) error {
	if c.closed {
		return nil
	}
	c.enterClosing(&Error{Code: TransportError(code), Reason: reason}, app)
	return nil
}

func (c *Conn) enterClosing(err *Error, app bool) {
	if c.closed {
		return
	}
	c.closeErr = err
	c.closeIsApp = app
	c.state = stateClosing
	c.closed = true
	c.addEvent(Event{Type: EventConnClose})
}

func (c *Conn) setDraining() {
	c.state = stateDraining
	c.drainingTime = c.now
}

func (c *Conn) logDropped(err error) {
	if c.logger == nil {
		return
	}
	c.logger(newLogEventPacketDropped(err))
}

// minInt mirrors small helper of the same name.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
