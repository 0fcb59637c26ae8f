package h3mux

import (
	"github.com/quicbridge/engine/internal/ring"
)

// demuxState is the top-level FSM of : "PREFACE -> SETTINGS1 ->
// FRAME_H <-> FRAME_P (payload) -> (FRAME_A ... or FRAME_E) -> back to
// FRAME_H. Errors transition to ERROR -> ERROR2".
type demuxState uint8

const (
	statePreface demuxState = iota
	stateSettings1
	stateFrameHeader
	stateFramePayload
	stateFrameAck // FRAME_A: send ack/WINDOW_UPDATE reaction to the frame just parsed
	stateFrameErr // FRAME_E: send RST_STREAM reaction to the frame just parsed
	stateError
	stateError2
)

// connFlags are one-shot latched connection events (redesign
// note, same partitioning as streamFlags).
type connFlags uint16

const (
	flagGoAwaySent connFlags = 1 << iota
	flagGoAwayFailed
	flagGoAwayFinal
	flagPrefaceSeen
)

// Conn is one HTTP framing-mux connection ("Mux connection"),
// layered over a single in-order byte channel (ambiguity
// about whether this rides QUIC STREAM frames directly or a dedicated
// control stream is left unresolved per 's open question; h3mux
// only assumes "a reliable in-order byte stream" and is fed via Write).
type Conn struct {
	cfg Config
	state demuxState
	flags connFlags
	err error

	codec *headerCodec

	streams map[uint32]*Stream
	sendList []uint32
	fctlList []uint32
	blockedList []uint32

	maxID uint32 // highest peer-initiated stream id opened by a received HEADERS
	lastSID int64 // -1 until GOAWAY decides a cutoff ("last_sid >= 0 prevents new outgoing stream allocation")
	nbStreams int
	nbReserved int

	mws int64 // connection send window ("mws"); may go transiently negative
	miw uint32 // current per-stream initial window ("miw")
	mfs uint32 // peer's advertised max frame size, bounds our outgoing frames

	recvBuf holeBuffer // demux scratch input
	hdrBuf holeBuffer // folded HEADERS+CONTINUATION payload

	// demux frame scratch: dsi/dft/dff/dfl/dpl of .
	dsi uint32
	dft frameType
	dff uint8
	dfl uint32
	dpl uint32 // payload bytes of the current frame still to be consumed

	headerStreamID uint32 // stream id the in-progress HEADERS/CONTINUATION sequence belongs to
	headerEndStream bool

	out *ring.Ring // mbuf: power-of-two ring of outgoing frame buffers ("mbuf ring (power-of-two, 32 slots)")

	// nextOutgoingID tracks the next id this side will allocate for a
	// locally initiated stream (client: odd, server: even;
	// "client-odd, server-even for HTTP/2-style id discipline").
	nextOutgoingID uint32
}

const defaultMbufSlots = 32

// New creates a connection-side mux state machine; cfg.IsServer selects
// the server or client role.
func New(cfg Config) *Conn {
	cfg.normalize()
	c := &Conn{
		cfg: cfg,
		state: statePreface,
		codec: newHeaderCodec(cfg.HeaderTableSize),
		streams: make(map[uint32]*Stream),
		lastSID: -1,
		mws: defaultInitialWindowSize,
		miw: cfg.InitialWindowSize,
		mfs: defaultMaxFrameSize,
		out: ring.New(defaultMbufSlots, int(cfg.MaxFrameSize)+FrameHeaderLen),
	}
	if cfg.IsServer {
		c.nextOutgoingID = 2
	} else {
		c.nextOutgoingID = 1
		// Clients don't read a preface off the wire; go straight to
		// sending/expecting SETTINGS.
		c.state = stateSettings1
	}
	return c
}

// Preface returns the bytes a client must send before SETTINGS (
// "9-byte frame header"; the preface itself predates per-frame framing).
func Preface() []byte { return append([]byte(nil), connPreface...) }

// Err returns the latched connection error, if the FSM has entered
// ERROR/ERROR2.
func (c *Conn) Err() error { return c.err }

// Write feeds newly received bytes (already stripped of any lower-layer
// framing) into the demuxer and drives the FSM as far as it can go.
func (c *Conn) Write(b []byte) error {
	if c.state == stateError || c.state == stateError2 {
		return nil // : "Any write to an already-errored connection is a no-op returning zero"
	}
	c.recvBuf.append(b)
	return c.demux()
}

func (c *Conn) demux() error {
	for {
		switch c.state {
		case statePreface:
			if c.recvBuf.len() < len(connPreface) {
				return nil
			}
			if string(c.recvBuf.readInOrder()[:len(connPreface)]) != string(connPreface) {
				return c.fail(newConnError(ErrProtocolError, "bad connection preface"))
			}
			c.recvBuf.off += len(connPreface)
			c.flags |= flagPrefaceSeen
			c.state = stateSettings1
		case stateSettings1:
			hdr, ok, err := c.peekFrameHeader()
			if err != nil {
				return c.fail(err)
			}
			if !ok {
				return nil
			}
			if hdr.typ != frameSettings || hdr.flags&flagAck != 0 {
				return c.fail(newConnError(ErrProtocolError, "expected initial SETTINGS"))
			}
			c.state = stateFrameHeader
		case stateFrameHeader:
			hdr, ok, err := c.peekFrameHeader()
			if err != nil {
				return c.fail(err)
			}
			if !ok {
				c.recvBuf.compactIfNeeded()
				return nil
			}
			c.recvBuf.off += FrameHeaderLen
			c.dsi, c.dft, c.dff, c.dfl = hdr.streamID, hdr.typ, hdr.flags, hdr.length
			c.dpl = hdr.length
			c.state = stateFramePayload
		case stateFramePayload:
			if uint32(c.recvBuf.len()) < c.dpl {
				return nil
			}
			payload := c.recvBuf.readInOrder()[:c.dpl]
			c.recvBuf.off += int(c.dpl)
			if err := c.dispatchFrame(payload); err != nil {
				// Stream-scoped errors reset the one stream and the
				// connection continues (propagation); only
				// connection-scoped errors kill the FSM.
				if herr, ok := err.(*Error); ok && herr.Scope == ScopeStream {
					c.resetStream(c.dsi, herr.Code)
				} else {
					return c.fail(err)
				}
			}
			c.recvBuf.compactIfNeeded()
			c.state = stateFrameHeader
		case stateError, stateError2:
			return nil
		}
	}
}

func (c *Conn) peekFrameHeader() (frameHeader, bool, error) {
	if c.recvBuf.len() < FrameHeaderLen {
		return frameHeader{}, false, nil
	}
	hdr, err := decodeFrameHeader(c.recvBuf.readInOrder())
	if err != nil {
		return frameHeader{}, false, err
	}
	if hdr.length > c.cfg.MaxFrameSize {
		return frameHeader{}, false, newConnError(ErrFrameSizeError, "frame exceeds max_frame_size")
	}
	return hdr, true, nil
}

func (c *Conn) fail(err error) error {
	c.state = stateError
	c.err = err
	return err
}

// dispatchFrame implements 's "Frame validity vs. state" table
// plus ordinary frame handling.
func (c *Conn) dispatchFrame(payload []byte) error {
	// Mid-HEADERS-sequence: only CONTINUATION on the same stream is legal
	// ("CONTINUATION not preceded by HEADERS/.../CONTINUATION ->
	// connection PROTOCOL_ERROR", and the converse).
	if c.headerStreamID != 0 {
		if c.dft != frameContinuation || c.dsi != c.headerStreamID {
			return newConnError(ErrProtocolError, "expected CONTINUATION on same stream")
		}
	} else if c.dft == frameContinuation {
		return newConnError(ErrProtocolError, "CONTINUATION without preceding HEADERS")
	}

	switch c.dft {
	case frameSettings:
		return c.onSettings(payload)
	case frameWindowUpdate:
		return c.onWindowUpdate(payload)
	case frameHeaders:
		return c.onHeaders(payload)
	case frameContinuation:
		return c.onContinuation(payload)
	case frameData:
		return c.onData(payload)
	case frameRSTStream:
		return c.onRSTStream(payload)
	case frameGoAway:
		return c.onGoAway(payload)
	case framePriority:
		dep, _, _, err := decodePriority(payload)
		if err != nil {
			return err
		}
		if dep == c.dsi {
			return newConnError(ErrProtocolError, "priority depends on itself")
		}
		return nil // decode-and-ignore (supplemented feature)
	case framePing:
		return nil // ping-pong is handled by the caller via PingAck, kept stateless here
	default:
		return nil // unknown frame types are ignored per HTTP/2 extensibility
	}
}

func (c *Conn) onSettings(payload []byte) error {
	if c.dff&flagAck != 0 {
		if len(payload) != 0 {
			return newConnError(ErrFrameSizeError, "SETTINGS ack must be empty")
		}
		return nil
	}
	settings, err := decodeSettings(payload)
	if err != nil {
		return err
	}
	for _, s := range settings {
		switch s.id {
		case settingHeaderTableSize:
			c.codec.setPeerTableSize(s.value)
		case settingMaxFrameSize:
			if s.value < minMaxFrameSize || s.value > maxMaxFrameSize {
				return newConnError(ErrProtocolError, "invalid max_frame_size")
			}
			c.mfs = s.value
		case settingInitialWindowSize:
			if s.value > maxWindowSize {
				return newConnError(ErrFlowControlError, "invalid initial_window_size")
			}
			delta := int64(s.value) - int64(c.miw)
			c.miw = s.value
			c.applyInitialWindowDelta(delta)
		case settingMaxConcurrentStreams:
			c.cfg.MaxConcurrentStreams = s.value
		}
	}
	return nil
}

// applyInitialWindowDelta shifts every open stream's effective window by
// delta and unblocks any stream that becomes sendable ("When
// SETTINGS updates miw, every stream whose effective window becomes
// positive is unblocked from the blocked_list").
func (c *Conn) applyInitialWindowDelta(delta int64) {
	for _, id := range append([]uint32(nil), c.blockedList...) {
		s := c.streams[id]
		if s == nil {
			continue
		}
		if s.effectiveSendWindow(c.miw) > 0 {
			c.moveToList(s, listSend)
		}
	}
}

func (c *Conn) onWindowUpdate(payload []byte) error {
	inc, err := decodeWindowUpdate(payload)
	if err != nil {
		return err
	}
	if inc == 0 {
		if c.dsi == 0 {
			return newConnError(ErrProtocolError, "window_update increment 0")
		}
		return newStreamError(ErrProtocolError, "window_update increment 0")
	}
	if c.dsi == 0 {
		if c.mws == defaultInitialWindowSize {
			c.mws = maxWindowSize // "opened to 2^31-1 on first WINDOW_UPDATE"
		} else {
			if c.mws+int64(inc) > maxWindowSize {
				return newConnError(ErrFlowControlError, "connection window overflow")
			}
			c.mws += int64(inc)
		}
		c.unblockAll()
		return nil
	}
	s := c.streams[c.dsi]
	if s == nil {
		return nil // stream already gone; ignore per idempotent-close semantics
	}
	if s.effectiveSendWindow(c.miw)+int64(inc) > maxWindowSize {
		return newStreamError(ErrFlowControlError, "stream window overflow")
	}
	s.sws += int64(inc)
	if s.list == listBlocked && s.effectiveSendWindow(c.miw) > 0 {
		c.moveToList(s, listSend)
	}
	return nil
}

func (c *Conn) unblockAll() {
	for _, id := range append([]uint32(nil), c.blockedList...) {
		s := c.streams[id]
		if s != nil && s.effectiveSendWindow(c.miw) > 0 {
			c.moveToList(s, listSend)
		}
	}
}

func (c *Conn) onHeaders(payload []byte) error {
	if c.lastSID >= 0 && int64(c.dsi) > c.lastSID {
		return newStreamError(ErrRefusedStream, "stream id beyond last_sid")
	}
	s := c.streams[c.dsi]
	endStream := c.dff&flagEndStream != 0
	endHeaders := c.dff&flagEndHeaders != 0
	block := stripPadding(payload, c.dff)
	if s == nil {
		if c.dsi == 0 || c.dsi <= c.maxID {
			return newConnError(ErrProtocolError, "idle stream headers: bad id ordering")
		}
		if c.nbStreams >= int(c.cfg.MaxConcurrentStreams) {
			return newStreamError(ErrRefusedStream, "max concurrent streams exceeded")
		}
		s = newStream(c.dsi, c.miw)
		c.streams[c.dsi] = s
		c.maxID = c.dsi
		c.nbStreams++
	}
	if err := s.transitionRecvHeaders(endStream); err != nil {
		return err
	}
	if endHeaders {
		fields, err := c.codec.decode(block)
		if err != nil {
			return err
		}
		c.applyDecodedFields(s, fields)
		return nil
	}
	c.headerStreamID = c.dsi
	c.headerEndStream = endStream
	c.hdrBuf.reset()
	c.hdrBuf.append(block)
	return nil
}

func (c *Conn) onContinuation(payload []byte) error {
	c.hdrBuf.append(payload)
	if c.dff&flagEndHeaders == 0 {
		return nil
	}
	s := c.streams[c.headerStreamID]
	fields, err := c.codec.decode(c.hdrBuf.readInOrder())
	if err != nil {
		return err
	}
	c.hdrBuf.reset()
	c.headerStreamID = 0
	if s != nil {
		c.applyDecodedFields(s, fields)
	}
	return nil
}

func (c *Conn) applyDecodedFields(s *Stream, fields []HeaderField) {
	dest := &s.reqHeaders
	if s.flags.has(flagTrailersRecv) {
		dest = &s.trailers
	}
	for _, f := range fields {
		switch f.Name {
		case ":method":
			s.method = f.Value
		case ":path":
			s.path = f.Value
		case ":status":
			s.status = parseStatus(f.Value)
		default:
			*dest = append(*dest, f)
		}
	}
}

func parseStatus(v string) int {
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// stripPadding removes the pad-length byte and trailing padding from a
// HEADERS/DATA payload when PADDED is set ("moving their
// payload over intervening padding").
func stripPadding(payload []byte, flags uint8) []byte {
	if flags&flagPadded == 0 || len(payload) == 0 {
		return payload
	}
	padLen := int(payload[0])
	payload = payload[1:]
	if padLen > len(payload) {
		return payload
	}
	return payload[:len(payload)-padLen]
}

func (c *Conn) onData(payload []byte) error {
	s := c.streams[c.dsi]
	if s == nil {
		return newStreamError(ErrStreamClosed, "data on unknown stream")
	}
	endStream := c.dff&flagEndStream != 0
	body := stripPadding(payload, c.dff)
	if int64(len(payload)) > s.recvWindow {
		return newStreamError(ErrFlowControlError, "stream recv window exceeded")
	}
	s.rxbuf = append(s.rxbuf, body...)
	return s.transitionRecvData(len(payload), endStream)
}

func (c *Conn) onRSTStream(payload []byte) error {
	code, err := decodeRSTStream(payload)
	if err != nil {
		return err
	}
	s := c.streams[c.dsi]
	if s == nil {
		return nil
	}
	s.onRSTRecv(code)
	c.removeFromLists(s)
	return nil
}

func (c *Conn) onGoAway(payload []byte) error {
	p, err := decodeGoAway(payload)
	if err != nil {
		return err
	}
	c.lastSID = int64(p.lastStreamID)
	return nil
}

// moveToList changes a stream's queue membership, enforcing 's
// invariant 6 ("at most one of {send_list, fctl_list, blocked_list}").
func (c *Conn) moveToList(s *Stream, list listMembership) {
	c.removeFromLists(s)
	switch list {
	case listSend:
		c.sendList = append(c.sendList, s.id)
	case listFctl:
		c.fctlList = append(c.fctlList, s.id)
	case listBlocked:
		c.blockedList = append(c.blockedList, s.id)
	}
	s.list = list
}

func (c *Conn) removeFromLists(s *Stream) {
	switch s.list {
	case listSend:
		c.sendList = removeID(c.sendList, s.id)
	case listFctl:
		c.fctlList = removeID(c.fctlList, s.id)
	case listBlocked:
		c.blockedList = removeID(c.blockedList, s.id)
	}
	s.list = listNone
}

func removeID(list []uint32, id uint32) []uint32 {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// NbStreams reports how many streams are tracked by id (invariant 5);
// closed streams stay in the table and are counted.
func (c *Conn) NbStreams() int { return len(c.streams) }

// Stream looks up a stream by id.
func (c *Conn) Stream(id uint32) *Stream { return c.streams[id] }

// MaxID returns the highest peer-initiated stream id seen so far.
func (c *Conn) MaxID() uint32 { return c.maxID }
