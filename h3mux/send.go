package h3mux

var errOutputFull = newConnError(ErrInternalError, "mbuf ring full")

// appendOut writes b into the mbuf ring ("mbuf ring
// (power-of-two, 32 slots)"), rotating to the next slot when the
// current one fills.
func (c *Conn) appendOut(b []byte) error {
	for len(b) > 0 {
		buf, ok := c.out.Writer()
		if !ok {
			return errOutputFull
		}
		room := cap(buf.Data) - len(buf.Data)
		if room == 0 {
			c.out.Commit(len(buf.Data))
			continue
		}
		n := copy(buf.Data[len(buf.Data):cap(buf.Data)], b)
		buf.Data = buf.Data[:len(buf.Data)+n]
		b = b[n:]
		if len(b) > 0 {
			c.out.Commit(len(buf.Data))
		}
	}
	return nil
}

// Drain returns every byte queued for send since the last call, in
// order, and frees the ring slots that held it.
func (c *Conn) Drain() []byte {
	if buf, ok := c.out.Writer(); ok && len(buf.Data) > 0 {
		c.out.Commit(len(buf.Data))
	}
	var out []byte
	for {
		buf, ok := c.out.Reader()
		if !ok {
			break
		}
		out = append(out, buf.Data...)
		c.out.Advance()
	}
	return out
}

func (c *Conn) writeFrame(typ frameType, flags uint8, streamID uint32, payload []byte) error {
	var hdr [FrameHeaderLen]byte
	encodeFrameHeader(hdr[:], frameHeader{length: uint32(len(payload)), typ: typ, flags: flags, streamID: streamID})
	if err := c.appendOut(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return c.appendOut(payload)
}

// SendSettings writes our initial (or updated) SETTINGS frame.
func (c *Conn) SendSettings() error {
	settings := []setting{
		{settingHeaderTableSize, c.cfg.HeaderTableSize},
		{settingMaxConcurrentStreams, c.cfg.MaxConcurrentStreams},
		{settingInitialWindowSize, c.cfg.InitialWindowSize},
		{settingMaxFrameSize, c.cfg.MaxFrameSize},
	}
	buf := make([]byte, 6*len(settings))
	n := encodeSettings(buf, settings)
	return c.writeFrame(frameSettings, 0, 0, buf[:n])
}

func (c *Conn) sendSettingsAck() error {
	return c.writeFrame(frameSettings, flagAck, 0, nil)
}

// resetStream sends RST_STREAM and marks the stream closed locally
// ("Stream-scope errors -> RST on the stream; connection
// continues").
func (c *Conn) resetStream(id uint32, code ErrorCode) {
	if s := c.streams[id]; s != nil {
		s.onRSTSent(code)
		c.removeFromLists(s)
	}
	var buf [4]byte
	encodeRSTStream(buf[:], code)
	_ = c.writeFrame(frameRSTStream, 0, id, buf[:])
}

// allocateStream assigns this side's next outgoing stream id, honoring
// HTTP/2-style id parity discipline and the GOAWAY cutoff
// ("last_sid >= 0 prevents new outgoing stream allocation").
func (c *Conn) allocateStream() (*Stream, error) {
	if c.lastSID >= 0 {
		return nil, newConnError(ErrRefusedStream, "no new streams after GOAWAY")
	}
	id := c.nextOutgoingID
	c.nextOutgoingID += 2
	s := newStream(id, c.miw)
	s.state = StateOpen
	c.streams[id] = s
	c.nbStreams++
	return s, nil
}

// maxHeaderFrameLen is the largest header-block fragment that fits one
// frame under the peer's advertised max frame size.
func (c *Conn) maxHeaderFrameLen() uint32 {
	if c.mfs == 0 {
		return defaultMaxFrameSize
	}
	return c.mfs
}

// sendHeaderBlock fragments an encoded header block across a HEADERS
// frame and as many CONTINUATION frames as needed ("Fragment
// a HEADERS payload exceeding mfs by rewriting the initial frame's
// END_HEADERS flag to 0 and appending CONTINUATION frames with the same
// stream id").
func (c *Conn) sendHeaderBlock(id uint32, block []byte, endStream bool) error {
	limit := c.maxHeaderFrameLen()
	first := block
	rest := []byte(nil)
	if uint32(len(block)) > limit {
		first = block[:limit]
		rest = block[limit:]
	}
	flags := uint8(0)
	if endStream {
		flags |= flagEndStream
	}
	if len(rest) == 0 {
		flags |= flagEndHeaders
	}
	if err := c.writeFrame(frameHeaders, flags, id, first); err != nil {
		return err
	}
	for len(rest) > 0 {
		chunk := rest
		last := true
		if uint32(len(rest)) > limit {
			chunk = rest[:limit]
			last = false
		}
		cflags := uint8(0)
		if last {
			cflags |= flagEndHeaders
		}
		if err := c.writeFrame(frameContinuation, cflags, id, chunk); err != nil {
			return err
		}
		rest = rest[len(chunk):]
	}
	return nil
}

// SendResponse emits a server response's HEADERS ("Response
// ... emission").
func (c *Conn) SendResponse(id uint32, status int, headers []HeaderField, endStream bool) error {
	s := c.streams[id]
	if s == nil || s.isClosed() {
		return newStreamError(ErrStreamClosed, "response on closed stream")
	}
	block, err := c.codec.encodeResponse(status, headers)
	if err != nil {
		return err
	}
	if err := c.sendHeaderBlock(id, block, endStream); err != nil {
		return err
	}
	s.flags |= flagHeadersSent
	s.status = status
	if endStream {
		s.flags |= flagEndStreamSent
		switch s.state {
		case StateOpen:
			s.state = StateHalfClosedLocal
		case StateHalfClosedRemote:
			s.state = StateClosed
		}
	}
	return nil
}

// SendRequest emits a client request's HEADERS on a freshly allocated
// stream and returns it.
func (c *Conn) SendRequest(method, scheme, authority, path string, headers []HeaderField, endStream bool) (*Stream, error) {
	s, err := c.allocateStream()
	if err != nil {
		return nil, err
	}
	block, err := c.codec.encodeRequest(method, scheme, authority, path, headers)
	if err != nil {
		return nil, err
	}
	if err := c.sendHeaderBlock(s.id, block, endStream); err != nil {
		return nil, err
	}
	s.flags |= flagHeadersSent
	s.method, s.path = method, path
	if endStream {
		s.flags |= flagEndStreamSent
		s.state = StateHalfClosedLocal
	}
	return s, nil
}

// SendData emits a DATA frame, enforcing both the connection and stream
// flow-control windows ("Flow control": "Connection window mws
// and per-stream window sws+miw are decremented on DATA emission").
func (c *Conn) SendData(id uint32, data []byte, endStream bool) (int, error) {
	s := c.streams[id]
	if s == nil || s.isClosed() {
		return 0, newStreamError(ErrStreamClosed, "data on closed stream")
	}
	avail := s.effectiveSendWindow(c.miw)
	if avail > c.mws {
		avail = c.mws
	}
	if avail <= 0 {
		c.moveToList(s, listBlocked)
		return 0, nil
	}
	n := len(data)
	if int64(n) > avail {
		n = int(avail)
	}
	limit := int(c.maxHeaderFrameLen())
	if n > limit {
		n = limit
	}
	chunk := data[:n]
	last := endStream && n == len(data)
	flags := uint8(0)
	if last {
		flags |= flagEndStream
	}
	if err := c.writeFrame(frameData, flags, id, chunk); err != nil {
		return 0, err
	}
	s.sws -= int64(n)
	c.mws -= int64(n)
	if last {
		s.flags |= flagEndStreamSent
		switch s.state {
		case StateOpen:
			s.state = StateHalfClosedLocal
		case StateHalfClosedRemote:
			s.state = StateClosed
		}
	}
	if s.effectiveSendWindow(c.miw) <= 0 || c.mws <= 0 {
		c.moveToList(s, listBlocked)
	}
	return n, nil
}

// GoAway emits a GOAWAY frame. Once a send has failed (GOAWAY_FAILED)
// or the final GOAWAY of FinalizeGoAway has gone out, further calls
// send nothing; a graceful GOAWAY may still be followed by one more.
func (c *Conn) GoAway(lastStreamID uint32, code ErrorCode, debug []byte) error {
	if c.flags&flagGoAwayFailed != 0 {
		return nil
	}
	if c.flags&flagGoAwaySent != 0 && c.flags&flagGoAwayFinal != 0 {
		return nil
	}
	buf := make([]byte, 8+len(debug))
	n := encodeGoAway(buf, goAwayPayload{lastStreamID: lastStreamID, errorCode: code, debug: debug})
	if err := c.writeFrame(frameGoAway, 0, 0, buf[:n]); err != nil {
		c.flags |= flagGoAwayFailed
		return err
	}
	c.flags |= flagGoAwaySent
	c.lastSID = int64(lastStreamID)
	return nil
}

// GracefulGoAway implements the two-step shutdown of
// ("GOAWAY graceful-then-immediate two-step"): a first GOAWAY
// advertising the maximum possible id so in-flight requests complete,
// then (via FinalizeGoAway) the true cutoff.
func (c *Conn) GracefulGoAway() error {
	return c.GoAway(maxWindowSize, ErrNoError, nil)
}

// FinalizeGoAway sends the second, authoritative GOAWAY naming the
// actual last stream id this connection will process.
func (c *Conn) FinalizeGoAway(code ErrorCode) error {
	c.flags &^= flagGoAwaySent
	c.flags |= flagGoAwayFinal
	return c.GoAway(c.maxID, code, nil)
}

// Shutr implements "shutr before any response sent -> RST with
// REFUSED_STREAM (retryable); shutr after HEADERS sent -> RST with
// CANCEL".
func (c *Conn) Shutr(id uint32) {
	s := c.streams[id]
	if s == nil || s.isClosed() {
		return
	}
	c.resetStream(id, s.shutrErrorCode())
}

// Shutw implements "shutw after HEADERS sent -> empty DATA
// with END_STREAM".
func (c *Conn) Shutw(id uint32) error {
	s := c.streams[id]
	if s == nil || s.isClosed() {
		return nil
	}
	if !s.flags.has(flagHeadersSent) {
		return nil
	}
	_, err := c.SendData(id, nil, true)
	return err
}

// KillConn implements "KILL_CONN flag -> GOAWAY with
// ENHANCE_YOUR_CALM".
func (c *Conn) KillConn() error {
	return c.GoAway(c.maxID, ErrEnhanceYourCalm, nil)
}

// MayExpire reports whether the connection is idle enough to release
// ("h3c_may_expire: no in-flight streams, no buffered output,
// no blocked streams").
func (c *Conn) MayExpire() bool {
	if buf, ok := c.out.Writer(); ok && len(buf.Data) > 0 {
		return false
	}
	return len(c.sendList) == 0 && len(c.blockedList) == 0 && c.out.Empty() && c.liveStreamCount() == 0
}

func (c *Conn) liveStreamCount() int {
	n := 0
	for _, s := range c.streams {
		if !s.isClosed() {
			n++
		}
	}
	return n
}
