package transport

// cryptoStream is the per-level CRYPTO byte stream : inbound
// bytes are reassembled in offset order before being handed to the TLS
// provider; outbound bytes are queued in a bounded send buffer and handed
// out as CRYPTO frames by the packet builder.
type cryptoStream struct {
	recv cryptoRecvBuffer
	send cryptoSendBuffer
}

func (c *cryptoStream) init() {
	c.recv.readOffset = 0
	c.send.base = 0
}

// cryptoRecvBuffer reorders inbound CRYPTO frame bytes ("CRYPTO
// data MUST be delivered to TLS in offset order; out-of-order frames are
// buffered until the gap closes").
type cryptoRecvBuffer struct {
	readOffset uint64
	pending []cryptoChunk
}

type cryptoChunk struct {
	offset uint64
	data []byte
}

// push buffers an inbound CRYPTO frame and returns the contiguous bytes
// now ready to deliver to TLS, in order, possibly draining previously
// buffered out-of-order chunks.
func (c *cryptoRecvBuffer) push(offset uint64, data []byte) ([]byte, error) {
	end := offset + uint64(len(data))
	if end > c.readOffset+MaxCryptoInFlight+cryptoBufferSize {
		return nil, newError(CryptoBufferExceeded, "crypto stream too far ahead")
	}
	if end <= c.readOffset {
		return nil, nil // fully duplicate
	}
	if offset < c.readOffset {
		data = data[c.readOffset-offset:]
		offset = c.readOffset
	}
	if offset == c.readOffset {
		var out []byte
		out = append(out, data...)
		c.readOffset += uint64(len(data))
		out = append(out, c.drainPending()...)
		return out, nil
	}
	c.insertPending(offset, data)
	return nil, nil
}

func (c *cryptoRecvBuffer) insertPending(offset uint64, data []byte) {
	chunk := cryptoChunk{offset: offset, data: append([]byte(nil), data...)}
	i := 0
	for ; i < len(c.pending); i++ {
		if c.pending[i].offset > offset {
			break
		}
	}
	c.pending = append(c.pending, cryptoChunk{})
	copy(c.pending[i+1:], c.pending[i:])
	c.pending[i] = chunk
}

func (c *cryptoRecvBuffer) drainPending() []byte {
	var out []byte
	for len(c.pending) > 0 {
		chunk := c.pending[0]
		end := chunk.offset + uint64(len(chunk.data))
		if chunk.offset > c.readOffset {
			break
		}
		if end > c.readOffset {
			out = append(out, chunk.data[c.readOffset-chunk.offset:]...)
			c.readOffset = end
		}
		c.pending = c.pending[1:]
	}
	return out
}

// cryptoSendBuffer accumulates outbound TLS record bytes (a
// growing buffer per level, capped at 4*cryptoBufferSize = 64 KiB of
// unacknowledged bytes) and hands out not-yet-sent bytes
// to the packet builder. Bytes stay available for retransmission until
// explicitly acknowledged, since the builder may need to resend them
// after loss.
type cryptoSendBuffer struct {
	data []byte // unacked + unsent bytes, starting at `base`
	base uint64 // absolute offset of data[0]
	sentLen int // bytes (from base) already emitted in at least one CRYPTO frame
}

// write appends newly produced TLS handshake bytes.
func (s *cryptoSendBuffer) write(b []byte) {
	if len(s.data)+len(b) > cryptoBufferSize*4 {
		// Handshake CRYPTO data is bounded in practice; this guards
		// against a misbehaving provider growing the buffer unbounded.
		b = b[:cryptoBufferSize*4-len(s.data)]
	}
	s.data = append(s.data, b...)
}

// pending returns the offset and bytes not yet included in any CRYPTO
// frame.
func (s *cryptoSendBuffer) pending() (uint64, []byte) {
	return s.base + uint64(s.sentLen), s.data[s.sentLen:]
}

// markSent records that n bytes starting at the pending offset have now
// been placed into a CRYPTO frame.
func (s *cryptoSendBuffer) markSent(n int) {
	s.sentLen += n
	if s.sentLen > len(s.data) {
		s.sentLen = len(s.data)
	}
}

// onLost rolls sentLen back so the lost range is resent on the next
// builder pass (retransmission re-queues unacked CRYPTO
// ranges).
func (s *cryptoSendBuffer) onLost(offset uint64) {
	if offset < s.base {
		offset = s.base
	}
	if n := int(offset - s.base); n < s.sentLen {
		s.sentLen = n
	}
}

// ack drops acknowledged bytes from the front of the buffer once the
// whole prefix up to offset+length has been confirmed.
func (s *cryptoSendBuffer) ack(offset uint64, length int) {
	end := offset + uint64(length)
	if offset != s.base || end <= s.base {
		return
	}
	n := int(end - s.base)
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
	s.base = end
	s.sentLen -= n
	if s.sentLen < 0 {
		s.sentLen = 0
	}
}
