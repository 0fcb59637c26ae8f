package transport

// streamRecvBuffer reassembles inbound STREAM frame bytes for one stream
// in offset order, mirroring cryptoRecvBuffer's chunked-reorder strategy
// ("STREAM data MAY arrive out of order; the application layer
// consumes it only in order").
type streamRecvBuffer struct {
	readOffset uint64
	pending []cryptoChunk
	ready []byte
	finOffset uint64
	finSet bool
}

// push buffers an inbound STREAM frame and appends any newly contiguous
// bytes to ready, draining previously out-of-order chunks as gaps close.
func (b *streamRecvBuffer) push(offset uint64, data []byte, fin bool) error {
	end := offset + uint64(len(data))
	if fin {
		if b.finSet && b.finOffset != end {
			return errFinalSize
		}
		b.finOffset = end
		b.finSet = true
	} else if b.finSet && end > b.finOffset {
		return errFinalSize
	}
	if end <= b.readOffset {
		return nil
	}
	if offset < b.readOffset {
		data = data[b.readOffset-offset:]
		offset = b.readOffset
	}
	if offset == b.readOffset {
		b.ready = append(b.ready, data...)
		b.readOffset += uint64(len(data))
		b.drainPending()
		return nil
	}
	b.insertPending(offset, data)
	return nil
}

func (b *streamRecvBuffer) insertPending(offset uint64, data []byte) {
	chunk := cryptoChunk{offset: offset, data: append([]byte(nil), data...)}
	i := 0
	for ; i < len(b.pending); i++ {
		if b.pending[i].offset > offset {
			break
		}
	}
	b.pending = append(b.pending, cryptoChunk{})
	copy(b.pending[i+1:], b.pending[i:])
	b.pending[i] = chunk
}

func (b *streamRecvBuffer) drainPending() {
	for len(b.pending) > 0 {
		chunk := b.pending[0]
		end := chunk.offset + uint64(len(chunk.data))
		if chunk.offset > b.readOffset {
			break
		}
		if end > b.readOffset {
			b.ready = append(b.ready, chunk.data[b.readOffset-chunk.offset:]...)
			b.readOffset = end
		}
		b.pending = b.pending[1:]
	}
}

// drain returns and clears the bytes ready for delivery to the
// application, along with whether the stream has now been fully
// received (fin offset reached with no gaps).
func (b *streamRecvBuffer) drain() ([]byte, bool) {
	out := b.ready
	b.ready = nil
	atEnd := b.finSet && b.readOffset >= b.finOffset
	return out, atEnd
}

// streamSendBuffer queues outbound application bytes for one stream
// ("STREAM frames ready to go out"), mirroring
// cryptoSendBuffer.
type streamSendBuffer struct {
	data []byte
	base uint64
	sentLen int
	fin bool
	finSet bool
}

func (s *streamSendBuffer) write(b []byte, fin bool) {
	s.data = append(s.data, b...)
	if fin {
		s.finSet = true
	}
}

func (s *streamSendBuffer) pending() (offset uint64, data []byte, fin bool) {
	fin = s.finSet && !s.fin
	return s.base + uint64(s.sentLen), s.data[s.sentLen:], fin
}

func (s *streamSendBuffer) markSent(n int, fin bool) {
	s.sentLen += n
	if s.sentLen > len(s.data) {
		s.sentLen = len(s.data)
	}
	if fin {
		s.fin = true
	}
}

func (s *streamSendBuffer) onLost(offset uint64) {
	if offset < s.base {
		offset = s.base
	}
	if n := int(offset - s.base); n < s.sentLen {
		s.sentLen = n
	}
}

func (s *streamSendBuffer) ack(offset uint64, length int) {
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

// ReadStream drains reassembled in-order bytes received for id since the
// last call, used by quicsrv to feed the h3mux demuxer ('s split
// between the QUIC stream's flow-control bookkeeping and the
// application-visible HTTP stream object living in package h3mux).
func (c *Conn) ReadStream(id uint64) ([]byte, bool) {
	s, ok := c.streams.get(id)
	if !ok {
		return nil, false
	}
	return s.recv.drain()
}

// WriteStream queues data for outbound delivery on stream id, creating
// the stream if this is the first write. Bytes are carried out by the
// next Send call as budget and the peer's flow-control window allow.
func (c *Conn) WriteStream(id uint64, data []byte, fin bool) error {
	s := c.streams.getOrCreate(id, c.localParams.InitialMaxStreamDataBidiRemote, c.peerInitialMaxStreamData())
	s.send.write(data, fin)
	return nil
}
