package transport

// quicStream is the QUIC transport's own per-stream bookkeeping: just
// enough to police STREAM frame offsets against flow control and final
// size. The application-visible stream object with its HTTP-framing FSM
// lives in package h3mux; this type only arbitrates bytes on the wire
// (distinguishes the QUIC "Stream (HTTP mux)" data model from the
// transport's flow-control bookkeeping referenced throughout §4.5/§4.9).
type quicStream struct {
	id uint64

	rx flowControl // bytes received vs. our advertised MAX_STREAM_DATA
	tx flowControl // bytes sent vs. peer's advertised MAX_STREAM_DATA

	recv streamRecvBuffer // in-order reassembled inbound bytes, drained via Conn.ReadStream
	send streamSendBuffer // outbound bytes queued via Conn.WriteStream

	finalSize uint64
	finalSizeSet bool

	resetByPeer bool
	resetLocally bool
}

func newQUICStream(id uint64, localLimit, peerLimit uint64) *quicStream {
	return &quicStream{
		id: id,
		rx: flowControl{limit: localLimit},
		tx: flowControl{limit: peerLimit},
	}
}

// onStreamFrame validates an inbound STREAM frame's offset range against
// flow control and any previously learned final size (
// FINAL_SIZE_ERROR / FLOW_CONTROL_ERROR), then reassembles it into recv.
func (s *quicStream) onStreamFrame(offset uint64, data []byte, fin bool) error {
	end := offset + uint64(len(data))
	if s.finalSizeSet && end > s.finalSize {
		return errFinalSize
	}
	if fin {
		if s.finalSizeSet && s.finalSize != end {
			return errFinalSize
		}
		s.finalSize = end
		s.finalSizeSet = true
	}
	if end > s.rx.used {
		if err := s.rx.consume(int(end - s.rx.used)); err != nil {
			return err
		}
	}
	return s.recv.push(offset, data, fin)
}

// streamMap owns the set of QUIC streams known to a connection, keyed by
// the raw wire stream ID ("streams_by_id").
type streamMap struct {
	streams map[uint64]*quicStream
}

func newStreamMap() *streamMap {
	return &streamMap{streams: make(map[uint64]*quicStream)}
}

func (m *streamMap) get(id uint64) (*quicStream, bool) {
	s, ok := m.streams[id]
	return s, ok
}

func (m *streamMap) getOrCreate(id uint64, localLimit, peerLimit uint64) *quicStream {
	if s, ok := m.streams[id]; ok {
		return s
	}
	s := newQUICStream(id, localLimit, peerLimit)
	m.streams[id] = s
	return s
}

func (m *streamMap) remove(id uint64) {
	delete(m.streams, id)
}

func (m *streamMap) len() int {
	return len(m.streams)
}
