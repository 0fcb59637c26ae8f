package h3mux

// StreamState is the per-stream FSM of "Stream (HTTP mux)" /
// §4.8 "Per-stream FSM".
type StreamState uint8

const (
	StateIdle StreamState = iota
	StateReservedLocal
	StateReservedRemote
	StateOpen
	StateHalfClosedRemote
	StateHalfClosedLocal
	StateError
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReservedLocal:
		return "reserved_local"
	case StateReservedRemote:
		return "reserved_remote"
	case StateOpen:
		return "open"
	case StateHalfClosedRemote:
		return "half_closed_remote"
	case StateHalfClosedLocal:
		return "half_closed_local"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// listMembership tracks which of the connection's three queues a stream
// currently occupies (invariant: "a stream is in exactly one of
// {none, send_list, fctl_list, blocked_list}"), replacing
// intrusive list pointers (redesign note).
type listMembership uint8

const (
	listNone listMembership = iota
	listSend
	listFctl
	listBlocked
)

// Latched one-shot events, kept separate from the primary FSM state
// ("bit-flag state soup" redesign note: "partition into (a) a
// small enum for the primary FSM state, (b) a bitset for transient
// blocked-by-X reasons, (c) a bitset for one-shot latched events").
type streamFlags uint16

const (
	flagHeadersSent streamFlags = 1 << iota
	flagHeadersRecv
	flagEndStreamSent
	flagEndStreamRecv
	flagRSTSent
	flagRSTRecv
	flagTrailersRecv
)

func (f streamFlags) has(bit streamFlags) bool { return f&bit != 0 }

// Stream is one HTTP message exchange multiplexed over the connection
// ("Stream (HTTP mux)"). All mutation happens from the owning
// connection's single tasklet ; there is no internal locking.
type Stream struct {
	id uint32
	state StreamState
	flags streamFlags
	list listMembership

	// sws is this stream's send-window delta from the connection's
	// configured initial window; effective_window(S) = miw + sws (
	// invariant, §8 invariant 4).
	sws int64
	// recvWindow is how much more the peer may send us on this stream
	// before we must emit WINDOW_UPDATE.
	recvWindow int64
	recvWindowInit int64

	status int // HTTP status for responses, 0 if unset
	method string
	path string

	reqHeaders []HeaderField
	respHeaders []HeaderField
	trailers []HeaderField

	bodyLength int64 // bytes of DATA delivered so far
	rxbuf []byte

	resetCode ErrorCode
}

// HeaderField is a single (name, value) pair, the unit HPACK encodes and
// decodes ("HEADERS handling").
type HeaderField struct {
	Name string
	Value string
}

func newStream(id uint32, initialWindow uint32) *Stream {
	return &Stream{
		id: id,
		state: StateIdle,
		recvWindow: int64(initialWindow),
		recvWindowInit: int64(initialWindow),
	}
}

// effectiveSendWindow implements 's "effective window = miw+sws".
func (s *Stream) effectiveSendWindow(miw uint32) int64 {
	return int64(miw) + s.sws
}

func (s *Stream) isClosed() bool {
	return s.state == StateClosed || s.state == StateError
}

// transitionRecvHeaders applies the receiving side of the per-stream FSM
// on a HEADERS frame ("Frame validity vs. state").
func (s *Stream) transitionRecvHeaders(endStream bool) error {
	switch s.state {
	case StateIdle:
		s.state = StateOpen
	case StateOpen, StateHalfClosedLocal:
		// trailers: a second HEADERS after data, requires END_STREAM
		// (§8 boundary "Receipt of trailers without
		// END_STREAM -> PROTOCOL_ERROR").
		if !s.flags.has(flagHeadersRecv) {
			return newConnError(ErrProtocolError, "headers in unexpected state")
		}
		if !endStream {
			return newConnError(ErrProtocolError, "trailers without END_STREAM")
		}
		s.flags |= flagTrailersRecv
	case StateHalfClosedRemote, StateClosed, StateError:
		return newStreamError(ErrStreamClosed, "headers on closed stream")
	default:
		return newConnError(ErrProtocolError, "headers in unexpected state")
	}
	s.flags |= flagHeadersRecv
	if endStream {
		return s.applyEndStreamRecv()
	}
	return nil
}

func (s *Stream) applyEndStreamRecv() error {
	s.flags |= flagEndStreamRecv
	switch s.state {
	case StateOpen:
		s.state = StateHalfClosedRemote
	case StateHalfClosedLocal:
		s.state = StateClosed
	}
	return nil
}

// transitionRecvData validates a DATA frame against the current state
// ("half-closed-remote + !(WINDOW_UPDATE|RST|PRIORITY) ->
// stream error STREAM_CLOSED").
func (s *Stream) transitionRecvData(length int, endStream bool) error {
	switch s.state {
	case StateOpen, StateHalfClosedLocal:
	case StateIdle:
		return newConnError(ErrProtocolError, "data on idle stream")
	default:
		return newStreamError(ErrStreamClosed, "data on closed stream")
	}
	s.bodyLength += int64(length)
	s.recvWindow -= int64(length)
	if endStream {
		return s.applyEndStreamRecv()
	}
	return nil
}

// otherFrameAllowed implements the remaining bullets of 's
// "Frame validity vs. state" table for WINDOW_UPDATE/PRIORITY/RST, which
// are accepted in every state except fully closed.
func (s *Stream) otherFrameAllowed() bool {
	return s.state != StateClosed
}

func (s *Stream) onRSTRecv(code ErrorCode) {
	s.flags |= flagRSTRecv
	s.resetCode = code
	s.state = StateClosed
}

func (s *Stream) onRSTSent(code ErrorCode) {
	s.flags |= flagRSTSent
	s.resetCode = code
	s.state = StateClosed
}

// shutrErrorCode implements "Shutdown semantics": `shutr` before any
// response sent means REFUSED_STREAM (retryable); after HEADERS sent
// means CANCEL.
func (s *Stream) shutrErrorCode() ErrorCode {
	if s.flags.has(flagHeadersSent) {
		return ErrCancel
	}
	return ErrRefusedStream
}
