package transport

// Frame type codes ("Frame layer (QUIC transport frames)").
const (
	frameTypePadding = 0x00
	frameTypePing = 0x01
	frameTypeAck = 0x02
	frameTypeAckECN = 0x03
	frameTypeResetStream = 0x04
	frameTypeStopSending = 0x05
	frameTypeCrypto = 0x06
	frameTypeNewToken = 0x07
	frameTypeStream = 0x08
	frameTypeStreamEnd = 0x0f
	frameTypeMaxData = 0x10
	frameTypeMaxStreamData = 0x11
	frameTypeMaxStreamsBidi = 0x12
	frameTypeMaxStreamsUni = 0x13
	frameTypeDataBlocked = 0x14
	frameTypeStreamDataBlocked = 0x15
	frameTypeStreamsBlockedBidi = 0x16
	frameTypeStreamsBlockedUni = 0x17
	frameTypeNewConnectionID = 0x18
	frameTypeRetireConnectionID = 0x19
	frameTypeConnectionClose = 0x1c
	frameTypeApplicationClose = 0x1d
	frameTypeHanshakeDone = 0x1e
)

// isFrameAckEliciting reports whether receiving a frame of this type
// should cause the packet that carried it to require acknowledgment
// (every frame except ACK, PADDING, CONNECTION_CLOSE).
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypePadding, frameTypeAck, frameTypeAckECN, frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

// frame is implemented by every decoded/pending-to-send QUIC frame.
type frame interface {
	encodedLen() int
	encode(b []byte) (int, error)
}

// ---- PADDING ----

type paddingFrame struct {
	length int
}

func newPaddingFrame(n int) *paddingFrame { return &paddingFrame{length: n} }

func (f *paddingFrame) encodedLen() int { return f.length }

func (f *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < f.length {
		return 0, errShortBuffer
	}
	for i := 0; i < f.length; i++ {
		b[i] = frameTypePadding
	}
	return f.length, nil
}

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	f.length = n
	if n == 0 {
		return 0, newError(FrameEncodingError, "padding")
	}
	return n, nil
}

// ---- PING ----

type pingFrame struct{}

func (f *pingFrame) encodedLen() int { return 1 }

func (f *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypePing
	return 1, nil
}

func (f *pingFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypePing {
		return 0, newError(FrameEncodingError, "ping")
	}
	return 1, nil
}

// ---- ACK ----

type ackFrame struct {
	largestAck int64
	ackDelay uint64
	firstAckRange uint64
	ranges []ackGapRange
}

func newAckFrame(ackDelay uint64, received rangeSet) *ackFrame {
	largest, first, rest := received.encode()
	return &ackFrame{largestAck: largest, ackDelay: ackDelay, firstAckRange: first, ranges: rest}
}

func (f *ackFrame) toRangeSet() *rangeSet {
	return decodeRangeSet(f.largestAck, f.firstAckRange, f.ranges)
}

func (f *ackFrame) encodedLen() int {
	n := 1 + varintLen(uint64(f.largestAck)) + varintLen(f.ackDelay) +
	varintLen(uint64(len(f.ranges))) + varintLen(f.firstAckRange)
	for _, r := range f.ranges {
		n += varintLen(r.gap) + varintLen(r.rangeLen)
	}
	return n
}

func (f *ackFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, frameTypeAck)
	out = putVarint(out, uint64(f.largestAck))
	out = putVarint(out, f.ackDelay)
	out = putVarint(out, uint64(len(f.ranges)))
	out = putVarint(out, f.firstAckRange)
	for _, r := range f.ranges {
		out = putVarint(out, r.gap)
		out = putVarint(out, r.rangeLen)
	}
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *ackFrame) decode(b []byte) (int, error) {
	orig := b
	if len(b) < 1 || (b[0] != frameTypeAck && b[0] != frameTypeAckECN) {
		return 0, newError(FrameEncodingError, "ack")
	}
	ecn := b[0] == frameTypeAckECN
	b = b[1:]
	var largest, delay, count, first uint64
	fields := []*uint64{&largest, &delay, &count, &first}
	for _, v := range fields {
		n := getVarint(b, v)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack")
		}
		b = b[n:]
	}
	f.largestAck = int64(largest)
	f.ackDelay = delay
	f.firstAckRange = first
	f.ranges = f.ranges[:0]
	for i := uint64(0); i < count; i++ {
		var gap, rng uint64
		n := getVarint(b, &gap)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack range")
		}
		b = b[n:]
		n = getVarint(b, &rng)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack range")
		}
		b = b[n:]
		f.ranges = append(f.ranges, ackGapRange{gap: gap, rangeLen: rng})
	}
	if ecn {
		for i := 0; i < 3; i++ {
			var v uint64
			n := getVarint(b, &v)
			if n == 0 {
				return 0, newError(FrameEncodingError, "ack ecn")
			}
			b = b[n:]
		}
	}
	return len(orig) - len(b), nil
}

func (f *ackFrame) String() string {
	return "ack"
}

// ---- RESET_STREAM ----

type resetStreamFrame struct {
	streamID uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, frameTypeResetStream)
	out = putVarint(out, f.streamID)
	out = putVarint(out, f.errorCode)
	out = putVarint(out, f.finalSize)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	return decode3Varint(b, frameTypeResetStream, "reset_stream", &f.streamID, &f.errorCode, &f.finalSize)
}

// ---- STOP_SENDING ----

type stopSendingFrame struct {
	streamID uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, frameTypeStopSending)
	out = putVarint(out, f.streamID)
	out = putVarint(out, f.errorCode)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	return decode2Varint(b, frameTypeStopSending, "stop_sending", &f.streamID, &f.errorCode)
}

// ---- CRYPTO ----

type cryptoFrame struct {
	offset uint64
	data []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

// maxCryptoFrameOverhead bounds the type+offset+length varints ahead of
// the CRYPTO frame's data (step 4).
const maxCryptoFrameOverhead = 1 + 8 + 8

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, frameTypeCrypto)
	out = putVarint(out, f.offset)
	out = putVarint(out, uint64(len(f.data)))
	if len(out)+len(f.data) > len(b) {
		return 0, errShortBuffer
	}
	out = append(out, f.data...)
	return len(out), nil
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	orig := b
	if len(b) < 1 || b[0] != frameTypeCrypto {
		return 0, newError(FrameEncodingError, "crypto")
	}
	b = b[1:]
	var offset, length uint64
	n := getVarint(b, &offset)
	if n == 0 {
		return 0, newError(FrameEncodingError, "crypto offset")
	}
	b = b[n:]
	n = getVarint(b, &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "crypto length")
	}
	b = b[n:]
	if uint64(len(b)) < length {
		return 0, newError(FrameEncodingError, "crypto data")
	}
	f.offset = offset
	f.data = b[:length]
	b = b[length:]
	return len(orig) - len(b), nil
}

func (f *cryptoFrame) String() string { return "crypto" }

// ---- NEW_TOKEN ----

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame { return &newTokenFrame{token: token} }

func (f *newTokenFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, frameTypeNewToken)
	out = putVarint(out, uint64(len(f.token)))
	if len(out)+len(f.token) > len(b) {
		return 0, errShortBuffer
	}
	out = append(out, f.token...)
	return len(out), nil
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	orig := b
	if len(b) < 1 || b[0] != frameTypeNewToken {
		return 0, newError(FrameEncodingError, "new_token")
	}
	b = b[1:]
	var length uint64
	n := getVarint(b, &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_token length")
	}
	b = b[n:]
	if uint64(len(b)) < length {
		return 0, newError(FrameEncodingError, "new_token data")
	}
	f.token = b[:length]
	b = b[length:]
	return len(orig) - len(b), nil
}

// ---- STREAM ----

type streamFrame struct {
	streamID uint64
	offset uint64
	data []byte
	fin bool
}

func newStreamFrame(id uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, data: data, offset: offset, fin: fin}
}

// maxStreamFrameOverhead bounds type+id+offset+length varints.
const maxStreamFrameOverhead = 1 + 8 + 8 + 8

func (f *streamFrame) typeByte() byte {
	t := byte(frameTypeStream) | 0x02 | 0x04 // always send explicit LEN and OFF for simplicity
	if f.fin {
		t |= 0x01
	}
	return t
}

func (f *streamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *streamFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, f.typeByte())
	out = putVarint(out, f.streamID)
	out = putVarint(out, f.offset)
	out = putVarint(out, uint64(len(f.data)))
	if len(out)+len(f.data) > len(b) {
		return 0, errShortBuffer
	}
	out = append(out, f.data...)
	return len(out), nil
}

func (f *streamFrame) decode(b []byte) (int, error) {
	orig := b
	if len(b) < 1 || b[0] < frameTypeStream || b[0] > frameTypeStreamEnd {
		return 0, newError(FrameEncodingError, "stream")
	}
	typ := b[0]
	b = b[1:]
	var id uint64
	n := getVarint(b, &id)
	if n == 0 {
		return 0, newError(FrameEncodingError, "stream id")
	}
	b = b[n:]
	var offset uint64
	if typ&0x04 != 0 {
		n = getVarint(b, &offset)
		if n == 0 {
			return 0, newError(FrameEncodingError, "stream offset")
		}
		b = b[n:]
	}
	var length uint64
	if typ&0x02 != 0 {
		n = getVarint(b, &length)
		if n == 0 {
			return 0, newError(FrameEncodingError, "stream length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return 0, newError(FrameEncodingError, "stream data")
		}
	} else {
		length = uint64(len(b))
	}
	f.streamID = id
	f.offset = offset
	f.data = b[:length]
	f.fin = typ&0x01 != 0
	b = b[length:]
	return len(orig) - len(b), nil
}

// ---- MAX_DATA ----

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame { return &maxDataFrame{maximumData: max} }

func (f *maxDataFrame) encodedLen() int { return 1 + varintLen(f.maximumData) }

func (f *maxDataFrame) encode(b []byte) (int, error) {
	out := append(b[:0], frameTypeMaxData)
	out = putVarint(out, f.maximumData)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *maxDataFrame) decode(b []byte) (int, error) {
	return decode1Varint(b, frameTypeMaxData, "max_data", &f.maximumData)
}

// ---- MAX_STREAM_DATA ----

type maxStreamDataFrame struct {
	streamID uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: max}
}

func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	out := append(b[:0], frameTypeMaxStreamData)
	out = putVarint(out, f.streamID)
	out = putVarint(out, f.maximumData)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	return decode2Varint(b, frameTypeMaxStreamData, "max_stream_data", &f.streamID, &f.maximumData)
}

// ---- MAX_STREAMS ----

type maxStreamsFrame struct {
	maximumStreams uint64
	bidi bool
}

func newMaxStreamsFrame(max uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{maximumStreams: max, bidi: bidi}
}

func (f *maxStreamsFrame) encodedLen() int { return 1 + varintLen(f.maximumStreams) }

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	typ := byte(frameTypeMaxStreamsUni)
	if f.bidi {
		typ = frameTypeMaxStreamsBidi
	}
	out := append(b[:0], typ)
	out = putVarint(out, f.maximumStreams)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || (b[0] != frameTypeMaxStreamsBidi && b[0] != frameTypeMaxStreamsUni) {
		return 0, newError(FrameEncodingError, "max_streams")
	}
	f.bidi = b[0] == frameTypeMaxStreamsBidi
	var v uint64
	n := getVarint(b[1:], &v)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_streams")
	}
	f.maximumStreams = v
	return 1 + n, nil
}

// ---- DATA_BLOCKED ----

type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(limit uint64) *dataBlockedFrame { return &dataBlockedFrame{dataLimit: limit} }

func (f *dataBlockedFrame) encodedLen() int { return 1 + varintLen(f.dataLimit) }

func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	out := append(b[:0], frameTypeDataBlocked)
	out = putVarint(out, f.dataLimit)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	return decode1Varint(b, frameTypeDataBlocked, "data_blocked", &f.dataLimit)
}

// ---- STREAM_DATA_BLOCKED ----

type streamDataBlockedFrame struct {
	streamID uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(id, limit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: id, dataLimit: limit}
}

func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.dataLimit)
}

func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	out := append(b[:0], frameTypeStreamDataBlocked)
	out = putVarint(out, f.streamID)
	out = putVarint(out, f.dataLimit)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	return decode2Varint(b, frameTypeStreamDataBlocked, "stream_data_blocked", &f.streamID, &f.dataLimit)
}

// ---- STREAMS_BLOCKED ----

type streamsBlockedFrame struct {
	streamLimit uint64
	bidi bool
}

func newStreamsBlockedFrame(limit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{streamLimit: limit, bidi: bidi}
}

func (f *streamsBlockedFrame) encodedLen() int { return 1 + varintLen(f.streamLimit) }

func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	typ := byte(frameTypeStreamsBlockedUni)
	if f.bidi {
		typ = frameTypeStreamsBlockedBidi
	}
	out := append(b[:0], typ)
	out = putVarint(out, f.streamLimit)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || (b[0] != frameTypeStreamsBlockedBidi && b[0] != frameTypeStreamsBlockedUni) {
		return 0, newError(FrameEncodingError, "streams_blocked")
	}
	f.bidi = b[0] == frameTypeStreamsBlockedBidi
	var v uint64
	n := getVarint(b[1:], &v)
	if n == 0 {
		return 0, newError(FrameEncodingError, "streams_blocked")
	}
	f.streamLimit = v
	return 1 + n, nil
}

// ---- NEW_CONNECTION_ID ----

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo uint64
	connectionID []byte
	statelessReset [16]byte
}

func newNewConnectionIDFrame(seq, retire uint64, cid []byte, token [16]byte) *newConnectionIDFrame {
	return &newConnectionIDFrame{sequenceNumber: seq, retirePriorTo: retire, connectionID: cid, statelessReset: token}
}

func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) + 1 + len(f.connectionID) + 16
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	out := b[:0]
	out = append(out, frameTypeNewConnectionID)
	out = putVarint(out, f.sequenceNumber)
	out = putVarint(out, f.retirePriorTo)
	out = append(out, byte(len(f.connectionID)))
	out = append(out, f.connectionID...)
	out = append(out, f.statelessReset[:]...)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	orig := b
	if len(b) < 1 || b[0] != frameTypeNewConnectionID {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	b = b[1:]
	var seq, retire uint64
	n := getVarint(b, &seq)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	b = b[n:]
	n = getVarint(b, &retire)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	b = b[n:]
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	cidLen := int(b[0])
	b = b[1:]
	if cidLen > MaxCIDLength || len(b) < cidLen+16 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	f.sequenceNumber = seq
	f.retirePriorTo = retire
	f.connectionID = append([]byte(nil), b[:cidLen]...)
	b = b[cidLen:]
	copy(f.statelessReset[:], b[:16])
	b = b[16:]
	return len(orig) - len(b), nil
}

// ---- RETIRE_CONNECTION_ID ----

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func (f *retireConnectionIDFrame) encodedLen() int { return 1 + varintLen(f.sequenceNumber) }

func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	out := append(b[:0], frameTypeRetireConnectionID)
	out = putVarint(out, f.sequenceNumber)
	if len(out) > len(b) {
		return 0, errShortBuffer
	}
	return len(out), nil
}

func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	return decode1Varint(b, frameTypeRetireConnectionID, "retire_connection_id", &f.sequenceNumber)
}

// ---- CONNECTION_CLOSE ----

type connectionCloseFrame struct {
	application bool
	errorCode uint64
	frameType uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reason []byte, app bool) *connectionCloseFrame {
	return &connectionCloseFrame{application: app, errorCode: errorCode, frameType: frameType, reasonPhrase: reason}
}

func (f *connectionCloseFrame) encodedLen() int {
	n := 1 + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	typ := byte(frameTypeConnectionClose)
	if f.application {
		typ = frameTypeApplicationClose
	}
	out := append(b[:0], typ)
	out = putVarint(out, f.errorCode)
	if !f.application {
		out = putVarint(out, f.frameType)
	}
	out = putVarint(out, uint64(len(f.reasonPhrase)))
	if len(out)+len(f.reasonPhrase) > len(b) {
		return 0, errShortBuffer
	}
	out = append(out, f.reasonPhrase...)
	return len(out), nil
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	orig := b
	if len(b) < 1 || (b[0] != frameTypeConnectionClose && b[0] != frameTypeApplicationClose) {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	f.application = b[0] == frameTypeApplicationClose
	b = b[1:]
	var code uint64
	n := getVarint(b, &code)
	if n == 0 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	b = b[n:]
	f.errorCode = code
	if !f.application {
		var ft uint64
		n = getVarint(b, &ft)
		if n == 0 {
			return 0, newError(FrameEncodingError, "connection_close")
		}
		b = b[n:]
		f.frameType = ft
	}
	var length uint64
	n = getVarint(b, &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	b = b[n:]
	if uint64(len(b)) < length {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	f.reasonPhrase = append([]byte(nil), b[:length]...)
	b = b[length:]
	return len(orig) - len(b), nil
}

func (f *connectionCloseFrame) String() string {
	return errorCodeString(f.errorCode)
}

// ---- HANDSHAKE_DONE ----

type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) encodedLen() int { return 1 }

func (f *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypeHanshakeDone
	return 1, nil
}

func (f *handshakeDoneFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeHanshakeDone {
		return 0, newError(FrameEncodingError, "handshake_done")
	}
	return 1, nil
}

// ---- shared decode helpers ----

func decode1Varint(b []byte, typ byte, name string, v1 *uint64) (int, error) {
	if len(b) < 1 || b[0] != typ {
		return 0, newError(FrameEncodingError, name)
	}
	n := getVarint(b[1:], v1)
	if n == 0 {
		return 0, newError(FrameEncodingError, name)
	}
	return 1 + n, nil
}

func decode2Varint(b []byte, typ byte, name string, v1, v2 *uint64) (int, error) {
	if len(b) < 1 || b[0] != typ {
		return 0, newError(FrameEncodingError, name)
	}
	rest := b[1:]
	n1 := getVarint(rest, v1)
	if n1 == 0 {
		return 0, newError(FrameEncodingError, name)
	}
	rest = rest[n1:]
	n2 := getVarint(rest, v2)
	if n2 == 0 {
		return 0, newError(FrameEncodingError, name)
	}
	return 1 + n1 + n2, nil
}

func decode3Varint(b []byte, typ byte, name string, v1, v2, v3 *uint64) (int, error) {
	if len(b) < 1 || b[0] != typ {
		return 0, newError(FrameEncodingError, name)
	}
	rest := b[1:]
	n1 := getVarint(rest, v1)
	if n1 == 0 {
		return 0, newError(FrameEncodingError, name)
	}
	rest = rest[n1:]
	n2 := getVarint(rest, v2)
	if n2 == 0 {
		return 0, newError(FrameEncodingError, name)
	}
	rest = rest[n2:]
	n3 := getVarint(rest, v3)
	if n3 == 0 {
		return 0, newError(FrameEncodingError, name)
	}
	return 1 + n1 + n2 + n3, nil
}

// encodeFrames writes each frame in order to b; buildPacket calls it to
// produce a packet's plaintext payload.
func encodeFrames(b []byte, frames []frame) (int, error) {
	n := 0
	for _, f := range frames {
		m, err := f.encode(b[n:])
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}
