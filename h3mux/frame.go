package h3mux

import "encoding/binary"

// FrameHeaderLen is the length of the 9-byte frame header of :
// "{len[24], type, flags, sid[31]}".
const FrameHeaderLen = 9

// frameType enumerates the recognized frame types (demux FSM
// and §9 open question treats this as HTTP/2 framing).
type frameType uint8

const (
	frameData frameType = 0x0
	frameHeaders frameType = 0x1
	framePriority frameType = 0x2
	frameRSTStream frameType = 0x3
	frameSettings frameType = 0x4
	framePushPromise frameType = 0x5
	framePing frameType = 0x6
	frameGoAway frameType = 0x7
	frameWindowUpdate frameType = 0x8
	frameContinuation frameType = 0x9
)

func (t frameType) String() string {
	switch t {
	case frameData:
		return "DATA"
	case frameHeaders:
		return "HEADERS"
	case framePriority:
		return "PRIORITY"
	case frameRSTStream:
		return "RST_STREAM"
	case frameSettings:
		return "SETTINGS"
	case framePushPromise:
		return "PUSH_PROMISE"
	case framePing:
		return "PING"
	case frameGoAway:
		return "GOAWAY"
	case frameWindowUpdate:
		return "WINDOW_UPDATE"
	case frameContinuation:
		return "CONTINUATION"
	default:
		return "UNKNOWN"
	}
}

// Frame flags, named per the frame kind that defines them .
const (
	flagEndStream uint8 = 0x1
	flagAck uint8 = 0x1
	flagEndHeaders uint8 = 0x4
	flagPadded uint8 = 0x8
	flagPriority uint8 = 0x20
)

type frameHeader struct {
	length uint32 // 24-bit payload length
	typ frameType
	flags uint8
	streamID uint32 // 31-bit stream id, reserved bit cleared
}

func decodeFrameHeader(b []byte) (frameHeader, error) {
	if len(b) < FrameHeaderLen {
		return frameHeader{}, errShortFrame
	}
	return frameHeader{
		length: uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		typ: frameType(b[3]),
		flags: b[4],
		streamID: binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff,
	}, nil
}

func encodeFrameHeader(b []byte, h frameHeader) {
	_ = b[8] // bounds check hint
	b[0] = byte(h.length >> 16)
	b[1] = byte(h.length >> 8)
	b[2] = byte(h.length)
	b[3] = byte(h.typ)
	b[4] = h.flags
	binary.BigEndian.PutUint32(b[5:9], h.streamID&0x7fffffff)
}

// settingID identifies a SETTINGS parameter ("tune.h3.*").
type settingID uint16

const (
	settingHeaderTableSize settingID = 0x1
	settingEnablePush settingID = 0x2
	settingMaxConcurrentStreams settingID = 0x3
	settingInitialWindowSize settingID = 0x4
	settingMaxFrameSize settingID = 0x5
	settingMaxHeaderListSize settingID = 0x6
)

type setting struct {
	id settingID
	value uint32
}

// decodeSettings parses a SETTINGS frame payload into (id, value) pairs,
// 6 bytes each (boundary: "SETTINGS with ACK flag and non-zero
// length -> FRAME_SIZE_ERROR" is checked by the caller before this runs).
func decodeSettings(b []byte) ([]setting, error) {
	if len(b)%6 != 0 {
		return nil, newConnError(ErrFrameSizeError, "settings payload not a multiple of 6")
	}
	out := make([]setting, 0, len(b)/6)
	for len(b) > 0 {
		out = append(out, setting{
				id: settingID(binary.BigEndian.Uint16(b[0:2])),
				value: binary.BigEndian.Uint32(b[2:6]),
			})
		b = b[6:]
	}
	return out, nil
}

func encodeSettings(b []byte, settings []setting) int {
	n := 0
	for _, s := range settings {
		binary.BigEndian.PutUint16(b[n:n+2], uint16(s.id))
		binary.BigEndian.PutUint32(b[n+2:n+6], s.value)
		n += 6
	}
	return n
}

// decodeWindowUpdate/encodeWindowUpdate handle the 4-byte WINDOW_UPDATE payload
// (top bit reserved, flow control).
func decodeWindowUpdate(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, newConnError(ErrFrameSizeError, "window_update payload must be 4 bytes")
	}
	return binary.BigEndian.Uint32(b) & 0x7fffffff, nil
}

func encodeWindowUpdate(b []byte, increment uint32) {
	binary.BigEndian.PutUint32(b, increment&0x7fffffff)
}

// The RST_STREAM payload is a 4-byte error code.
func decodeRSTStream(b []byte) (ErrorCode, error) {
	if len(b) != 4 {
		return 0, newConnError(ErrFrameSizeError, "rst_stream payload must be 4 bytes")
	}
	return ErrorCode(binary.BigEndian.Uint32(b)), nil
}

func encodeRSTStream(b []byte, code ErrorCode) {
	binary.BigEndian.PutUint32(b, uint32(code))
}

// goAwayPayload is {last_stream_id[31], error_code[32], debug_data...}.
type goAwayPayload struct {
	lastStreamID uint32
	errorCode ErrorCode
	debug []byte
}

func decodeGoAway(b []byte) (goAwayPayload, error) {
	if len(b) < 8 {
		return goAwayPayload{}, newConnError(ErrFrameSizeError, "goaway payload too short")
	}
	return goAwayPayload{
		lastStreamID: binary.BigEndian.Uint32(b[0:4]) & 0x7fffffff,
		errorCode: ErrorCode(binary.BigEndian.Uint32(b[4:8])),
		debug: b[8:],
	}, nil
}

func encodeGoAway(b []byte, p goAwayPayload) int {
	binary.BigEndian.PutUint32(b[0:4], p.lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(b[4:8], uint32(p.errorCode))
	n := copy(b[8:], p.debug)
	return 8 + n
}

// The PRIORITY payload is {exclusive[1]+dependency[31], weight[8]}.
// Decoded here; the demuxer rejects a self-dependency (boundary
// behavior) and otherwise ignores the frame — PRIORITY scheduling itself is a Non-goal
// , but `mux_h3.c` parses the frame, so we do too .
func decodePriority(b []byte) (dependency uint32, exclusive bool, weight uint8, err error) {
	if len(b) != 5 {
		return 0, false, 0, newConnError(ErrFrameSizeError, "priority payload must be 5 bytes")
	}
	raw := binary.BigEndian.Uint32(b[0:4])
	return raw & 0x7fffffff, raw&0x80000000 != 0, b[4], nil
}

var errShortFrame = newConnError(ErrFrameSizeError, "short frame header")
