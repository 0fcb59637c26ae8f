package transport

import (
	"golang.org/x/crypto/cryptobyte"
)

// packetType identifies the form of a QUIC packet header .
type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeVersionNegotiation
	packetTypeShort
	packetTypeUnknown
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "0RTT"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	case packetTypeShort:
		return "1RTT"
	default:
		return "unknown"
	}
}

func (t packetType) level() Level {
	switch t {
	case packetTypeInitial:
		return LevelInitial
	case packetTypeZeroRTT:
		return LevelZeroRTT
	case packetTypeHandshake:
		return LevelHandshake
	default:
		return LevelApplication
	}
}

const (
	longHeaderForm = 0x80
	fixedBit = 0x40
	longTypeInitial = 0x00
	longTypeZeroRTT = 0x01
	longTypeHandshake = 0x02
	longTypeRetry = 0x03
)

// header is the decoded form of a QUIC packet header, shared by long and
// short forms . Fields are populated progressively: a first
// pass (decodeHeader) parses everything up to the still header-protected
// packet number; the parser unmasks and fills pnLen/packetNum afterward.
type header struct {
	typ packetType
	version uint32
	dcid CID
	scid CID

	token []byte // Initial packets only

	retryToken []byte // Retry packets only: opaque token
	retryTag [16]byte // Retry packets only: integrity tag

	supportedVersions []uint32 // Version Negotiation only

	length int // Initial/0-RTT/Handshake: varint payload length (PN + frames)

	pnOffset int // byte offset where the (still protected) packet number starts
	pnLen int // valid only after header protection removal
	keyPhase bool // short header only, valid only after header protection removal

	packetNum int64 // valid only after header protection removal + expansion
}

// decodeHeader parses a packet header up to (but not including) removing
// header protection from the packet number. dcidLen is this endpoint's
// local connection ID length, needed to know where a short header's DCID
// ends (short headers carry no explicit DCID length).
func decodeHeader(b []byte, dcidLen int) (*header, error) {
	if len(b) < 1 {
		return nil, errShortBuffer
	}
	if b[0]&longHeaderForm != 0 {
		return decodeLongHeader(b)
	}
	return decodeShortHeader(b, dcidLen)
}

func decodeLongHeader(b []byte) (*header, error) {
	if len(b) < 5 {
		return nil, errShortBuffer
	}
	h := &header{}
	first := b[0]
	s := cryptobyte.String(b[1:])

	var versionBytes []byte
	if !s.ReadBytes(&versionBytes, 4) {
		return nil, errShortBuffer
	}
	version := uint32(versionBytes[0])<<24 | uint32(versionBytes[1])<<16 | uint32(versionBytes[2])<<8 | uint32(versionBytes[3])
	h.version = version

	if version == 0 {
		h.typ = packetTypeVersionNegotiation
		return decodeVersionNegotiationRest(h, &s)
	}

	switch (first >> 4) & 0x3 {
	case longTypeInitial:
		h.typ = packetTypeInitial
	case longTypeZeroRTT:
		h.typ = packetTypeZeroRTT
	case longTypeHandshake:
		h.typ = packetTypeHandshake
	case longTypeRetry:
		h.typ = packetTypeRetry
	}

	var dcid cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&dcid) {
		return nil, newError(ProtocolViolation, "dcid length")
	}
	if len(dcid) > MaxCIDLength {
		return nil, newError(ProtocolViolation, "dcid length")
	}
	h.dcid = CID(dcid).Clone()

	var scid cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&scid) {
		return nil, newError(ProtocolViolation, "scid length")
	}
	if len(scid) > MaxCIDLength {
		return nil, newError(ProtocolViolation, "scid length")
	}
	h.scid = CID(scid).Clone()

	if h.typ == packetTypeRetry {
		rest := []byte(s)
		if len(rest) < 16 {
			return nil, newError(ProtocolViolation, "retry too short")
		}
		tagStart := len(rest) - 16
		h.retryToken = append([]byte(nil), rest[:tagStart]...)
		copy(h.retryTag[:], rest[tagStart:])
		return h, nil
	}

	if h.typ == packetTypeInitial {
		var tokenLen uint64
		n := getVarint([]byte(s), &tokenLen)
		if n == 0 {
			return nil, errShortBuffer
		}
		if !s.Skip(n) {
			return nil, errShortBuffer
		}
		var token []byte
		if !s.ReadBytes(&token, int(tokenLen)) {
			return nil, errShortBuffer
		}
		h.token = append([]byte(nil), token...)
	}

	var length uint64
	n := getVarint([]byte(s), &length)
	if n == 0 {
		return nil, errShortBuffer
	}
	if !s.Skip(n) {
		return nil, errShortBuffer
	}
	h.length = int(length)
	h.pnOffset = len(b) - len(s)
	return h, nil
}

// decodeVersionNegotiationRest parses the DCID/SCID/supported-versions
// list that follows the zero version field of a Version Negotiation
// packet, reusing the length-prefixed CID reads from decodeLongHeader.
func decodeVersionNegotiationRest(h *header, s *cryptobyte.String) (*header, error) {
	var dcid cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&dcid) {
		return nil, errShortBuffer
	}
	h.dcid = CID(dcid).Clone()

	var scid cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&scid) {
		return nil, errShortBuffer
	}
	h.scid = CID(scid).Clone()

	for len(*s) >= 4 {
		var v uint32
		if !s.ReadUint32(&v) {
			break
		}
		h.supportedVersions = append(h.supportedVersions, v)
	}
	return h, nil
}

// PeekedHeader exposes just enough of a datagram's first packet header for
// a listener to route it before any Conn exists ("Connection
// registry": a first Initial packet is keyed by its DCID and the sender's
// address; every later packet is keyed by local SCID, which for a short
// header is simply the first dcidLen bytes after the first byte).
type PeekedHeader struct {
	Type string
	Version uint32
	DCID CID
	SCID CID
	Token []byte
	IsLong bool
}

// PeekHeader decodes only the unprotected portion of the first packet in
// b (dcidLen is this endpoint's local CID length, used for short
// headers).
func PeekHeader(b []byte, dcidLen int) (PeekedHeader, error) {
	h, err := decodeHeader(b, dcidLen)
	if err != nil {
		return PeekedHeader{}, err
	}
	return PeekedHeader{
		Type: h.typ.String(),
		Version: h.version,
		DCID: h.dcid,
		SCID: h.scid,
		Token: h.token,
		IsLong: h.typ != packetTypeShort,
	}, nil
}

func decodeShortHeader(b []byte, dcidLen int) (*header, error) {
	if len(b) < 1+dcidLen {
		return nil, errShortBuffer
	}
	h := &header{typ: packetTypeShort}
	h.dcid = CID(b[1 : 1+dcidLen]).Clone()
	h.pnOffset = 1 + dcidLen
	return h, nil
}

// encodeLongHeaderPrefix writes a long-header packet's unprotected
// portion (everything up to and including the placeholder, not-yet
// header-protected packet number bytes) and returns the offset at which
// those pn bytes start.
func encodeLongHeaderPrefix(h *header, pnLen int, b []byte) (int, []byte, error) {
	var longType byte
	switch h.typ {
	case packetTypeInitial:
		longType = longTypeInitial
	case packetTypeZeroRTT:
		longType = longTypeZeroRTT
	case packetTypeHandshake:
		longType = longTypeHandshake
	default:
		return 0, nil, newError(InternalError, "unsupported long packet type for encode")
	}
	out := b[:0]
	first := longHeaderForm | fixedBit | (longType << 4) | byte(pnLen-1)
	out = append(out, first)
	out = append(out, byte(h.version>>24), byte(h.version>>16), byte(h.version>>8), byte(h.version))
	out = append(out, byte(len(h.dcid)))
	out = append(out, h.dcid...)
	out = append(out, byte(len(h.scid)))
	out = append(out, h.scid...)
	if h.typ == packetTypeInitial {
		out = putVarint(out, uint64(len(h.token)))
		out = append(out, h.token...)
	}
	// Length field reserves 2 bytes, patched by the caller once the real
	// payload length (pn + ciphertext) is known (step 2).
	lengthOffset := len(out)
	out = append(out, 0, 0)
	pnOffset := len(out)
	if pnOffset+pnLen > len(b) {
		return 0, nil, errShortBuffer
	}
	out = append(out, pnTruncate(h.packetNum, pnLen)...)
	_ = lengthOffset
	return pnOffset, out, nil
}

// patchLongHeaderLength writes a fixed 2-byte varint length field (0x40
// prefix form) at lengthOffset, matching the reservation above.
func patchLongHeaderLength(out []byte, lengthOffset, length int) {
	out[lengthOffset] = 0x40 | byte(length>>8)
	out[lengthOffset+1] = byte(length)
}

func encodeShortHeaderPrefix(h *header, pnLen int, keyPhase bool, b []byte) (int, []byte, error) {
	out := b[:0]
	first := fixedBit | byte(pnLen-1)
	if keyPhase {
		first |= 0x04
	}
	out = append(out, first)
	out = append(out, h.dcid...)
	pnOffset := len(out)
	if pnOffset+pnLen > len(b) {
		return 0, nil, errShortBuffer
	}
	out = append(out, pnTruncate(h.packetNum, pnLen)...)
	return pnOffset, out, nil
}
