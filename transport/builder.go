package transport

// errBuilderFull is returned by buildPacket when out is too small to fit
// even a minimal packet; Conn.Send returns it to its own caller
// (return discipline, the "−1" case).
var errBuilderFull = newError(InternalError, "builder: destination buffer full")

// sentDescriptor records what a single built packet carried, so the
// retransmission manager can later free or requeue it once the packet's
// fate (acked or lost) is known ("outgoing CRYPTO frame tree").
type sentDescriptor struct {
	pn int64
	sentTime int64 // monotonic nanoseconds, caller-stamped
	ackEliciting bool
	cryptoOffset uint64
	cryptoLength int
	hasCrypto bool
	handshakeDone bool
	streamIDs []uint64 // stream frames carried, for flow-control bookkeeping
}

// buildInput carries everything buildPacket needs to assemble one packet
// at a given level. Callers (the handshake driver and, later, the
// connection's main send path) own the lifetime of the referenced
// structures across calls.
type buildInput struct {
	level Level
	version uint32
	dcid CID
	scid CID
	token []byte // Initial only
	isClient bool
	padToMin bool // pad Initial packets to MinInitialPacketSize (step 5)

	pnSpace *packetNumberSpace
	keys *levelKeys

	crypto *cryptoStream // nil at LevelApplication-only connections with no more handshake traffic
	cryptoInFlight *int // shared "4096 − crypto_in_flight" budget across all levels

	ackRequired bool
	ackDelay uint64

	controlFrames []frame // MAX_DATA, MAX_STREAM_DATA, NEW_CONNECTION_ID, HANDSHAKE_DONE, CONNECTION_CLOSE, ...
	streamFrames []frame // STREAM frames ready to go out (short header only)

	keyPhase bool // short header only
}

// buildPacket assembles, encrypts and header-protects one packet into
// out, per . Return discipline:
// n > 0 -> committed; n is the packet length.
// n == 0, err == nil -> nothing to send at this level right now.
// err == errBuilderFull -> out is too small; Conn.Send returns the error.
// err (other) -> fatal, connection fails.
func buildPacket(in *buildInput, out []byte) (int, *sentDescriptor, error) {
	if in.keys == nil || !in.keys.set {
		return 0, nil, nil
	}

	longHeader := in.level == LevelInitial || in.level == LevelHandshake || in.level == LevelZeroRTT

	pn := in.pnSpace.nextTxPN()
	pnLen := in.pnSpace.pnLength()

	h := &header{
		typ: levelPacketType(in.level),
		version: in.version,
		dcid: in.dcid,
		scid: in.scid,
		token: in.token,
		packetNum: pn,
	}

	var headerBytes []byte
	var pnOffset, lengthOffset int
	var err error
	headBuf := make([]byte, 0, len(out))
	if longHeader {
		pnOffset, headerBytes, err = encodeLongHeaderPrefix(h, pnLen, headBuf[:cap(headBuf)])
		if err != nil {
			return 0, nil, errBuilderFull
		}
		lengthOffset = pnOffset - 2
	} else {
		pnOffset, headerBytes, err = encodeShortHeaderPrefix(h, pnLen, in.keyPhase, headBuf[:cap(headBuf)])
		if err != nil {
			return 0, nil, errBuilderFull
		}
	}

	budget := len(out) - len(headerBytes) - AEADTagLength
	if budget < 0 {
		return 0, nil, errBuilderFull
	}

	var frames []frame
	desc := &sentDescriptor{pn: pn}

	if in.ackRequired && budget > 0 {
		af := newAckFrame(in.ackDelay, in.pnSpace.rxReceived)
		if n := af.encodedLen(); n <= budget {
			frames = append(frames, af)
			budget -= n
		}
	}

	for _, f := range in.controlFrames {
		n := f.encodedLen()
		if n > budget {
			continue
		}
		frames = append(frames, f)
		budget -= n
		if _, ok := f.(*handshakeDoneFrame); ok {
			desc.handshakeDone = true
		}
	}

	if in.crypto != nil && in.cryptoInFlight != nil {
		offset, pending := in.crypto.send.pending()
		remaining := MaxCryptoInFlight - *in.cryptoInFlight
		room := budget - maxCryptoFrameOverhead
		if len(pending) > 0 && remaining > 0 && room > 0 {
			n := len(pending)
			if n > remaining {
				n = remaining
			}
			if n > room {
				n = room
			}
			if n > 0 {
				cf := newCryptoFrame(pending[:n], offset)
				frames = append(frames, cf)
				budget -= cf.encodedLen()
				in.crypto.send.markSent(n)
				*in.cryptoInFlight += n
				desc.hasCrypto = true
				desc.cryptoOffset = offset
				desc.cryptoLength = n
			}
		}
	}

	for _, f := range in.streamFrames {
		n := f.encodedLen()
		if n > budget {
			continue
		}
		frames = append(frames, f)
		budget -= n
		if sf, ok := f.(*streamFrame); ok {
			desc.streamIDs = append(desc.streamIDs, sf.streamID)
		}
	}

	if len(frames) == 0 {
		return 0, nil, nil
	}

	for _, f := range frames {
		desc.ackEliciting = desc.ackEliciting || isAckElicitingFrameValue(f)
	}

	payloadLen := 0
	for _, f := range frames {
		payloadLen += f.encodedLen()
	}
	if in.level == LevelInitial && in.isClient && in.padToMin {
		total := len(headerBytes) + payloadLen + AEADTagLength
		if total < MinInitialPacketSize {
			pad := newPaddingFrame(MinInitialPacketSize - total)
			frames = append(frames, pad)
			payloadLen += pad.encodedLen()
		}
	}

	plainBuf := make([]byte, payloadLen)
	n, err := encodeFrames(plainBuf, frames)
	if err != nil {
		return 0, nil, newError(InternalError, "encode frames: "+err.Error())
	}
	plainBuf = plainBuf[:n]

	packetBuf := make([]byte, 0, len(headerBytes)+len(plainBuf)+AEADTagLength)
	packetBuf = append(packetBuf, headerBytes...)
	if longHeader {
		patchLongHeaderLength(packetBuf, lengthOffset, pnLen+len(plainBuf)+AEADTagLength)
	}

	nonce := buildNonce(in.keys.iv, pn)
	aad := packetBuf[:pnOffset+pnLen]
	sealed := in.keys.aead.Seal(nil, nonce, plainBuf, aad)
	packetBuf = append(packetBuf, sealed...)

	if len(packetBuf) > len(out) {
		return 0, nil, errBuilderFull
	}

	sample, err := headerProtectionSample(packetBuf, pnOffset)
	if err != nil {
		return 0, nil, newError(InternalError, "header protection sample: "+err.Error())
	}
	mask, err := in.keys.hp(in.keys.hpKey, sample)
	if err != nil {
		return 0, nil, newError(InternalError, "header protection mask: "+err.Error())
	}
	applyHeaderProtectionMask(packetBuf, longHeader, pnOffset, pnLen, mask)

	copy(out, packetBuf)
	in.pnSpace.commitTxPN()
	if in.ackRequired {
		in.pnSpace.markAckSent()
	}
	return len(packetBuf), desc, nil
}

func levelPacketType(l Level) packetType {
	switch l {
	case LevelInitial:
		return packetTypeInitial
	case LevelZeroRTT:
		return packetTypeZeroRTT
	case LevelHandshake:
		return packetTypeHandshake
	default:
		return packetTypeShort
	}
}

func isAckElicitingFrameValue(f frame) bool {
	switch f.(type) {
	case *paddingFrame, *ackFrame:
		return false
	case *connectionCloseFrame:
		return false
	default:
		return true
	}
}
