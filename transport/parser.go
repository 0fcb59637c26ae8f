package transport

// parsedPacket is the result of successfully parsing and decrypting one
// QUIC packet off the wire ("Packet layer").
type parsedPacket struct {
	header *header
	payload []byte // decrypted frame bytes
}

// parsePacket removes header protection, expands and validates the
// packet number against pnSpace, and opens the AEAD, in the order spec
// §4.2/§4.3 requires: sample -> unmask -> read truncated pn -> expand ->
// build nonce -> AEAD-open over the now fully unmasked header as
// associated data.
//
// dcidLen is used only for short-header parsing (the long-header DCID
// carries its own length prefix). parsePacket passes no altKeys; with
// parsePacketKeyPhase, altKeys, when non-nil, is tried instead of keys
// when a short-header packet's key-phase bit doesn't match currentPhase
// (RFC 9001 §6 key update; KEY_UPDATE_ERROR).
func parsePacket(b []byte, dcidLen int, keys *levelKeys, pnSpace *packetNumberSpace) (*parsedPacket, int, error) {
	return parsePacketKeyPhase(b, dcidLen, keys, pnSpace, false, nil)
}

func parsePacketKeyPhase(b []byte, dcidLen int, keys *levelKeys, pnSpace *packetNumberSpace, currentPhase bool, altKeys *levelKeys) (*parsedPacket, int, error) {
	h, err := decodeHeader(b, dcidLen)
	if err != nil {
		return nil, 0, err
	}
	if h.typ == packetTypeVersionNegotiation || h.typ == packetTypeRetry {
		// Neither carries header protection or a packet number.
		return &parsedPacket{header: h}, len(b), nil
	}
	if keys == nil || !keys.set {
		return nil, 0, newError(ProtocolViolation, "no keys for level")
	}

	longHeader := h.typ != packetTypeShort
	packetEnd := len(b)
	if longHeader {
		packetEnd = h.pnOffset + h.length
		if packetEnd > len(b) {
			return nil, 0, errShortBuffer
		}
	}

	sample, err := headerProtectionSample(b[:packetEnd], h.pnOffset)
	if err != nil {
		return nil, 0, err
	}
	mask, err := keys.hp(keys.hpKey, sample)
	if err != nil {
		return nil, 0, err
	}

	// Peek the protected pn length from the (about to be unmasked) first
	// byte without mutating b until we're sure we can proceed.
	first := b[0]
	if longHeader {
		first ^= mask[0] & 0x0f
	} else {
		first ^= mask[0] & 0x1f
	}
	pnLen := int(first&0x3) + 1
	if h.pnOffset+pnLen > packetEnd {
		return nil, 0, errShortBuffer
	}

	applyHeaderProtectionMask(b[:packetEnd], longHeader, h.pnOffset, pnLen, mask)
	h.pnLen = pnLen
	if !longHeader {
		h.keyPhase = b[0]&0x04 != 0
	}

	var truncated uint64
	for i := 0; i < pnLen; i++ {
		truncated = truncated<<8 | uint64(b[h.pnOffset+i])
	}
	h.packetNum = pnExpand(pnSpace.rxLargestPN, truncated, pnLen)

	openKeys := keys
	if !longHeader && h.keyPhase != currentPhase && altKeys != nil {
		openKeys = altKeys
	}
	nonce := buildNonce(openKeys.iv, h.packetNum)
	aad := b[:h.pnOffset+pnLen]
	ciphertext := b[h.pnOffset+pnLen : packetEnd]
	plaintext, err := openKeys.aead.Open(ciphertext[:0], nonce, ciphertext, aad)
	if err != nil {
		return nil, 0, newError(ProtocolViolation, "aead open failed")
	}
	return &parsedPacket{header: h, payload: plaintext}, packetEnd, nil
}
