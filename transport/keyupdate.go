package transport

// deriveUpdatedSecret implements the "quic ku" key-update label (RFC
// 9001 §6 "Key Update"): each generation's secret is derived from the
// previous one via the same HKDF-Expand-Label machinery component 2
// already provides (/: KEY_UPDATE_ERROR is named in
// the error taxonomy though this design's component breakdown does not
// detail the mechanism; grounded in xprt_quic.c's quic_tls_key_update).
func deriveUpdatedSecret(suite CipherSuite, secret []byte) []byte {
	sp, ok := suiteFor(suite)
	if !ok {
		return nil
	}
	return hkdfExpandLabel(sp.newHash, secret, "quic ku", nil, len(secret))
}

// deriveNextRx lazily derives and caches the next-generation read keys
// for the Application level, used to decrypt a packet whose key-phase
// bit doesn't match our current generation ("any write to an
// already-errored connection" analog: a key-phase mismatch on open
// triggers an attempt with the next generation rather than an outright
// drop).
func (lc *levelCrypto) deriveNextRx() (*levelKeys, error) {
	if lc.nextRxKeys != nil {
		return lc.nextRxKeys, nil
	}
	secret := deriveUpdatedSecret(lc.suite, lc.rxSecret)
	if secret == nil {
		return nil, newError(KeyUpdateError, "unsupported cipher suite")
	}
	keys, err := deriveLevelKeys(lc.suite, secret)
	if err != nil {
		return nil, err
	}
	lc.nextRxSecret = secret
	lc.nextRxKeys = &keys
	return lc.nextRxKeys, nil
}

// commitNextRx promotes the cached next-generation rx keys to current,
// called once a packet has been successfully opened under them.
func (lc *levelCrypto) commitNextRx() {
	lc.rxSecret = lc.nextRxSecret
	lc.keys.rx = *lc.nextRxKeys
	lc.keyPhaseRx = !lc.keyPhaseRx
	lc.nextRxKeys = nil
	lc.nextRxSecret = nil
}

// initiateKeyUpdate rolls our own tx secret forward one generation, for
// local-initiated key updates (RFC 9001 §6.1). Only meaningful once
// Application-level secrets are established.
func (d *handshakeDriver) initiateKeyUpdate() error {
	lc := &d.levels[LevelApplication]
	if lc.txSecret == nil {
		return newError(KeyUpdateError, "application secrets not yet set")
	}
	secret := deriveUpdatedSecret(lc.suite, lc.txSecret)
	if secret == nil {
		return newError(KeyUpdateError, "unsupported cipher suite")
	}
	keys, err := deriveLevelKeys(lc.suite, secret)
	if err != nil {
		return err
	}
	lc.txSecret = secret
	lc.keys.tx = keys
	lc.keyPhaseTx = !lc.keyPhaseTx
	return nil
}
