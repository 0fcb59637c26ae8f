package transport

// handshakeState tracks the connection state machine of .
type handshakeState uint8

const (
	stateInitial handshakeState = iota
	stateHandshake
	stateHandshakeDone
	stateClosing
	stateDraining
	stateClosed
)

// handshakeDriver wires a TLSProvider to the per-level crypto streams and
// secret derivation, implementing the loop in .
type handshakeDriver struct {
	tls TLSProvider
	isClient bool

	levels [levelCount]levelCrypto
	state handshakeState

	cryptoInFlight int
}

type levelCrypto struct {
	pnSpace packetNumberSpace
	crypto cryptoStream
	keys struct {
		rx levelKeys
		tx levelKeys
	}

	// Key-update bookkeeping (KEY_UPDATE_ERROR,),
	// meaningful only at LevelApplication: the raw secrets (pre key/iv/hp
	// expansion) so a later generation can be derived from the current
	// one, the key-phase bit currently in effect for each direction, and
	// a lazily-derived next-generation rx key set cached across packets
	// until it is either committed or discarded.
	suite CipherSuite
	rxSecret []byte
	txSecret []byte
	keyPhaseRx bool
	keyPhaseTx bool
	nextRxKeys *levelKeys
	nextRxSecret []byte
}

func newHandshakeDriver(tls TLSProvider, isClient bool, dcid CID) *handshakeDriver {
	d := &handshakeDriver{tls: tls, isClient: isClient, state: stateInitial}
	for i := range d.levels {
		d.levels[i].pnSpace.init(Level(i).Space())
		d.levels[i].crypto.init()
	}
	clientSecret, serverSecret := deriveInitialSecrets(dcid)
	var rx, tx []byte
	if isClient {
		tx, rx = clientSecret, serverSecret
	} else {
		rx, tx = clientSecret, serverSecret
	}
	if keys, err := deriveLevelKeys(TLS_AES_128_GCM_SHA256, rx); err == nil {
		d.levels[LevelInitial].keys.rx = keys
	}
	if keys, err := deriveLevelKeys(TLS_AES_128_GCM_SHA256, tx); err == nil {
		d.levels[LevelInitial].keys.tx = keys
	}
	return d
}

// installSecrets applies newly available secrets reported by the TLS
// provider ("Invoke tls.do_handshake; ... on completion
// advance to the next level").
func (d *handshakeDriver) installSecrets() error {
	for _, s := range d.tls.NextSecrets() {
		rxKeys, err := deriveLevelKeys(s.Suite, s.Read)
		if err != nil {
			return err
		}
		txKeys, err := deriveLevelKeys(s.Suite, s.Write)
		if err != nil {
			return err
		}
		lc := &d.levels[s.Level]
		lc.keys.rx = rxKeys
		lc.keys.tx = txKeys
		if s.Level == LevelApplication {
			lc.suite = s.Suite
			lc.rxSecret = s.Read
			lc.txSecret = s.Write
		}
	}
	return nil
}

// feedCrypto hands in-order CRYPTO bytes at level to the TLS provider,
// after they have passed through the level's reassembly buffer.
func (d *handshakeDriver) feedCrypto(level Level, offset uint64, data []byte) error {
	ready, err := d.levels[level].crypto.recv.push(offset, data)
	if err != nil {
		return err
	}
	if len(ready) == 0 {
		return nil
	}
	return d.tls.ReadCRYPTO(level, ready)
}

// drainOutbound asks the provider for any newly produced handshake bytes
// at level and appends them to the level's outbound crypto buffer.
func (d *handshakeDriver) drainOutbound(level Level) error {
	buf := make([]byte, cryptoBufferSize)
	for {
		n, err := d.tls.WriteCRYPTO(level, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		d.levels[level].crypto.send.write(buf[:n])
		if n < len(buf) {
			return nil
		}
	}
}

// progress drives the TLS state machine one step and reacts to the
// result per step 6 ("ok; want-read/want-write (suspend);
// fatal (abort)").
func (d *handshakeDriver) progress() error {
	if err := d.tls.Progress(); err != nil {
		d.state = stateClosed
		return err
	}
	if err := d.installSecrets(); err != nil {
		d.state = stateClosed
		return err
	}
	for lvl := LevelInitial; lvl < levelCount; lvl++ {
		if lvl.hasCryptoStream() {
			if err := d.drainOutbound(lvl); err != nil {
				d.state = stateClosed
				return err
			}
		}
	}
	if d.tls.HandshakeComplete() && d.state != stateHandshakeDone {
		d.state = stateHandshakeDone
	} else if d.state == stateInitial {
		d.state = stateHandshake
	}
	return nil
}

func (d *handshakeDriver) onCryptoAcked(level Level, offset uint64, length int) {
	d.levels[level].crypto.send.ack(offset, length)
	d.cryptoInFlight -= length
	if d.cryptoInFlight < 0 {
		d.cryptoInFlight = 0
	}
}

func (d *handshakeDriver) onCryptoLost(level Level, offset uint64, length int) {
	d.levels[level].crypto.send.onLost(offset)
	d.cryptoInFlight -= length
	if d.cryptoInFlight < 0 {
		d.cryptoInFlight = 0
	}
}
