package transport

import "time"

// MaxCIDLength is the maximum length in bytes of a connection ID .
const MaxCIDLength = 20

// LocalCIDLength is the fixed length this endpoint uses for its own
// connection IDs, used to identify short-header packets .
const LocalCIDLength = 8

const (
	// MinInitialPacketSize is the minimum size of a client Initial
	// packet, padded to defeat amplification .
	MinInitialPacketSize = 1200
	// MaxPacketSize is the largest UDP payload this engine will build.
	MaxPacketSize = 65527
	// AEADTagLength is the authentication tag length of every cipher
	// suite recognized here.
	AEADTagLength = 16
	// SampleLength is the number of ciphertext bytes sampled for header
	// protection.
	SampleLength = 16
	// MaxCryptoInFlight bounds unacknowledged CRYPTO bytes per
	// connection .
	MaxCryptoInFlight = 4096
	// cryptoBufferSize is the chunk size backing each level's outbound
	// CRYPTO byte sequence .
	cryptoBufferSize = 16 * 1024
	// reservedTransportParamExtension is the TLS extension id carrying
	// the QUIC transport parameters .
	reservedTransportParamExtension = 0xffa5
)

// Parameters holds the QUIC transport parameters, recognized IDs per
// . It is immutable once attached to a handshake.
type Parameters struct {
	OriginalDestinationCID []byte
	InitialSourceCID []byte
	RetrySourceCID []byte
	StatelessResetToken []byte

	MaxIdleTimeout time.Duration
	MaxUDPPayloadSize uint64
	InitialMaxData uint64
	InitialMaxStreamDataBidiLocal uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni uint64
	InitialMaxStreamsBidi uint64
	InitialMaxStreamsUni uint64
	AckDelayExponent uint64
	MaxAckDelay time.Duration
	DisableActiveMigration bool
	ActiveConnectionIDLimit uint64

	// PreferredAddress is left opaque (server-only, out of scope for
	// migration per) but round-tripped if present.
	PreferredAddress []byte
}

// DefaultParameters returns the default values.
func DefaultParameters() Parameters {
	return Parameters{
		MaxUDPPayloadSize: 65527,
		AckDelayExponent: 3,
		MaxAckDelay: 25 * time.Millisecond,
		ActiveConnectionIDLimit: 2,
	}
}

// CipherSuite identifies a TLS 1.3 cipher suite recognized by the crypto
// context . Four suites are recognized; AES-128-CCM is
// accepted as a configuration value but its AEAD is not wired (
// open question: "TO DO for non-BoringSSL builds").
type CipherSuite uint16

const (
	TLS_AES_128_GCM_SHA256 CipherSuite = 0x1301
	TLS_AES_256_GCM_SHA384 CipherSuite = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 CipherSuite = 0x1303
	TLS_AES_128_CCM_SHA256 CipherSuite = 0x1304
)

// TLSProvider is the handshake interface contract described in :
// the TLS record layer itself is out of scope, consumed only through
// this interface. Implementations drive TLS 1.3 over the CRYPTO stream
// and report freshly derived secrets per encryption level.
type TLSProvider interface {
	// SetTransportParams configures the local transport parameters to
	// be carried in the TLS handshake (extension 0xffa5).
	SetTransportParams(p *Parameters)
	// PeerTransportParams returns the peer's transport parameters once
	// received, or nil before that.
	PeerTransportParams() *Parameters

	// ReadCRYPTO is called by the handshake driver with in-order CRYPTO
	// bytes received at the given level.
	ReadCRYPTO(level Level, data []byte) error
	// WriteCRYPTO drains up to len(b) bytes of outbound TLS record data
	// queued for the given level, returning how many bytes were
	// written.
	WriteCRYPTO(level Level, b []byte) (int, error)

	// Progress asks the provider to advance the handshake state
	// machine. It returns an error only on a fatal handshake failure;
	// want-read/want-write is signaled by returning nil with no new
	// secrets or CRYPTO bytes produced.
	Progress() error

	// HandshakeComplete reports whether the TLS handshake has finished.
	HandshakeComplete() bool

	// NextSecrets drains any newly available {level, read secret, write
	// secret, suite} tuples produced since the last call.
	NextSecrets() []Secrets

	// Reset restarts the provider after a Retry or Version Negotiation
	// (state machine).
	Reset()
}

// Secrets is one level's freshly derived read/write secret pair.
type Secrets struct {
	Level Level
	Suite CipherSuite
	Read []byte
	Write []byte
	IsInit bool // true only for the Initial level's synthetic secrets
}

// Config configures a new connection ("QUIC connection").
type Config struct {
	Version uint32
	Params Parameters
	TLS TLSProvider
	MaxIdleTime time.Duration

	// RingSlots/RingBufSize are resolved by ringSlots/ringBufSize (zero
	// selects the defaults below), but Conn keeps no output ring and
	// reads neither: Send writes each datagram straight into the
	// caller's buffer.
	RingSlots int
	RingBufSize int
}

const (
	defaultRingSlots = 8
	defaultRingBufSize = MaxPacketSize
)

func (c *Config) ringSlots() int {
	if c.RingSlots > 0 {
		return c.RingSlots
	}
	return defaultRingSlots
}

func (c *Config) ringBufSize() int {
	if c.RingBufSize > 0 {
		return c.RingBufSize
	}
	return defaultRingBufSize
}
