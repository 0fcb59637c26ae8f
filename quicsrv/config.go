package quicsrv

import (
	"time"

	"github.com/quicbridge/engine/h3mux"
	"github.com/quicbridge/engine/transport"
)

// Config configures a Server or Client, threaded through as an
// immutable value rather than read from process-global tunables.
type Config struct {
	// Transport is the per-connection transport.Config template; its TLS
	// field is ignored and replaced per connection by a fresh provider
	// from TLSFactory.
	Transport transport.Config
	// TLSFactory builds a fresh transport.TLSProvider for each new
	// connection, since a TLSProvider carries per-connection handshake
	// state.
	TLSFactory func(isClient bool) transport.TLSProvider

	// Mux configures the HTTP framing layer , applied once
	// per connection after the handshake completes.
	Mux h3mux.Config

	// RetryValidator, if set, causes the server to validate a client's
	// Retry token before accepting a new connection. Left nil by default:
	// this engine does not emit Retry packets itself, so address
	// validation only activates when a caller supplies a validator (e.g.
	// one shared with a front-end issuing the tokens).
	RetryValidator retryValidator

	// ReadBufferSize is the UDP datagram buffer size.
	ReadBufferSize int

	// IdleCheckInterval is not read by the tasklet: its idle timer is
	// re-armed from Conn.Timeout alone after every wake-up.
	IdleCheckInterval time.Duration
}

// retryValidator is the narrow contract quicsrv needs from
// registry.RetryValidator, kept local to avoid importing registry's
// HMAC internals into the public Config surface.
type retryValidator interface {
	Issue(odcid transport.CID, addr string, now time.Time) []byte
	Validate(token []byte, addr string, now time.Time) (transport.CID, error)
}

func (c *Config) readBufferSize() int {
	if c.ReadBufferSize > 0 {
		return c.ReadBufferSize
	}
	return 65536
}
