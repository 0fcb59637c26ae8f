package registry

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"

	"github.com/quicbridge/engine/transport"
)

// ErrInvalidToken is returned by RetryValidator.Validate when a token
// fails its HMAC check or has expired.
var ErrInvalidToken = errors.New("registry: invalid retry token")

// RetryValidator issues and validates stateless Retry tokens. The
// listener-side amplification limit only has teeth once address
// validation exists, so Retry tokens are opaque HMAC-tagged blobs
// carrying the original DCID, the client address and an issue time, and
// a listener can validate one without retaining per-client state.
type RetryValidator struct {
	key [32]byte
	ttl time.Duration
}

// NewRetryValidator derives a fresh random HMAC key. Keys are rotated by
// creating a new validator; the previous one's tokens simply stop
// validating, which is acceptable since Retry tokens are short-lived.
func NewRetryValidator(ttl time.Duration) (*RetryValidator, error) {
	v := &RetryValidator{ttl: ttl}
	if _, err := rand.Read(v.key[:]); err != nil {
		return nil, err
	}
	return v, nil
}

// Issue builds a token for a client at addr whose original DCID was
// odcid, stamped with now.
func (v *RetryValidator) Issue(odcid transport.CID, addr string, now time.Time) []byte {
	payload := make([]byte, 0, 8+1+len(odcid)+len(addr))
	payload = binary.BigEndian.AppendUint64(payload, uint64(now.Unix()))
	payload = append(payload, byte(len(odcid)))
	payload = append(payload, odcid...)
	payload = append(payload, addr...)

	mac := hmac.New(sha256.New, v.key[:])
	mac.Write(payload)
	tag := mac.Sum(nil)

	token := make([]byte, 0, len(payload)+len(tag))
	token = append(token, payload...)
	token = append(token, tag...)
	return token
}

// Validate checks a token presented in a client's retried Initial packet
// against the address it arrived from, returning the original DCID to
// restore into the new connection's transport parameters (id 0
// "original_destination_connection_id").
func (v *RetryValidator) Validate(token []byte, addr string, now time.Time) (transport.CID, error) {
	const sumLen = sha256.Size
	if len(token) < 8+1+sumLen {
		return nil, ErrInvalidToken
	}
	sumStart := len(token) - sumLen
	payload, sum := token[:sumStart], token[sumStart:]

	mac := hmac.New(sha256.New, v.key[:])
	mac.Write(payload)
	expected := mac.Sum(nil)
	if !hmac.Equal(sum, expected) {
		return nil, ErrInvalidToken
	}

	issuedUnix := int64(binary.BigEndian.Uint64(payload[:8]))
	if v.ttl > 0 && now.Sub(time.Unix(issuedUnix, 0)) > v.ttl {
		return nil, ErrInvalidToken
	}
	odcidLen := int(payload[8])
	if len(payload) < 9+odcidLen {
		return nil, ErrInvalidToken
	}
	odcid := transport.CID(payload[9 : 9+odcidLen]).Clone()
	clientAddr := string(payload[9+odcidLen:])
	if clientAddr != addr {
		return nil, ErrInvalidToken
	}
	return odcid, nil
}
