package transport

import (
	"bytes"
	"crypto/rand"
)

// CID is a QUIC connection identifier: an opaque byte string up to
// MaxCIDLength bytes . Equality is byte-wise.
type CID []byte

// Equal reports byte-wise equality.
func (c CID) Equal(o CID) bool {
	return bytes.Equal(c, o)
}

// Clone returns a copy, since CIDs read off the wire alias the caller's
// receive buffer.
func (c CID) Clone() CID {
	if len(c) == 0 {
		return nil
	}
	out := make(CID, len(c))
	copy(out, c)
	return out
}

// NewRandomCID returns a CSPRNG-backed connection ID of n bytes
// ("the Initial DCID for a fresh outgoing connection is
// drawn from a CSPRNG").
func NewRandomCID(n int) (CID, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return CID(b), nil
}

// ExtendedCID disambiguates first-Initial-packet lookups by pairing a
// peer-chosen DCID with the sender's socket address ("extended
// DCID"), since multiple in-flight clients may coincidentally choose
// colliding DCIDs before a connection is established.
type ExtendedCID struct {
	CID string
	Addr string
}

// NewExtendedCID builds the lookup key used by the registry's icids
// table for first Initial packets.
func NewExtendedCID(dcid CID, addr string) ExtendedCID {
	return ExtendedCID{CID: string(dcid), Addr: addr}
}
