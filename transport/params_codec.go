package transport

import (
	"time"

	"github.com/quicbridge/engine/internal/varint"
)

// Transport parameter ids (table), encoded into the reserved TLS
// extension (reservedTransportParamExtension) as a sequence of
// varint(id) varint(len) bytes[len] tuples.
const (
	paramOriginalDestinationCID = 0x00
	paramMaxIdleTimeout = 0x01
	paramStatelessResetToken = 0x02
	paramMaxPacketSize = 0x03
	paramInitialMaxData = 0x04
	paramInitialMaxStreamDataBidiLocal = 0x05
	paramInitialMaxStreamDataBidiRemote = 0x06
	paramInitialMaxStreamDataUni = 0x07
	paramInitialMaxStreamsBidi = 0x08
	paramInitialMaxStreamsUni = 0x09
	paramAckDelayExponent = 0x0a
	paramMaxAckDelay = 0x0b
	paramDisableActiveMigration = 0x0c
	paramPreferredAddress = 0x0d
	paramActiveConnectionIDLimit = 0x0e
	paramInitialSourceCID = 0x0f
	paramRetrySourceCID = 0x10
)

// MarshalParameters encodes p into the TLV sequence carried by the QUIC
// transport parameters TLS extension .
func MarshalParameters(p *Parameters) []byte {
	var out []byte
	appendVarintTLV := func(id uint64, v uint64) {
		out = appendTLVID(out, id)
		var payload []byte
		payload, _ = varint.Append(payload, v)
		out = appendTLVLen(out, payload)
	}
	appendBytesTLV := func(id uint64, b []byte) {
		out = appendTLVID(out, id)
		out = appendTLVLen(out, b)
	}
	appendFlagTLV := func(id uint64) {
		out = appendTLVID(out, id)
		out = appendTLVLen(out, nil)
	}

	if len(p.OriginalDestinationCID) > 0 {
		appendBytesTLV(paramOriginalDestinationCID, p.OriginalDestinationCID)
	}
	if p.MaxIdleTimeout > 0 {
		appendVarintTLV(paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	}
	if len(p.StatelessResetToken) > 0 {
		appendBytesTLV(paramStatelessResetToken, p.StatelessResetToken)
	}
	if p.MaxUDPPayloadSize > 0 {
		appendVarintTLV(paramMaxPacketSize, p.MaxUDPPayloadSize)
	}
	appendVarintTLV(paramInitialMaxData, p.InitialMaxData)
	appendVarintTLV(paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	appendVarintTLV(paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	appendVarintTLV(paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	appendVarintTLV(paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	appendVarintTLV(paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	if p.AckDelayExponent != 3 {
		appendVarintTLV(paramAckDelayExponent, p.AckDelayExponent)
	}
	if p.MaxAckDelay > 0 {
		appendVarintTLV(paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	}
	if p.DisableActiveMigration {
		appendFlagTLV(paramDisableActiveMigration)
	}
	if len(p.PreferredAddress) > 0 {
		appendBytesTLV(paramPreferredAddress, p.PreferredAddress)
	}
	if p.ActiveConnectionIDLimit > 0 {
		appendVarintTLV(paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	}
	if len(p.InitialSourceCID) > 0 {
		appendBytesTLV(paramInitialSourceCID, p.InitialSourceCID)
	}
	if len(p.RetrySourceCID) > 0 {
		appendBytesTLV(paramRetrySourceCID, p.RetrySourceCID)
	}
	return out
}

func appendTLVID(out []byte, id uint64) []byte {
	out, _ = varint.Append(out, id)
	return out
}

func appendTLVLen(out []byte, payload []byte) []byte {
	out, _ = varint.Append(out, uint64(len(payload)))
	return append(out, payload...)
}

// UnmarshalParameters decodes a peer's transport parameters TLV
// sequence, ignoring unrecognized ids ("recognized IDs"; any
// other greased/unknown id is skipped per the extensibility rule the
// draft requires).
func UnmarshalParameters(b []byte) (*Parameters, error) {
	p := &Parameters{AckDelayExponent: 3}
	for len(b) > 0 {
		var id, length uint64
		n := varint.Get(b, &id)
		if n == 0 {
			return nil, newError(TransportParameterError, "truncated parameter id")
		}
		b = b[n:]
		n = varint.Get(b, &length)
		if n == 0 {
			return nil, newError(TransportParameterError, "truncated parameter length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return nil, newError(TransportParameterError, "truncated parameter value")
		}
		val := b[:length]
		b = b[length:]

		switch id {
		case paramOriginalDestinationCID:
			p.OriginalDestinationCID = append([]byte(nil), val...)
		case paramMaxIdleTimeout:
			p.MaxIdleTimeout = time.Duration(mustVarint(val)) * time.Millisecond
		case paramStatelessResetToken:
			p.StatelessResetToken = append([]byte(nil), val...)
		case paramMaxPacketSize:
			p.MaxUDPPayloadSize = mustVarint(val)
		case paramInitialMaxData:
			p.InitialMaxData = mustVarint(val)
		case paramInitialMaxStreamDataBidiLocal:
			p.InitialMaxStreamDataBidiLocal = mustVarint(val)
		case paramInitialMaxStreamDataBidiRemote:
			p.InitialMaxStreamDataBidiRemote = mustVarint(val)
		case paramInitialMaxStreamDataUni:
			p.InitialMaxStreamDataUni = mustVarint(val)
		case paramInitialMaxStreamsBidi:
			p.InitialMaxStreamsBidi = mustVarint(val)
		case paramInitialMaxStreamsUni:
			p.InitialMaxStreamsUni = mustVarint(val)
		case paramAckDelayExponent:
			p.AckDelayExponent = mustVarint(val)
		case paramMaxAckDelay:
			p.MaxAckDelay = time.Duration(mustVarint(val)) * time.Millisecond
		case paramDisableActiveMigration:
			p.DisableActiveMigration = true
		case paramPreferredAddress:
			p.PreferredAddress = append([]byte(nil), val...)
		case paramActiveConnectionIDLimit:
			p.ActiveConnectionIDLimit = mustVarint(val)
		case paramInitialSourceCID:
			p.InitialSourceCID = append([]byte(nil), val...)
		case paramRetrySourceCID:
			p.RetrySourceCID = append([]byte(nil), val...)
		}
	}
	if p.AckDelayExponent > 20 {
		return nil, newError(TransportParameterError, "ack_delay_exponent out of range")
	}
	if p.MaxAckDelay >= (1<<14)*time.Millisecond {
		return nil, newError(TransportParameterError, "max_ack_delay out of range")
	}
	return p, nil
}

func mustVarint(b []byte) uint64 {
	var v uint64
	varint.Get(b, &v)
	return v
}
