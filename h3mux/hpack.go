package h3mux

import (
	"bytes"

	"golang.org/x/net/http2/hpack"
)

// hopByHop lists the headers says to drop when serializing a
// response/request ("dropping hop-by-hop headers"). `te` is special
// cased below: it survives only when its value contains "trailers".
var hopByHop = map[string]bool{
	"connection": true,
	"proxy-connection": true,
	"keep-alive": true,
	"upgrade": true,
	"transfer-encoding": true,
}

// headerCodec owns one direction's HPACK dynamic table state (spec
// §1 "OUT OF SCOPE ... HPACK encoder/decoder primitives" names the
// primitives as an external collaborator; we consume the real ecosystem
// package rather than reimplementing the algorithm, per).
type headerCodec struct {
	enc *hpack.Encoder
	encBuf bytes.Buffer
	dec *hpack.Decoder

	pending []HeaderField
}

func newHeaderCodec(tableSize uint32) *headerCodec {
	c := &headerCodec{}
	c.enc = hpack.NewEncoder(&c.encBuf)
	c.enc.SetMaxDynamicTableSize(tableSize)
	c.dec = hpack.NewDecoder(tableSize, c.onDecodedField)
	return c
}

func (c *headerCodec) onDecodedField(f hpack.HeaderField) {
	c.pending = append(c.pending, HeaderField{Name: f.Name, Value: f.Value})
}

// setPeerTableSize applies a table-size update signaled by the peer's
// SETTINGS_HEADER_TABLE_SIZE ("tune.h3.header-table-size").
func (c *headerCodec) setPeerTableSize(size uint32) {
	c.dec.SetMaxDynamicTableSize(size)
}

// decode feeds a reassembled header-block fragment (HEADERS payload with
// intervening CONTINUATION payloads already folded,) to the
// decoder and returns the full field list once complete.
func (c *headerCodec) decode(block []byte) ([]HeaderField, error) {
	c.pending = c.pending[:0]
	if _, err := c.dec.Write(block); err != nil {
		return nil, newConnError(ErrCompressionError, err.Error())
	}
	if err := c.dec.Close(); err != nil {
		return nil, newConnError(ErrCompressionError, err.Error())
	}
	out := make([]HeaderField, len(c.pending))
	copy(out, c.pending)
	return out, nil
}

// encodeRequest serializes pseudo-headers first, per "Response/
// request emission: serialize pseudo-headers first (status or
// :method/:scheme/:authority/:path), then non-forbidden headers".
func (c *headerCodec) encodeRequest(method, scheme, authority, path string, extra []HeaderField) ([]byte, error) {
	c.encBuf.Reset()
	pseudo := []hpack.HeaderField{
		{Name: ":method", Value: method},
		{Name: ":scheme", Value: scheme},
		{Name: ":authority", Value: authority},
		{Name: ":path", Value: path},
	}
	for _, f := range pseudo {
		if err := c.enc.WriteField(f); err != nil {
			return nil, newConnError(ErrCompressionError, err.Error())
		}
	}
	if err := c.writeNonForbidden(extra); err != nil {
		return nil, err
	}
	return append([]byte(nil), c.encBuf.Bytes()...), nil
}

func (c *headerCodec) encodeResponse(status int, extra []HeaderField) ([]byte, error) {
	c.encBuf.Reset()
	if err := c.enc.WriteField(hpack.HeaderField{Name: ":status", Value: statusString(status)}); err != nil {
		return nil, newConnError(ErrCompressionError, err.Error())
	}
	if err := c.writeNonForbidden(extra); err != nil {
		return nil, err
	}
	return append([]byte(nil), c.encBuf.Bytes()...), nil
}

func (c *headerCodec) writeNonForbidden(fields []HeaderField) error {
	for _, f := range fields {
		if isHopByHop(f.Name, f.Value) {
			continue
		}
		if err := c.enc.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value}); err != nil {
			return newConnError(ErrCompressionError, err.Error())
		}
	}
	return nil
}

// isHopByHop reports whether a header must be dropped before emission
// : hop-by-hop headers always; `te` only when its value does
// not contain "trailers".
func isHopByHop(name, value string) bool {
	if hopByHop[name] {
		return true
	}
	if name == "te" {
		return !bytes.Contains([]byte(value), []byte("trailers"))
	}
	return false
}

func statusString(status int) string {
	const digits = "0123456789"
	if status <= 0 {
		return "200"
	}
	b := [3]byte{}
	for i := 2; i >= 0; i-- {
		b[i] = digits[status%10]
		status /= 10
	}
	return string(b[:])
}
