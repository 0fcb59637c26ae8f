package transport

import "github.com/quicbridge/engine/internal/varint"

// getVarint decodes a variable-length integer from the start of b into
// *v, returning the number of bytes consumed or 0 on error. Called by
// the frame and packet-header decoders.
func getVarint(b []byte, v *uint64) int {
	return varint.Get(b, v)
}

// putVarint appends v to b using the shortest valid encoding.
func putVarint(b []byte, v uint64) []byte {
	out, err := varint.Append(b, v)
	if err != nil {
		panic(err) // callers only ever encode values already bounds-checked
	}
	return out
}

func varintLen(v uint64) int {
	return varint.Len(v)
}

func pnTruncateLen(pn, largestAcked int64) int {
	return varint.TruncateLen(pn, largestAcked)
}

func pnTruncate(pn int64, pnLen int) []byte {
	return varint.Truncate(pn, pnLen)
}

func pnExpand(largestAcked int64, truncated uint64, pnLen int) int64 {
	return varint.Expand(largestAcked, truncated, pnLen)
}
