package transport

import "testing"

// TestPnExpandTable exercises the packet-number expansion wrapper with
// scenario 2 from : largest_acked=0xAAF0, a 1-byte truncated
// packet number of 0x01, expanding to 0xAB01.
func TestPnExpandTable(t *testing.T) {
	cases := []struct {
		name string
		largestAcked int64
		truncated uint64
		pnLen int
		want int64
	}{
		{"single-byte-wrap", 0xAAF0, 0x01, 1, 0xAB01},
		{"no-wrap-same-window", 1000, 1001 & 0xff, 1, 1001},
		{"first-packet-ever", -1, 0, 1, 0},
		{"two-byte-window", 0x1234, 0x5678, 2, 0x5678},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := pnExpand(c.largestAcked, c.truncated, c.pnLen)
			if got != c.want {
				t.Fatalf("pnExpand(%#x, %#x, %d) = %#x, want %#x", c.largestAcked, c.truncated, c.pnLen, got, c.want)
			}
		})
	}
}

// TestPnTruncateExpandRoundTrip confirms pnTruncate/pnExpand invert each
// other across a run of packet numbers relative to a fixed largest acked,
// mirroring the round trip internal/varint already verifies for
// Truncate/Expand directly, but through transport's own wrappers.
func TestPnTruncateExpandRoundTrip(t *testing.T) {
	largest := int64(4096)
	for _, pn := range []int64{4000, 4095, 4096, 4097, 4350, 9000} {
		pnLen := pnTruncateLen(pn, largest)
		wire := pnTruncate(pn, pnLen)
		var truncated uint64
		for _, b := range wire {
			truncated = truncated<<8 | uint64(b)
		}
		got := pnExpand(largest, truncated, pnLen)
		if got != pn {
			t.Fatalf("pn=%d pnLen=%d: round trip got %d", pn, pnLen, got)
		}
	}
}
