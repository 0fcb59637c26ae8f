package varint

import "testing"

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, Max}
	for _, v := range values {
		b, err := Append(nil, v)
		if err != nil {
			t.Fatalf("encode %d: %v", v, err)
		}
		var got uint64
		n := Get(b, &got)
		if n != len(b) || got != v {
			t.Fatalf("roundtrip %d: got %d consumed %d want len %d", v, got, n, len(b))
		}
	}
}

func TestAppendOutOfRange(t *testing.T) {
	if _, err := Append(nil, Max+1); err == nil {
		t.Fatal("expected error for out-of-range value")
	}
}

func TestGetShortBuffer(t *testing.T) {
	var v uint64
	if n := Get([]byte{0x40}, &v); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
	if n := Get(nil, &v); n != 0 {
		t.Fatalf("expected 0 for empty input, got %d", n)
	}
}

func TestExpand(t *testing.T) {
	// Scenario 2 from : largest_acked=0xAAF0, truncated=0x01 (8 bits) -> 0xAB01.
	got := Expand(0xAAF0, 0x01, 1)
	if got != 0xAB01 {
		t.Fatalf("expand: got %#x want %#x", got, 0xAB01)
	}
}

func TestExpandRoundTrip(t *testing.T) {
	largest := int64(1000)
	for _, pn := range []int64{990, 999, 1000, 1001, 1255, 2000} {
		pnLen := TruncateLen(pn, largest)
		trunc := Truncate(pn, pnLen)
		var tv uint64
		for _, b := range trunc {
			tv = tv<<8 | uint64(b)
		}
		got := Expand(largest, tv, pnLen)
		if got != pn {
			t.Fatalf("pn=%d pnLen=%d: expand got %d", pn, pnLen, got)
		}
	}
}
