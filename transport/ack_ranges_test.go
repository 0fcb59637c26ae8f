package transport

import "testing"

func TestRangeSetMergeOnInsert(t *testing.T) {
	var s rangeSet
	for _, pn := range []int64{5, 6, 8, 7, 10, 1} {
		s.insert(pn)
	}
	want := []ackRange{{1, 1}, {5, 8}, {10, 10}}
	if !equalRanges(s.ranges, want) {
		t.Fatalf("got %v want %v", s.ranges, want)
	}
}

func TestRangeSetContains(t *testing.T) {
	var s rangeSet
	for _, pn := range []int64{1, 2, 3, 10} {
		s.insert(pn)
	}
	for _, pn := range []int64{1, 2, 3, 10} {
		if !s.contains(pn) {
			t.Fatalf("expected %d to be contained", pn)
		}
	}
	for _, pn := range []int64{0, 4, 9, 11} {
		if s.contains(pn) {
			t.Fatalf("did not expect %d to be contained", pn)
		}
	}
}

func TestRangeSetRemoveUntil(t *testing.T) {
	var s rangeSet
	for _, pn := range []int64{0, 1, 2, 5, 6, 8} {
		s.insert(pn)
	}
	s.removeUntil(1)
	want := []ackRange{{2, 2}, {5, 6}, {8, 8}}
	if !equalRanges(s.ranges, want) {
		t.Fatalf("got %v want %v", s.ranges, want)
	}
}

func TestRangeSetEncodeDecodeRoundTrip(t *testing.T) {
	var s rangeSet
	for _, pn := range []int64{0, 1, 5, 6, 8} {
		s.insert(pn)
	}
	largest, first, rest := s.encode()
	got := decodeRangeSet(largest, first, rest)
	if !equalRanges(got.ranges, s.ranges) {
		t.Fatalf("got %v want %v", got.ranges, s.ranges)
	}
}

func TestAckWithGapTriggersRetransmitRanges(t *testing.T) {
	// Scenario 3: ACK acks 5-6 and 8, implying 7 is lost.
	var s rangeSet
	s.insert(8)
	s.insert(5)
	s.insert(6)
	largest, first, rest := s.encode()
	decoded := decodeRangeSet(largest, first, rest)
	if decoded.contains(7) {
		t.Fatal("7 should not be acked")
	}
	if !decoded.contains(5) || !decoded.contains(6) || !decoded.contains(8) {
		t.Fatal("expected 5,6,8 acked")
	}
}

func equalRanges(a, b []ackRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
