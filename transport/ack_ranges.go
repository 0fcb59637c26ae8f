package transport

// ackRange is an inclusive packet-number range [Smallest, Largest].
type ackRange struct {
	Smallest int64
	Largest int64
}

// rangeSet is an ordered, merged set of disjoint inclusive packet-number
// ranges (component 4, invariant §8.7: disjoint, sorted, merged
// so that no two ranges [a,b],[c,d] satisfy b+1 >= c). Insertion is
// O(n) in the number of ranges, which in practice stays small because
// ranges are eagerly merged.
type rangeSet struct {
	ranges []ackRange // sorted ascending by Smallest, pairwise non-adjacent
}

// insert adds pn to the set, merging with adjacent/overlapping ranges.
func (s *rangeSet) insert(pn int64) {
	out := make([]ackRange, 0, len(s.ranges)+1)
	inserted := false
	cur := ackRange{Smallest: pn, Largest: pn}
	for _, r := range s.ranges {
		switch {
		case inserted:
			out = append(out, r)
		case r.Largest+1 < cur.Smallest:
			// r is entirely below and not adjacent to cur.
			out = append(out, r)
		case cur.Largest+1 < r.Smallest:
			// cur is entirely below and not adjacent to r: insert cur now.
			out = append(out, cur)
			out = append(out, r)
			inserted = true
		default:
			// Overlapping or adjacent: merge into cur and keep scanning,
			// since cur may now touch the next range too.
			if r.Smallest < cur.Smallest {
				cur.Smallest = r.Smallest
			}
			if r.Largest > cur.Largest {
				cur.Largest = r.Largest
			}
		}
	}
	if !inserted {
		out = append(out, cur)
	}
	s.ranges = out
}

// contains reports whether pn was previously inserted.
func (s *rangeSet) contains(pn int64) bool {
	for _, r := range s.ranges {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
		if pn < r.Smallest {
			return false
		}
	}
	return false
}

// largest returns the greatest packet number in the set and true, or
// (0, false) if the set is empty.
func (s *rangeSet) largest() (int64, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[len(s.ranges)-1].Largest, true
}

// removeUntil drops all ranges entirely at or below largestAck, used
// once the peer has confirmed receipt of our ACK for them .
func (s *rangeSet) removeUntil(largestAck int64) {
	i := 0
	for ; i < len(s.ranges); i++ {
		if s.ranges[i].Largest > largestAck {
			break
		}
	}
	if i == len(s.ranges) {
		s.ranges = nil
		return
	}
	if s.ranges[i].Smallest <= largestAck {
		s.ranges[i].Smallest = largestAck + 1
	}
	s.ranges = s.ranges[i:]
}

// reset clears the set.
func (s *rangeSet) reset() {
	s.ranges = nil
}

// empty reports whether the set holds no packet numbers.
func (s *rangeSet) empty() bool {
	return len(s.ranges) == 0
}

type ackGapRange struct {
	gap uint64
	rangeLen uint64
}

// encode produces the largest-first, gap/range-delta encoded list
// consumed by ackFrame ("ACK generation").
func (s *rangeSet) encode() (largest int64, firstRange uint64, rest []ackGapRange) {
	if len(s.ranges) == 0 {
		return 0, 0, nil
	}
	last := s.ranges[len(s.ranges)-1]
	largest = last.Largest
	firstRange = uint64(last.Largest - last.Smallest)
	prevSmallest := last.Smallest
	for i := len(s.ranges) - 2; i >= 0; i-- {
		r := s.ranges[i]
		gap := uint64(prevSmallest-r.Largest) - 2
		rng := uint64(r.Largest - r.Smallest)
		rest = append(rest, ackGapRange{gap: gap, rangeLen: rng})
		prevSmallest = r.Smallest
	}
	return largest, firstRange, rest
}

// decodeRangeSet reconstructs a rangeSet from an ackFrame's wire
// representation (largest, firstRange, gap/range pairs read largest
// first). Used by the retransmission manager to walk acked/lost pn's.
func decodeRangeSet(largest int64, firstRange uint64, rest []ackGapRange) *rangeSet {
	s := &rangeSet{}
	smallest := largest - int64(firstRange)
	if smallest < 0 {
		return nil
	}
	s.ranges = append(s.ranges, ackRange{Smallest: smallest, Largest: largest})
	next := smallest
	for _, gr := range rest {
		largest = next - int64(gr.gap) - 2
		smallest = largest - int64(gr.rangeLen)
		if smallest < 0 || largest < 0 || smallest > largest {
			return nil
		}
		s.ranges = append([]ackRange{{Smallest: smallest, Largest: largest}}, s.ranges...)
		next = smallest
	}
	return s
}
