package transport

// flowControl tracks one direction's byte-level limit, shared by the
// connection-wide MAX_DATA accounting and each stream's MAX_STREAM_DATA
// accounting ("QUIC connection" / invariant 4 in §8).
type flowControl struct {
	used uint64 // bytes consumed so far
	limit uint64 // current advertised/received limit
}

func (f *flowControl) canSend(n int) bool {
	return f.used+uint64(n) <= f.limit
}

func (f *flowControl) consume(n int) error {
	if !f.canSend(n) {
		return errFlowControl
	}
	f.used += uint64(n)
	return nil
}

func (f *flowControl) setLimit(limit uint64) {
	if limit > f.limit {
		f.limit = limit
	}
}

func (f *flowControl) available() uint64 {
	if f.limit <= f.used {
		return 0
	}
	return f.limit - f.used
}

func (f *flowControl) blocked() bool {
	return f.available() == 0
}
