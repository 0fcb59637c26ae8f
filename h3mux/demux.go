package h3mux

// holeBuffer is a single linear byte stream with explicit hole/skip
// tracking, exposing append, readInOrder, punchHole and
// compactIfNeeded. It backs HEADERS/CONTINUATION folding: intervening
// frame headers and padding are never copied into it in the first
// place, so "punching a hole" only needs to record how many bytes were
// skipped for logging/diagnostics.
type holeBuffer struct {
	data []byte
	off int
	holes int
}

func (h *holeBuffer) append(b []byte) {
	h.data = append(h.data, b...)
}

func (h *holeBuffer) readInOrder() []byte {
	return h.data[h.off:]
}

func (h *holeBuffer) punchHole(n int) {
	h.holes += n
}

func (h *holeBuffer) compactIfNeeded() {
	if h.off == 0 {
		return
	}
	if h.off*2 < len(h.data) {
		return
	}
	h.data = append(h.data[:0], h.data[h.off:]...)
	h.off = 0
}

func (h *holeBuffer) reset() {
	h.data = h.data[:0]
	h.off = 0
	h.holes = 0
}

func (h *holeBuffer) len() int { return len(h.data) - h.off }
