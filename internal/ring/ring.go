// Package ring implements the fixed, power-of-two-sized output buffer
// ring described in : a per-connection sequence of equally
// sized byte buffers with independent writer/reader cursors. The
// builder (transport package) writes datagrams into the writer slot;
// the connection tasklet (quicsrv package) drains the reader slot via
// the transport and resets it after a successful send.
package ring

// Buffer is a single fixed-capacity datagram slot.
type Buffer struct {
	Data []byte // len(Data) is the amount ready to send; cap(Data) is bufSize
}

func (b *Buffer) reset(bufSize int) {
	if cap(b.Data) < bufSize {
		b.Data = make([]byte, 0, bufSize)
	}
	b.Data = b.Data[:0]
}

// Ring is a power-of-two ring of Buffers.
type Ring struct {
	slots []Buffer
	mask uint32
	bufSize int
	writer uint32
	reader uint32
	// count tracks how many slots between reader and writer hold data
	// ready to send, bounded by len(slots).
	count uint32
}

// New creates a ring with the given number of slots (rounded up to the
// next power of two, minimum 1) each of bufSize bytes.
func New(slots, bufSize int) *Ring {
	n := nextPow2(slots)
	r := &Ring{
		slots: make([]Buffer, n),
		mask: uint32(n - 1),
		bufSize: bufSize,
	}
	for i := range r.slots {
		r.slots[i].reset(bufSize)
	}
	return r
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the number of slots in the ring.
func (r *Ring) Cap() int { return len(r.slots) }

// BufSize returns the capacity of each slot.
func (r *Ring) BufSize() int { return r.bufSize }

// Writer returns the current write slot and whether it is available.
// The ring is full (returns ok=false) when every slot between the
// reader and writer already holds unsent data.
func (r *Ring) Writer() (buf *Buffer, ok bool) {
	if r.count >= uint32(len(r.slots)) {
		return nil, false
	}
	return &r.slots[r.writer&r.mask], true
}

// Commit marks the current writer slot as holding n bytes ready to send
// and advances the writer cursor to the next slot.
func (r *Ring) Commit(n int) {
	buf := &r.slots[r.writer&r.mask]
	buf.Data = buf.Data[:n]
	r.writer++
	r.count++
}

// Reader returns the oldest unsent slot, or ok=false if the ring is
// empty.
func (r *Ring) Reader() (buf *Buffer, ok bool) {
	if r.count == 0 {
		return nil, false
	}
	return &r.slots[r.reader&r.mask], true
}

// Advance releases the current reader slot after a successful send,
// resetting it for reuse by the writer.
func (r *Ring) Advance() {
	buf := &r.slots[r.reader&r.mask]
	buf.reset(r.bufSize)
	r.reader++
	r.count--
}

// Empty reports whether there is no data awaiting send.
func (r *Ring) Empty() bool { return r.count == 0 }

// Full reports whether the ring has no free slot for the writer.
func (r *Ring) Full() bool { return r.count >= uint32(len(r.slots)) }
