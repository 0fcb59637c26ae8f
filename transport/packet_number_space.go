package transport

import "time"

// packetNumberSpace is the per-space bookkeeping of "Packet-
// number space": `{ tx.next_pn, rx.largest_pn, rx.largest_acked_pn,
// rx.nb_ack_eliciting, rx.ack_ranges, flags }`.
//
// Invariant (§8.2): tx.next_pn is strictly increasing within
// the space.
type packetNumberSpace struct {
	space Space

	txNextPN int64 // next packet number to assign; starts at 0

	// txLargestAcked is the largest packet number WE sent in this space
	// that the peer has acknowledged. It is what pn truncation length is
	// computed against when we assign the next outgoing packet number
	// .
	txLargestAcked int64 // -1 if none yet

	rxLargestPN int64 // -1 if none received yet; used to expand incoming truncated pns
	largestRecvPacketTime time.Time
	rxAckEliciting uint64
	rxReceived rangeSet // every packet number successfully received, append-only
	ackRequired bool
	firstPacketAcked bool // true once we've processed the first ACK in this space
}

func (p *packetNumberSpace) init(space Space) {
	p.space = space
	p.txNextPN = 0
	p.txLargestAcked = -1
	p.rxLargestPN = -1
}

// reset restores the space to its initial state, used after Retry /
// Version Negotiation restart a handshake attempt (only meaningful for
// SpaceInitial in that case).
func (p *packetNumberSpace) reset() {
	space := p.space
	*p = packetNumberSpace{}
	p.init(space)
}

// nextTxPN allocates and returns the next outgoing packet number for
// this space without yet committing it (commit happens once the packet
// is actually emitted into the send buffer, "Packet-number
// advance happens only after a packet is committed").
func (p *packetNumberSpace) nextTxPN() int64 {
	return p.txNextPN
}

func (p *packetNumberSpace) commitTxPN() {
	p.txNextPN++
}

// pnLength returns the number of bytes (1..4) used to truncate the next
// outgoing packet number given what the peer has acknowledged so far.
func (p *packetNumberSpace) pnLength() int {
	return pnTruncateLen(p.txNextPN, p.txLargestAcked)
}

// onPacketReceived records a successfully decrypted, non-duplicate
// packet number.
func (p *packetNumberSpace) onPacketReceived(pn int64, now time.Time) {
	if pn > p.rxLargestPN {
		p.rxLargestPN = pn
		p.largestRecvPacketTime = now
	}
	p.rxReceived.insert(pn)
	idx := len(p.rxReceived.ranges)
	_ = idx
}

// isPacketReceived reports whether pn has already been processed
// (duplicate detection,).
func (p *packetNumberSpace) isPacketReceived(pn int64) bool {
	return p.rxReceived.contains(pn)
}

// onAckEliciting counts the ack-eliciting packets received in this
// space (markAckSent does not reset the count) and requires an ACK
// after every odd-numbered one.
func (p *packetNumberSpace) onAckEliciting() {
	p.rxAckEliciting++
	if p.rxAckEliciting%2 == 1 {
		p.ackRequired = true
	}
}

// markAckSent clears the ack-required flag once an ACK frame has been
// built into an outgoing packet.
func (p *packetNumberSpace) markAckSent() {
	p.ackRequired = false
}

// onAcked updates txLargestAcked after processing a peer ACK frame.
func (p *packetNumberSpace) onAcked(largest int64) {
	if largest > p.txLargestAcked {
		p.txLargestAcked = largest
	}
}
