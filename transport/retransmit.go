package transport

// lossState tracks sent-but-not-yet-acked packets for one packet-number
// space and implements the ACK processing of : acked packets
// free their descriptors; packets below the newly acked largest pn that
// were never acked are declared lost and trigger retransmission.
type lossState struct {
	space Space
	sent map[int64]*sentDescriptor
}

func newLossState(space Space) *lossState {
	return &lossState{space: space, sent: make(map[int64]*sentDescriptor)}
}

func (ls *lossState) onSent(desc *sentDescriptor) {
	if desc == nil {
		return
	}
	ls.sent[desc.pn] = desc
}

// ackCallbacks lets the caller react to what processAck discovers without
// this package needing to know about streams or the handshake driver.
type ackCallbacks struct {
	onCryptoAcked func(offset uint64, length int)
	onCryptoLost func(offset uint64, length int)
	onHandshakeDoneAcked func()
	onStreamAcked func(streamID uint64)
}

// processAck implements : "for each range ... walk the outgoing
// CRYPTO frame tree and free every entry whose pn lies in [smallest,
// largest] ... for frames in the gap between the current range and the
// next (declared lost), merge their byte ranges ... set the retransmit
// flag."
//
// ACK validity (first_ack_range <= largest_ack <= tx.next_pn) is the
// caller's responsibility (checked against the space before calling, spec
// §4.5).
func (ls *lossState) processAck(acked *rangeSet, cb ackCallbacks) {
	if acked == nil {
		return
	}
	largest, ok := acked.largest()
	if !ok {
		return
	}
	for pn, desc := range ls.sent {
		if !acked.contains(pn) {
			continue
		}
		if desc.hasCrypto && cb.onCryptoAcked != nil {
			cb.onCryptoAcked(desc.cryptoOffset, desc.cryptoLength)
		}
		if desc.handshakeDone && cb.onHandshakeDoneAcked != nil {
			cb.onHandshakeDoneAcked()
		}
		if cb.onStreamAcked != nil {
			for _, id := range desc.streamIDs {
				cb.onStreamAcked(id)
			}
		}
		delete(ls.sent, pn)
	}
	for pn, desc := range ls.sent {
		if pn >= largest {
			continue
		}
		if desc.hasCrypto && cb.onCryptoLost != nil {
			cb.onCryptoLost(desc.cryptoOffset, desc.cryptoLength)
		}
		delete(ls.sent, pn)
	}
}
