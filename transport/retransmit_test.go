package transport

import "testing"

// TestLossStateProcessAckFreesAckedAndLosesGapped drives processAck with a
// gapped ACK range directly (scenario 3 of : packet numbers 5 and
// 6 are sent, 7 is sent but lost, 8 is sent and acked; the ACK reports
// ranges [5,6] and [8,8], so 7 must be declared lost).
func TestLossStateProcessAckFreesAckedAndLosesGapped(t *testing.T) {
	ls := newLossState(SpaceApplication)
	for pn := int64(5); pn <= 8; pn++ {
		ls.onSent(&sentDescriptor{pn: pn, hasCrypto: true, cryptoOffset: uint64(pn) * 100, cryptoLength: 100})
	}

	acked := &rangeSet{}
	acked.insert(5)
	acked.insert(6)
	acked.insert(8)

	var ackedOffsets, lostOffsets []uint64
	ls.processAck(acked, ackCallbacks{
		onCryptoAcked: func(offset uint64, length int) { ackedOffsets = append(ackedOffsets, offset) },
		onCryptoLost: func(offset uint64, length int) { lostOffsets = append(lostOffsets, offset) },
	})

	if len(ls.sent) != 0 {
		t.Fatalf("expected all descriptors freed, %d remain", len(ls.sent))
	}
	if len(ackedOffsets) != 3 {
		t.Fatalf("expected 3 acked callbacks (pn 5,6,8), got %d: %v", len(ackedOffsets), ackedOffsets)
	}
	if len(lostOffsets) != 1 || lostOffsets[0] != 700 {
		t.Fatalf("expected pn 7 (offset 700) declared lost, got %v", lostOffsets)
	}
}

// TestLossStateProcessAckRollsBackCryptoSendBuffer exercises the actual
// retransmission path: a lost CRYPTO range must roll cryptoSendBuffer's
// sentLen back so the builder's next pending() call re-offers those bytes,
// rather than relying on a separate retransmit queue/flag (DESIGN.md: loss
// is handled by buffer rollback, not a dedicated resend path).
func TestLossStateProcessAckRollsBackCryptoSendBuffer(t *testing.T) {
	var buf cryptoSendBuffer
	buf.write([]byte("clienthelloclienthello")) // 22 bytes

	// First builder pass offers and marks the whole buffer sent.
	offset, pending := buf.pending()
	if offset != 0 || len(pending) != 22 {
		t.Fatalf("unexpected initial pending: offset=%d len=%d", offset, len(pending))
	}
	buf.markSent(len(pending))
	if _, rest := buf.pending(); len(rest) != 0 {
		t.Fatalf("expected nothing pending after markSent, got %d bytes", len(rest))
	}

	ls := newLossState(SpaceInitial)
	ls.onSent(&sentDescriptor{pn: 0, hasCrypto: true, cryptoOffset: 0, cryptoLength: 22})

	acked := &rangeSet{}
	acked.insert(1) // packet 0 never appears in the ACK: it is implicitly lost once pn 1 is the largest acked.

	ls.processAck(acked, ackCallbacks{
		onCryptoLost: func(offset uint64, length int) { buf.onLost(offset) },
	})

	offset, pending = buf.pending()
	if offset != 0 || len(pending) != 22 {
		t.Fatalf("expected the lost 22 bytes to be re-offered from offset 0, got offset=%d len=%d", offset, len(pending))
	}
}

// TestLossStateProcessAckIgnoresPacketsAtOrAboveLargest makes sure a sent
// descriptor that hasn't been acked yet but sits at or above the newly
// reported largest acknowledged packet number is left alone rather than
// being declared lost prematurely.
func TestLossStateProcessAckIgnoresPacketsAtOrAboveLargest(t *testing.T) {
	ls := newLossState(SpaceHandshake)
	ls.onSent(&sentDescriptor{pn: 3})
	ls.onSent(&sentDescriptor{pn: 4})

	acked := &rangeSet{}
	acked.insert(3)

	ls.processAck(acked, ackCallbacks{})

	if _, stillSent := ls.sent[4]; !stillSent {
		t.Fatal("packet 4 (>= largest acked 3) should not have been touched")
	}
	if _, stillSent := ls.sent[3]; stillSent {
		t.Fatal("acked packet 3 should have been freed")
	}
}

func TestLossStateProcessAckNilRangeSetIsNoop(t *testing.T) {
	ls := newLossState(SpaceApplication)
	ls.onSent(&sentDescriptor{pn: 1})
	ls.processAck(nil, ackCallbacks{})
	if len(ls.sent) != 1 {
		t.Fatal("nil rangeSet must not mutate sent descriptors")
	}
}
