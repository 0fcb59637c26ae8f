package h3mux

import "testing"

func TestTransitionRecvHeadersOpensStream(t *testing.T) {
	s := newStream(1, 65535)
	if err := s.transitionRecvHeaders(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.state != StateOpen {
		t.Fatalf("got state %v, want open", s.state)
	}
}

func TestTransitionRecvHeadersEndStreamHalfCloses(t *testing.T) {
	s := newStream(1, 65535)
	if err := s.transitionRecvHeaders(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.state != StateHalfClosedRemote {
		t.Fatalf("got state %v, want half_closed_remote", s.state)
	}
}

func TestTrailersWithoutEndStreamRejected(t *testing.T) {
	s := newStream(1, 65535)
	if err := s.transitionRecvHeaders(false); err != nil {
		t.Fatalf("headers: %v", err)
	}
	s.rxbuf = append(s.rxbuf, 'x')
	if err := s.transitionRecvHeaders(false); err == nil {
		t.Fatal("expected protocol error for trailers without END_STREAM")
	}
}

func TestDataOnIdleStreamIsConnectionError(t *testing.T) {
	s := newStream(1, 65535)
	err := s.transitionRecvData(10, false)
	if err == nil {
		t.Fatal("expected error")
	}
	herr, ok := err.(*Error)
	if !ok || herr.Scope != ScopeConnection {
		t.Fatalf("got %v, want connection-scoped protocol error", err)
	}
}

func TestDataOnClosedStreamIsStreamError(t *testing.T) {
	s := newStream(1, 65535)
	s.state = StateClosed
	err := s.transitionRecvData(10, false)
	herr, ok := err.(*Error)
	if !ok || herr.Scope != ScopeStream {
		t.Fatalf("got %v, want stream-scoped error", err)
	}
}

func TestEffectiveSendWindow(t *testing.T) {
	s := newStream(1, 65535)
	s.sws = -1000
	if got := s.effectiveSendWindow(65535); got != 64535 {
		t.Fatalf("got %d, want 64535", got)
	}
}

func TestShutrErrorCode(t *testing.T) {
	s := newStream(1, 65535)
	if s.shutrErrorCode() != ErrRefusedStream {
		t.Fatal("want refused_stream before headers sent")
	}
	s.flags |= flagHeadersSent
	if s.shutrErrorCode() != ErrCancel {
		t.Fatal("want cancel after headers sent")
	}
}

func TestOnRSTRecvClosesStream(t *testing.T) {
	s := newStream(1, 65535)
	s.onRSTRecv(ErrCancel)
	if !s.isClosed() {
		t.Fatal("expected stream closed after RST")
	}
	if s.resetCode != ErrCancel {
		t.Fatalf("got reset code %v, want cancel", s.resetCode)
	}
}
