package h3mux

import (
	"bytes"
	"testing"
)

func frameBytes(typ frameType, flags uint8, streamID uint32, payload []byte) []byte {
	buf := make([]byte, FrameHeaderLen+len(payload))
	encodeFrameHeader(buf, frameHeader{length: uint32(len(payload)), typ: typ, flags: flags, streamID: streamID})
	copy(buf[FrameHeaderLen:], payload)
	return buf
}

func settingsFrame(t *testing.T, ack bool) []byte {
	t.Helper()
	if ack {
		return frameBytes(frameSettings, flagAck, 0, nil)
	}
	settings := []setting{{settingInitialWindowSize, 65535}}
	buf := make([]byte, 6*len(settings))
	n := encodeSettings(buf, settings)
	return frameBytes(frameSettings, 0, 0, buf[:n])
}

func TestServerAcceptsPrefaceAndRequest(t *testing.T) {
	srv := New(DefaultConfig(true))

	var in []byte
	in = append(in, connPreface...)
	in = append(in, settingsFrame(t, false)...)

	clientCodec := newHeaderCodec(defaultHeaderTableSize)
	block, err := clientCodec.encodeRequest("GET", "https", "example.com", "/", nil)
	if err != nil {
		t.Fatalf("encodeRequest: %v", err)
	}
	in = append(in, frameBytes(frameHeaders, flagEndHeaders|flagEndStream, 1, block)...)

	if err := srv.Write(in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if srv.Err() != nil {
		t.Fatalf("conn entered error state: %v", srv.Err())
	}
	s := srv.Stream(1)
	if s == nil {
		t.Fatal("expected stream 1 to exist")
	}
	if s.method != "GET" || s.path != "/" {
		t.Fatalf("got method=%q path=%q", s.method, s.path)
	}
	if s.state != StateHalfClosedRemote {
		t.Fatalf("got state %v, want half_closed_remote", s.state)
	}
}

func TestServerRejectsBadPreface(t *testing.T) {
	srv := New(DefaultConfig(true))
	if err := srv.Write([]byte("not a preface at all........")); err == nil {
		t.Fatal("expected error on bad preface")
	}
	if srv.Err() == nil {
		t.Fatal("expected connection to latch error state")
	}
}

func TestClientSendRequestThenDrain(t *testing.T) {
	c := New(DefaultConfig(false))
	s, err := c.SendRequest("GET", "https", "example.com", "/", nil, true)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if s.id != 1 {
		t.Fatalf("got stream id %d, want 1 (client-odd)", s.id)
	}
	out := c.Drain()
	if len(out) == 0 {
		t.Fatal("expected queued HEADERS bytes")
	}
	hdr, err := decodeFrameHeader(out)
	if err != nil {
		t.Fatalf("decodeFrameHeader: %v", err)
	}
	if hdr.typ != frameHeaders || hdr.streamID != 1 {
		t.Fatalf("got %+v, want HEADERS on stream 1", hdr)
	}
}

func TestSendDataRespectsStreamWindow(t *testing.T) {
	c := New(DefaultConfig(false))
	s, err := c.SendRequest("POST", "https", "example.com", "/", nil, false)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	c.Drain()
	s.sws = 0 // pretend the peer granted us no window beyond default miw... exhaust it below
	s.sws = -int64(c.miw) + 10
	n, err := c.SendData(s.id, bytes.Repeat([]byte{'a'}, 100), false)
	if err != nil {
		t.Fatalf("SendData: %v", err)
	}
	if n != 10 {
		t.Fatalf("got %d bytes sent, want 10 (window-limited)", n)
	}
	if s.list != listBlocked {
		t.Fatalf("got list %v, want blocked after exhausting window", s.list)
	}
}

func TestGracefulThenFinalGoAway(t *testing.T) {
	c := New(DefaultConfig(true))
	if err := c.GracefulGoAway(); err != nil {
		t.Fatalf("GracefulGoAway: %v", err)
	}
	if c.flags&flagGoAwaySent == 0 {
		t.Fatal("expected GOAWAY sent flag")
	}
	if err := c.FinalizeGoAway(ErrNoError); err != nil {
		t.Fatalf("FinalizeGoAway: %v", err)
	}
	if c.flags&flagGoAwayFinal == 0 {
		t.Fatal("expected final GOAWAY flag")
	}
	if c.lastSID != int64(c.maxID) {
		t.Fatalf("got lastSID %d, want maxID %d", c.lastSID, c.maxID)
	}
}

func TestRSTStreamPropagatesToStreamOnly(t *testing.T) {
	srv := New(DefaultConfig(true))
	var in []byte
	in = append(in, connPreface...)
	in = append(in, settingsFrame(t, false)...)
	clientCodec := newHeaderCodec(defaultHeaderTableSize)
	block, _ := clientCodec.encodeRequest("GET", "https", "example.com", "/", nil)
	in = append(in, frameBytes(frameHeaders, flagEndHeaders, 1, block)...)
	if err := srv.Write(in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var rst []byte
	rst = append(rst, frameBytes(frameRSTStream, 0, 1, func() []byte {
				b := make([]byte, 4)
				encodeRSTStream(b, ErrCancel)
				return b
			}())...)
	if err := srv.Write(rst); err != nil {
		t.Fatalf("Write RST: %v", err)
	}
	if srv.Err() != nil {
		t.Fatalf("connection should survive a stream-scoped RST, got %v", srv.Err())
	}
	s := srv.Stream(1)
	if s == nil || !s.isClosed() {
		t.Fatal("expected stream 1 to be closed")
	}
}
