package h3mux

import "testing"

func TestFrameHeaderRoundTrip(t *testing.T) {
	h := frameHeader{length: 1234, typ: frameHeaders, flags: flagEndHeaders, streamID: 0x7fffffff}
	b := make([]byte, FrameHeaderLen)
	encodeFrameHeader(b, h)
	got, err := decodeFrameHeader(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestDecodeFrameHeaderShort(t *testing.T) {
	if _, err := decodeFrameHeader(make([]byte, 4)); err == nil {
		t.Fatal("expected error on short header")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	in := []setting{
		{settingHeaderTableSize, 4096},
		{settingMaxFrameSize, 16384},
		{settingInitialWindowSize, 65535},
	}
	buf := make([]byte, 6*len(in))
	n := encodeSettings(buf, in)
	got, err := decodeSettings(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d settings, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("setting %d: got %+v, want %+v", i, got[i], in[i])
		}
	}
}

func TestSettingsAckMustBeEmpty(t *testing.T) {
	c := New(DefaultConfig(true))
	c.state = stateFrameHeader // skip preface/settings1 bootstrap for this unit test
	c.dff = flagAck
	c.dft = frameSettings
	if err := c.onSettings([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected frame_size_error on non-empty SETTINGS ack")
	}
}

func TestWindowUpdateZeroIncrementRejected(t *testing.T) {
	buf := make([]byte, 4)
	encodeWindowUpdate(buf, 0)
	inc, err := decodeWindowUpdate(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inc != 0 {
		t.Fatalf("got increment %d, want 0", inc)
	}
	c := New(DefaultConfig(true))
	c.dsi = 0
	if err := c.onWindowUpdate(buf); err == nil {
		t.Fatal("expected protocol_error on zero connection-window increment")
	}
}

func TestPriorityRejectsShortPayload(t *testing.T) {
	if _, _, _, err := decodePriority([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected frame_size_error")
	}
}
