package quictls

import "testing"

import "github.com/quicbridge/engine/transport"

func TestLevelConversionRoundTrip(t *testing.T) {
	for _, l := range []transport.Level{
		transport.LevelInitial,
		transport.LevelZeroRTT,
		transport.LevelHandshake,
		transport.LevelApplication,
	} {
		got := fromQUICLevel(toQUICLevel(l))
		if got != l {
			t.Fatalf("level round trip: got %v, want %v", got, l)
		}
	}
}

func TestAddSecretMergesReadAndWrite(t *testing.T) {
	p := &Provider{}
	p.addSecret(toQUICLevel(transport.LevelHandshake), []byte("read"), nil, uint16(transport.TLS_AES_128_GCM_SHA256))
	if got := p.NextSecrets(); len(got) != 0 {
		t.Fatalf("expected no ready secrets with only a read half, got %v", got)
	}
	p.addSecret(toQUICLevel(transport.LevelHandshake), nil, []byte("write"), uint16(transport.TLS_AES_128_GCM_SHA256))
	got := p.NextSecrets()
	if len(got) != 1 {
		t.Fatalf("expected one ready secret, got %d", len(got))
	}
	if string(got[0].Read) != "read" || string(got[0].Write) != "write" {
		t.Fatalf("unexpected secret contents: %+v", got[0])
	}
	if len(p.NextSecrets()) != 0 {
		t.Fatalf("secret should be drained after first NextSecrets call")
	}
}

func TestHandshakeNotCompleteInitially(t *testing.T) {
	p := &Provider{}
	if p.HandshakeComplete() {
		t.Fatalf("fresh provider should not report handshake complete")
	}
}
