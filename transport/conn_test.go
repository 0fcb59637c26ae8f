package transport_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/quicbridge/engine/quictls"
	"github.com/quicbridge/engine/transport"
)

// selfSignedCert builds a minimal ECDSA certificate so quictls' real
// crypto/tls-backed Provider has something to present as the server
// identity ("something concrete must drive real TLS 1.3" per
// quictls/provider.go).
func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{CommonName: "quicbridge-test"},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter: time.Now().Add(time.Hour),
		KeyUsage: x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames: []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// loopback shuttles datagrams between two Conns until both sides report
// IsEstablished, or the exchange runs for too many rounds (handshake
// driver's per-wake-up loop, driven here without a real socket).
func loopback(t *testing.T, client, server *transport.Conn) {
	t.Helper()
	buf := make([]byte, transport.MaxPacketSize)
	now := time.Now()
	for round := 0; round < 64; round++ {
		progressed := false
		for {
			n, err := client.Send(buf)
			if err != nil {
				t.Fatalf("client send: %v", err)
			}
			if n == 0 {
				break
			}
			progressed = true
			if _, err := server.Recv(append([]byte(nil), buf[:n]...), now); err != nil {
				t.Fatalf("server recv: %v", err)
			}
		}
		for {
			n, err := server.Send(buf)
			if err != nil {
				t.Fatalf("server send: %v", err)
			}
			if n == 0 {
				break
			}
			progressed = true
			if _, err := client.Recv(append([]byte(nil), buf[:n]...), now); err != nil {
				t.Fatalf("client recv: %v", err)
			}
		}
		if client.IsEstablished() && server.IsEstablished() {
			return
		}
		if !progressed {
			break
		}
	}
	t.Fatalf("handshake did not complete: client established=%v server established=%v", client.IsEstablished(), server.IsEstablished())
}

func TestConnHandshakeReachesEstablished(t *testing.T) {
	cert := selfSignedCert(t)
	serverTLSConfig := &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"qbridge-test"}}

	clientDCID, err := transport.NewRandomCID(transport.LocalCIDLength)
	if err != nil {
		t.Fatalf("random dcid: %v", err)
	}
	clientSCID, err := transport.NewRandomCID(transport.LocalCIDLength)
	if err != nil {
		t.Fatalf("random scid: %v", err)
	}
	serverSCID, err := transport.NewRandomCID(transport.LocalCIDLength)
	if err != nil {
		t.Fatalf("random server scid: %v", err)
	}

	clientCfg := &transport.Config{
		Version: 1,
		Params: transport.DefaultParameters(),
		TLS: quictls.NewClient("localhost", true, []string{"qbridge-test"}),
	}
	serverCfg := &transport.Config{
		Version: 1,
		Params: transport.DefaultParameters(),
		TLS: quictls.NewServer(serverTLSConfig),
	}

	client, err := transport.Connect(clientCfg, clientSCID, clientDCID)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server, err := transport.Accept(serverCfg, clientDCID, clientSCID, serverSCID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	loopback(t, client, server)

	if !client.IsEstablished() || !server.IsEstablished() {
		t.Fatal("expected both sides established after loopback exchange")
	}
}

// streamCapableParameters grants generous stream and connection flow-control
// windows, since DefaultParameters leaves every limit at zero and a fresh
// stream can carry no bytes until its peer's transport parameters raise it.
func streamCapableParameters() transport.Parameters {
	p := transport.DefaultParameters()
	p.InitialMaxData = 1 << 20
	p.InitialMaxStreamDataBidiLocal = 1 << 16
	p.InitialMaxStreamDataBidiRemote = 1 << 16
	p.InitialMaxStreamDataUni = 1 << 16
	p.InitialMaxStreamsBidi = 10
	p.InitialMaxStreamsUni = 10
	return p
}

func TestConnWriteStreamAfterHandshake(t *testing.T) {
	cert := selfSignedCert(t)
	serverTLSConfig := &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"qbridge-test"}}

	clientDCID, _ := transport.NewRandomCID(transport.LocalCIDLength)
	clientSCID, _ := transport.NewRandomCID(transport.LocalCIDLength)
	serverSCID, _ := transport.NewRandomCID(transport.LocalCIDLength)

	clientCfg := &transport.Config{
		Version: 1,
		Params: streamCapableParameters(),
		TLS: quictls.NewClient("localhost", true, []string{"qbridge-test"}),
	}
	serverCfg := &transport.Config{
		Version: 1,
		Params: streamCapableParameters(),
		TLS: quictls.NewServer(serverTLSConfig),
	}

	client, err := transport.Connect(clientCfg, clientSCID, clientDCID)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server, err := transport.Accept(serverCfg, clientDCID, clientSCID, serverSCID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	loopback(t, client, server)

	if err := client.WriteStream(0, []byte("hello"), true); err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	buf := make([]byte, transport.MaxPacketSize)
	n, err := client.Send(buf)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n == 0 {
		t.Fatal("expected a packet carrying the new stream data")
	}
	if _, err := server.Recv(buf[:n], time.Now()); err != nil {
		t.Fatalf("server Recv: %v", err)
	}
	got, fin := server.ReadStream(0)
	if string(got) != "hello" || !fin {
		t.Fatalf("ReadStream(0) = %q, fin=%v, want %q, fin=true", got, fin, "hello")
	}
}
