// Package quictls adapts the standard library's crypto/tls QUIC
// transport support (tls.QUICConn, added in Go 1.21) to the
// transport.TLSProvider contract of : "a TLS provider is
// consumed through the handshake interface described in §6 ... TLS
// record layer internals" are out of scope for the engine itself, but
// something concrete must drive real TLS 1.3 for the engine to be
// runnable end to end, and the standard library is the natural choice
// now that Go ships QUIC-mode TLS directly (no third-party TLS stack in
// the retrieved pack implements QUIC key export the way crypto/tls
// does).
package quictls

import (
	"bytes"
	"context"
	"crypto/tls"
	"sync"

	"github.com/quicbridge/engine/transport"
)

// toQUICLevel and fromQUICLevel translate between transport.Level and
// tls.QUICEncryptionLevel;
// both enumerate Initial, 0-RTT/Early, Handshake, Application in the same
// order, but the conversion is spelled out rather than cast across
// packages.
func toQUICLevel(l transport.Level) tls.QUICEncryptionLevel {
	switch l {
	case transport.LevelInitial:
		return tls.QUICEncryptionLevelInitial
	case transport.LevelZeroRTT:
		return tls.QUICEncryptionLevelEarly
	case transport.LevelHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func fromQUICLevel(l tls.QUICEncryptionLevel) transport.Level {
	switch l {
	case tls.QUICEncryptionLevelInitial:
		return transport.LevelInitial
	case tls.QUICEncryptionLevelEarly:
		return transport.LevelZeroRTT
	case tls.QUICEncryptionLevelHandshake:
		return transport.LevelHandshake
	default:
		return transport.LevelApplication
	}
}

func suiteFromID(id uint16) transport.CipherSuite {
	return transport.CipherSuite(id)
}

// Provider implements transport.TLSProvider over a *tls.QUICConn.
type Provider struct {
	mu sync.Mutex
	qc *tls.QUICConn
	local *transport.Parameters
	peer *transport.Parameters
	secret []pendingSecret

	writeBuf [4]bytes.Buffer // per-level outbound CRYPTO bytes queued by the last NextEvent drain
	done bool
	started bool
}

type pendingSecret struct {
	level transport.Level
	suite transport.CipherSuite
	read []byte
	write []byte
	isInit bool
}

// NewClient builds a client-side Provider for serverName, optionally
// skipping certificate verification; callers build it inside a
// quicsrv.Config TLSFactory, as cmd/quicbridged does.
func NewClient(serverName string, insecureSkipVerify bool, nextProtos []string) *Provider {
	cfg := &tls.Config{
		ServerName: serverName,
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion: tls.VersionTLS13,
		NextProtos: nextProtos,
	}
	qc := tls.QUICClient(&tls.QUICConfig{TLSConfig: cfg})
	return &Provider{qc: qc}
}

// NewServer builds a server-side Provider from a standard *tls.Config
// carrying at least one certificate.
func NewServer(cfg *tls.Config) *Provider {
	c := cfg.Clone()
	c.MinVersion = tls.VersionTLS13
	qc := tls.QUICServer(&tls.QUICConfig{TLSConfig: c})
	return &Provider{qc: qc}
}

func (p *Provider) SetTransportParams(params *transport.Parameters) {
	p.mu.Lock()
	p.local = params
	p.mu.Unlock()
	p.qc.SetTransportParameters(transport.MarshalParameters(params))
}

func (p *Provider) PeerTransportParams() *transport.Parameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

func (p *Provider) ReadCRYPTO(level transport.Level, data []byte) error {
	return p.qc.HandleData(toQUICLevel(level), data)
}

func (p *Provider) WriteCRYPTO(level transport.Level, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := &p.writeBuf[level]
	n := copy(b, buf.Bytes())
	buf.Next(n)
	return n, nil
}

// Progress drains every event tls.QUICConn currently has queued,
// buffering emitted CRYPTO bytes and freshly derived secrets for
// WriteCRYPTO/NextSecrets to pick up (handshake driver step 6:
// "tls.do_handshake ... ok; want-read/want-write; fatal").
func (p *Provider) Progress() error {
	if !p.started {
		p.started = true
		if err := p.qc.Start(context.Background()); err != nil {
			return err
		}
	}
	for {
		e := p.qc.NextEvent()
		switch e.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			p.addSecret(e.Level, e.Data, nil, e.Suite)
		case tls.QUICSetWriteSecret:
			p.addSecret(e.Level, nil, e.Data, e.Suite)
		case tls.QUICWriteData:
			p.mu.Lock()
			p.writeBuf[fromQUICLevel(e.Level)].Write(e.Data)
			p.mu.Unlock()
		case tls.QUICTransportParameters:
			params, err := transport.UnmarshalParameters(e.Data)
			if err != nil {
				return err
			}
			p.mu.Lock()
			p.peer = params
			p.mu.Unlock()
		case tls.QUICHandshakeDone:
			p.mu.Lock()
			p.done = true
			p.mu.Unlock()
		}
	}
}

// addSecret merges a read-only or write-only event into one Secrets
// entry per level, since tls.QUICConn reports rx/tx separately but
// transport.TLSProvider.NextSecrets expects both sides together.
func (p *Provider) addSecret(ql tls.QUICEncryptionLevel, read, write []byte, suite uint16) {
	l := fromQUICLevel(ql)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.secret {
		if p.secret[i].level == l {
			if read != nil {
				p.secret[i].read = read
			}
			if write != nil {
				p.secret[i].write = write
			}
			return
		}
	}
	p.secret = append(p.secret, pendingSecret{level: l, suite: suiteFromID(suite), read: read, write: write, isInit: l == transport.LevelInitial})
}

func (p *Provider) HandshakeComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// NextSecrets drains secrets whose both halves (read and write) have
// arrived; a level reported with only one half so far is left pending
// until its counterpart shows up (tls.QUICConn emits them in the same
// NextEvent drain in practice, but the interface contract only promises
// "newly available" tuples).
func (p *Provider) NextSecrets() []transport.Secrets {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ready []transport.Secrets
	var remaining []pendingSecret
	for _, s := range p.secret {
		if s.read != nil && s.write != nil {
			ready = append(ready, transport.Secrets{Level: s.level, Suite: s.suite, Read: s.read, Write: s.write, IsInit: s.isInit})
		} else {
			remaining = append(remaining, s)
		}
	}
	p.secret = remaining
	return ready
}

func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = false
	p.started = false
	p.secret = nil
	for i := range p.writeBuf {
		p.writeBuf[i].Reset()
	}
}
