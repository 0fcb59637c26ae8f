package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// initialSalt is the fixed 20-byte salt used to derive Initial secrets
// , matching the draft-29 value.
var initialSalt = []byte{
	0xaf, 0xbf, 0xec, 0x28, 0x99, 0x93, 0xd2, 0x4c,
	0x9e, 0x97, 0x86, 0xf1, 0x9c, 0x61, 0x11, 0xe0,
	0x43, 0x90, 0xa8, 0x99,
}

type suiteParams struct {
	keyLen int
	newAEAD func(key []byte) (cipher.AEAD, error)
	newHash func() hash.Hash
	hp func(hpKey []byte, sample []byte) ([5]byte, error)
}

func suiteFor(cs CipherSuite) (suiteParams, bool) {
	switch cs {
	case TLS_AES_128_GCM_SHA256:
		return suiteParams{keyLen: 16, newAEAD: newAESGCM, newHash: sha256.New, hp: aesHPMask}, true
	case TLS_AES_256_GCM_SHA384:
		return suiteParams{keyLen: 32, newAEAD: newAESGCM, newHash: sha512.New384, hp: aesHPMask}, true
	case TLS_CHACHA20_POLY1305_SHA256:
		return suiteParams{keyLen: 32, newAEAD: chacha20poly1305.New, newHash: sha256.New, hp: chachaHPMask}, true
	case TLS_AES_128_CCM_SHA256:
		// Recognized per open question but not wired: BoringSSL's
		// CCM AEAD has no portable stdlib/x/crypto equivalent here.
		return suiteParams{}, false
	default:
		return suiteParams{}, false
	}
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// hkdfExpandLabel implements TLS 1.3's HKDF-Expand-Label (RFC 8446 §7.1)
// used for every per-level key/iv/hp-key derivation .
func hkdfExpandLabel(newHash func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	out := make([]byte, length)
	r := hkdf.Expand(newHash, secret, info)
	if _, err := r.Read(out); err != nil {
		panic(err) // hkdf.Expand only fails when length exceeds 255*hashLen
	}
	return out
}

// deriveInitialSecrets implements : HKDF-Extract over (dcid,
// initialSalt), then client_in/server_in labels.
func deriveInitialSecrets(dcid []byte) (clientSecret, serverSecret []byte) {
	initialSecret := hkdf.Extract(sha256.New, dcid, initialSalt)
	clientSecret = hkdfExpandLabel(sha256.New, initialSecret, "client in", nil, sha256.Size)
	serverSecret = hkdfExpandLabel(sha256.New, initialSecret, "server in", nil, sha256.Size)
	return
}

// levelKeys holds one direction's (rx or tx) derived key material for
// one encryption level ('s "TLS cryptographic context").
type levelKeys struct {
	suite CipherSuite
	aead cipher.AEAD
	iv []byte
	hpKey []byte
	hp func(hpKey []byte, sample []byte) ([5]byte, error)
	set bool
}

func deriveLevelKeys(suite CipherSuite, secret []byte) (levelKeys, error) {
	sp, ok := suiteFor(suite)
	if !ok {
		return levelKeys{}, newError(InternalError, "unsupported cipher suite")
	}
	key := hkdfExpandLabel(sp.newHash, secret, "quic key", nil, sp.keyLen)
	iv := hkdfExpandLabel(sp.newHash, secret, "quic iv", nil, 12)
	hpKey := hkdfExpandLabel(sp.newHash, secret, "quic hp", nil, sp.keyLen)
	aead, err := sp.newAEAD(key)
	if err != nil {
		return levelKeys{}, newError(InternalError, "aead init: "+err.Error())
	}
	return levelKeys{suite: suite, aead: aead, iv: iv, hpKey: hpKey, hp: sp.hp, set: true}, nil
}

// nonce XORs the zero-padded 62-bit packet number with iv .
func buildNonce(iv []byte, pn int64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

func aesHPMask(hpKey, sample []byte) ([5]byte, error) {
	var mask [5]byte
	block, err := aes.NewCipher(hpKey)
	if err != nil {
		return mask, err
	}
	var out [16]byte
	block.Encrypt(out[:], sample)
	copy(mask[:], out[:5])
	return mask, nil
}

func chachaHPMask(hpKey, sample []byte) ([5]byte, error) {
	var mask [5]byte
	counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
	nonce := sample[4:16]
	c, err := chacha20.NewUnauthenticatedCipher(hpKey, nonce)
	if err != nil {
		return mask, err
	}
	c.SetCounter(counter)
	var zero [5]byte
	c.XORKeyStream(mask[:], zero[:])
	return mask, nil
}

// applyHeaderProtectionMask XORs the mask into byte 0 and the truncated
// packet-number bytes, per : "XOR byte 0 with mask[0] &
// (long_header ? 0x0f : 0x1f); XOR pn bytes with mask[1..pnl]."
func applyHeaderProtectionMask(b []byte, longHeader bool, pnOffset, pnLen int, mask [5]byte) {
	if longHeader {
		b[0] ^= mask[0] & 0x0f
	} else {
		b[0] ^= mask[0] & 0x1f
	}
	for i := 0; i < pnLen; i++ {
		b[pnOffset+i] ^= mask[1+i]
	}
}

// sample returns the 16-byte ciphertext sample used for header
// protection, starting at pnOffset+4 . b must be the full
// packet including the (not yet decoded) truncated packet number at a
// fixed 4-byte assumed length, per draft-28 semantics.
func headerProtectionSample(b []byte, pnOffset int) ([]byte, error) {
	start := pnOffset + 4
	if start+SampleLength > len(b) {
		return nil, newError(InternalError, "short sample")
	}
	return b[start : start+SampleLength], nil
}
