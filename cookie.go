package zenoh

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/flynn/noise"
)

// CookieSealer seals and opens the opaque cookie bytes InitAck hands the
// connector and OpenSyn echoes back. The wire format deliberately leaves
// the algorithm unspecified; a listener picks one via WithCookieSealer.
type CookieSealer interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// IdentityCookieSealer echoes the cookie bytes unmodified. It is the
// default: a stateless listener that trusts the transport layer (or an
// outer authentication step) to keep cookies honest.
type IdentityCookieSealer struct{}

// Seal returns plain unchanged.
func (IdentityCookieSealer) Seal(plain []byte) ([]byte, error) { return plain, nil }

// Open returns sealed unchanged.
func (IdentityCookieSealer) Open(sealed []byte) ([]byte, error) { return sealed, nil }

// cookieCipherSuite is the Noise cipher function whose AEAD seals cookies.
var cookieCipherSuite = noise.CipherAESGCM

// NoiseCookieSealer seals cookies with AES-GCM keyed from a pre-shared
// listener secret, so a cookie cannot be forged without the secret. The
// nonce is an incrementing counter prefixed to the ciphertext; Open does
// not track nonces it has seen, so a captured cookie opens again.
type NoiseCookieSealer struct {
	cipher noise.Cipher
	nonce  uint64
}

// NewNoiseCookieSealer builds a sealer from a 32-byte pre-shared secret.
func NewNoiseCookieSealer(secret [32]byte) *NoiseCookieSealer {
	return &NoiseCookieSealer{cipher: cookieCipherSuite.Cipher(secret)}
}

// Seal encrypts plain, prefixing the 8-byte nonce used.
func (s *NoiseCookieSealer) Seal(plain []byte) ([]byte, error) {
	n := atomic.AddUint64(&s.nonce, 1) - 1
	out := make([]byte, 8, 8+len(plain)+16)
	binary.LittleEndian.PutUint64(out, n)
	out = s.cipher.Encrypt(out, n, nil, plain)
	return out, nil
}

// Open decrypts a cookie sealed by Seal (by this sealer or one built from
// the same secret).
func (s *NoiseCookieSealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 8 {
		return nil, ErrInvalidAttribute
	}
	n := binary.LittleEndian.Uint64(sealed[:8])
	plain, err := s.cipher.Decrypt(nil, n, nil, sealed[8:])
	if err != nil {
		return nil, ErrInvalidAttribute
	}
	return plain, nil
}
