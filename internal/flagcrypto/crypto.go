// Package flagcrypto provides the seed generation, review obfuscation, and
// sender sealing used by the encrypted and anonymous flag variants.
//
// Obfuscate is a deterministic commitment, not confidentiality: it exists for
// wire compatibility with the original ledger's placeholder scheme. Anything
// that actually needs secrecy goes through the AEAD Sealer.
package flagcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SeedSize is the byte length of obfuscation seeds.
const SeedSize = 32

// GenerateSeed returns a fresh random seed from the system CSPRNG.
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return seed, nil
}

// Obfuscate XORs text with a SHA-256 counter keystream expanded from seed.
// Deterministic for a given (text, seed) pair; distinct seeds diverge after
// the first block with overwhelming probability.
func Obfuscate(text string, seed []byte) []byte {
	out := make([]byte, len(text))
	var block [8]byte
	var counter uint64
	var stream []byte
	for i := 0; i < len(text); i++ {
		if i%sha256.Size == 0 {
			binary.BigEndian.PutUint64(block[:], counter)
			sum := sha256.Sum256(append(seed, block[:]...))
			stream = sum[:]
			counter++
		}
		out[i] = text[i] ^ stream[i%sha256.Size]
	}
	return out
}

// Sealer wraps ChaCha20-Poly1305 over a service-held key. Used to seal the
// true sender reference inside anonymous flags: auditable later under key
// custody, unreadable to every caller-facing query path.
type Sealer struct {
	key []byte
}

// NewSealer builds a Sealer from a 64-char hex key. An empty key generates an
// ephemeral process-local key, which still hides the sender but loses
// auditability across restarts.
func NewSealer(hexKey string) (*Sealer, error) {
	if hexKey == "" {
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate seal key: %w", err)
		}
		return &Sealer{key: key}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext with a random nonce prepended to the ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal. Only used by audit tooling; no
// service query path calls this.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}
