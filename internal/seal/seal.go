// Package seal encrypts document content before it reaches durable storage.
// Blobs are authenticated: decryption fails closed on any tampering.
package seal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrIntegrity is returned when a sealed blob fails authentication. The
// document is unusable but is never deleted automatically.
var ErrIntegrity = errors.New("sealed blob failed integrity check")

// ErrTooLarge is returned for inputs above the configured ceiling. Oversized
// sources are rejected rather than truncated, as a denial-of-service guard.
var ErrTooLarge = errors.New("content exceeds encryption size ceiling")

// DefaultMaxSize is the default input ceiling (100 MiB); content is held in
// memory while sealing.
const DefaultMaxSize = 100 << 20

// KeyProvider supplies the long-lived symmetric key. The indirection lets an
// operator rotate the key source without a code change; the core itself never
// rotates keys.
type KeyProvider interface {
	Key() ([]byte, error)
}

// StaticKey is a KeyProvider holding a key loaded once at process start.
type StaticKey []byte

func (k StaticKey) Key() ([]byte, error) {
	if len(k) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(k))
	}
	return k, nil
}

// KeyFromHex parses a hex-encoded 32-byte key, the format of the
// AKTIS_ENCRYPTION_KEY environment variable.
func KeyFromHex(s string) (StaticKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding key hex: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}
	return StaticKey(raw), nil
}

// KeyFromFile reads a hex-encoded key from path (external configuration store).
func KeyFromFile(path string) (StaticKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return KeyFromHex(string(raw))
}

// Service seals and opens document content under a single symmetric key using
// ChaCha20-Poly1305.
type Service struct {
	keys    KeyProvider
	maxSize int64
}

// New creates a Service. maxSize <= 0 selects DefaultMaxSize.
func New(keys KeyProvider, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{keys: keys, maxSize: maxSize}
}

// MaxSize returns the configured input ceiling in bytes.
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Seal encrypts plaintext into nonce||ciphertext||tag. Inputs above the size
// ceiling are rejected with ErrTooLarge.
func (s *Service) Seal(plaintext []byte) ([]byte, error) {
	if int64(len(plaintext)) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, len(plaintext), s.maxSize)
	}

	key, err := s.keys.Key()
	if err != nil {
		return nil, fmt.Errorf("loading key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed blob. Any tag mismatch or truncation yields
// ErrIntegrity instead of corrupted plaintext.
func (s *Service) Open(sealed []byte) ([]byte, error) {
	key, err := s.keys.Key()
	if err != nil {
		return nil, fmt.Errorf("loading key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrIntegrity
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}
