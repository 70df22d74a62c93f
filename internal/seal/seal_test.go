package seal

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
)

func testService(t *testing.T, maxSize int64) *Service {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return New(StaticKey(key), maxSize)
}

func TestRoundTrip(t *testing.T) {
	s := testService(t, 0)
	for _, size := range []int{0, 1, 17, 4096, 1 << 20} {
		plaintext := make([]byte, size)
		if _, err := rand.Read(plaintext); err != nil {
			t.Fatal(err)
		}

		sealed, err := s.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal(%d bytes): %v", size, err)
		}
		if size >= 17 && bytes.Contains(sealed, plaintext) {
			t.Fatalf("sealed blob contains plaintext for size %d", size)
		}

		opened, err := s.Open(sealed)
		if err != nil {
			t.Fatalf("Open(%d bytes): %v", size, err)
		}
		if !bytes.Equal(opened, plaintext) {
			t.Errorf("round trip mismatch for size %d", size)
		}
	}
}

// TestTamperFailsClosed flips one bit anywhere in the blob and expects
// ErrIntegrity, never corrupted plaintext.
func TestTamperFailsClosed(t *testing.T) {
	s := testService(t, 0)
	sealed, err := s.Seal([]byte("gehaltsabrechnung 2024-01"))
	if err != nil {
		t.Fatal(err)
	}

	for _, pos := range []int{0, len(sealed) / 2, len(sealed) - 1} {
		tampered := make([]byte, len(sealed))
		copy(tampered, sealed)
		tampered[pos] ^= 0x01

		if _, err := s.Open(tampered); !errors.Is(err, ErrIntegrity) {
			t.Errorf("tamper at %d: err = %v, want ErrIntegrity", pos, err)
		}
	}
}

func TestTruncatedBlob(t *testing.T) {
	s := testService(t, 0)
	if _, err := s.Open([]byte{0x01, 0x02}); !errors.Is(err, ErrIntegrity) {
		t.Errorf("err = %v, want ErrIntegrity for truncated blob", err)
	}
}

func TestSizeCeiling(t *testing.T) {
	s := testService(t, 64)

	if _, err := s.Seal(make([]byte, 64)); err != nil {
		t.Errorf("content at ceiling rejected: %v", err)
	}
	if _, err := s.Seal(make([]byte, 65)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestKeyFromHex(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}

	k, err := KeyFromHex(hex.EncodeToString(key) + "\n")
	if err != nil {
		t.Fatalf("KeyFromHex: %v", err)
	}
	got, err := k.Key()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, key) {
		t.Error("parsed key differs from source")
	}

	if _, err := KeyFromHex("abcd"); err == nil {
		t.Error("short key accepted")
	}
	if _, err := KeyFromHex("zz"); err == nil {
		t.Error("non-hex key accepted")
	}
}

// TestKeyReferenceSwap verifies the service follows its KeyProvider, the hook
// for operational key rotation.
func TestKeyReferenceSwap(t *testing.T) {
	keyA := make([]byte, 32)
	keyB := make([]byte, 32)
	rand.Read(keyA)
	rand.Read(keyB)

	ref := &swappableKey{key: keyA}
	s := New(ref, 0)

	sealed, err := s.Seal([]byte("content"))
	if err != nil {
		t.Fatal(err)
	}

	ref.key = keyB
	if _, err := s.Open(sealed); !errors.Is(err, ErrIntegrity) {
		t.Errorf("blob sealed under old key opened after swap: err = %v", err)
	}

	ref.key = keyA
	if _, err := s.Open(sealed); err != nil {
		t.Errorf("blob unreadable after swapping back: %v", err)
	}
}

type swappableKey struct{ key []byte }

func (s *swappableKey) Key() ([]byte, error) { return s.key, nil }
