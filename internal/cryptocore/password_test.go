package cryptocore

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestDeriveKeyDeterministicAndSizedPerSpec(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	if len(salt) != SaltSize {
		t.Fatalf("salt size = %d, want %d", len(salt), SaltSize)
	}

	k1 := DeriveKey([]byte("hunter2"), salt)
	k2 := DeriveKey([]byte("hunter2"), salt)
	if len(k1) != DerivedKeySize {
		t.Fatalf("derived key size = %d, want %d", len(k1), DerivedKeySize)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("DeriveKey is not deterministic for the same password/salt")
	}

	k3 := DeriveKey([]byte("different"), salt)
	if bytes.Equal(k1, k3) {
		t.Fatalf("DeriveKey produced identical output for different passwords")
	}
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	secret := bytes.Repeat([]byte{0x5}, 32)
	aead, err := NewSessionAEAD(secret)
	if err != nil {
		t.Fatalf("new session aead: %v", err)
	}

	nonce := make([]byte, aead.NonceSize())
	plaintext := []byte("the room is 0x01")
	sealed := aead.Seal(nil, nonce, plaintext, nil)

	opened, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round-trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestNewSessionAEADDerivesKeyInsteadOfUsingSecretDirectly(t *testing.T) {
	secret := bytes.Repeat([]byte{0x7}, 32)
	aead, err := NewSessionAEAD(secret)
	if err != nil {
		t.Fatalf("new session aead: %v", err)
	}

	raw, err := chacha20poly1305.NewX(secret)
	if err != nil {
		t.Fatalf("new raw aead: %v", err)
	}

	nonce := make([]byte, aead.NonceSize())
	plaintext := []byte("derived key must differ from the raw shared secret")
	sealed := aead.Seal(nil, nonce, plaintext, nil)

	if _, err := raw.Open(nil, nonce, sealed, nil); err == nil {
		t.Fatalf("ciphertext opened under the raw shared secret; key was not derived via HKDF")
	}
}

func TestNewSessionAEADIsDeterministicForSameSecret(t *testing.T) {
	secret := bytes.Repeat([]byte{0x9}, 32)
	a1, err := NewSessionAEAD(secret)
	if err != nil {
		t.Fatalf("new session aead: %v", err)
	}
	a2, err := NewSessionAEAD(secret)
	if err != nil {
		t.Fatalf("new session aead: %v", err)
	}

	nonce := make([]byte, a1.NonceSize())
	plaintext := []byte("same secret must derive the same session key")
	sealed := a1.Seal(nil, nonce, plaintext, nil)

	opened, err := a2.Open(nil, nonce, sealed, nil)
	if err != nil {
		t.Fatalf("open with independently derived aead: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round-trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestServerIDIsStableHash(t *testing.T) {
	pub := []byte("fixed-test-public-key")
	id1 := ServerID(pub)
	id2 := ServerID(pub)
	if id1 != id2 {
		t.Fatalf("ServerID not stable: %s vs %s", id1, id2)
	}
	if len(id1) != 128 { // SHA3-512 -> 64 bytes -> 128 hex chars
		t.Fatalf("ServerID length = %d, want 128", len(id1))
	}
}
