package cryptocore

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// Password KDF parameters (§3, §6): PBKDF2-HMAC-SHA3-512, 100000 iterations,
// 64-byte output, 16-byte salt.
const (
	pbkdf2Iterations = 100000
	DerivedKeySize   = 64
	SaltSize         = 16
)

// NewSalt generates a fresh random salt for a new user.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptocore: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey computes the stored derived key for a password, following the
// pbkdf2.Key usage pattern in sdk/go/e2ee.go, extended to SHA3-512 and the
// spec's iteration/output-size parameters.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, pbkdf2Iterations, DerivedKeySize, sha3.New512)
}
