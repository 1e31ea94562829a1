package cryptocore

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo is the HKDF context string binding the derived key to
// this protocol, the same role "info" plays in
// portal/corev2/kcpwrapper.Session's deriveKey.
var sessionKeyInfo = []byte("neutron-session-aead-key")

// NewSessionAEAD builds the XChaCha20-Poly1305 cipher used for every frame
// once a connection's shared secret is established (§4.2, §6). The KEM
// shared secret is the HKDF master key, expanded to an AEAD key the same
// way portal/corev2/kcpwrapper.Session derives its read/write keys before
// calling chacha20poly1305.NewX.
func NewSessionAEAD(sharedSecret []byte) (cipher.AEAD, error) {
	if len(sharedSecret) == 0 {
		return nil, fmt.Errorf("cryptocore: empty shared secret")
	}
	var key [chacha20poly1305.KeySize]byte
	h := hkdf.New(sha256.New, sharedSecret, nil, sessionKeyInfo)
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("cryptocore: derive session key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptocore: build AEAD: %w", err)
	}
	return aead, nil
}
