package cryptocore

import (
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/sha3"
)

// LoadOrCreateIdentity reads the long-term signature keypair from path, or
// generates and persists a new one if the file is absent (§4.2: "If absent,
// generate and write it").
func LoadOrCreateIdentity(path string) (*LongTermIdentity, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return LoadLongTermIdentity(raw)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cryptocore: read key file %s: %w", path, err)
	}

	id, err := GenerateLongTermIdentity()
	if err != nil {
		return nil, err
	}
	raw, err = id.Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("cryptocore: write key file %s: %w", path, err)
	}
	return id, nil
}

// ServerID returns the operator-facing server identifier: SHA3-512 of the
// long-term public key, hex-encoded (§4.2).
func ServerID(publicKey []byte) string {
	sum := sha3.Sum512(publicKey)
	return hex.EncodeToString(sum[:])
}
