package cryptocore

import (
	"fmt"

	circlsign "github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"
)

// sigSchemeName is Dilithium5 (ML-DSA-87's predecessor name in circl), the
// NIST level-5 successor to the Picnic2 L5 FS identifier named in the
// protocol's algorithm table — Picnic was withdrawn from the NIST PQC
// competition and, like SIKE, has no maintained Go implementation.
const sigSchemeName = "Dilithium5"

var sigScheme = schemes.ByName(sigSchemeName)

// LongTermIdentity is the server operator's persistent signature keypair
// (§4.2, §6 server.crt).
type LongTermIdentity struct {
	Public circlsign.PublicKey
	secret circlsign.PrivateKey
}

// GenerateLongTermIdentity creates a new signature keypair.
func GenerateLongTermIdentity() (*LongTermIdentity, error) {
	if sigScheme == nil {
		return nil, fmt.Errorf("cryptocore: signature scheme %q not registered", sigSchemeName)
	}
	pub, sec, err := sigScheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("cryptocore: generate signature keypair: %w", err)
	}
	return &LongTermIdentity{Public: pub, secret: sec}, nil
}

// LoadLongTermIdentity reconstructs a keypair from the raw
// public||secret concatenation persisted on disk.
func LoadLongTermIdentity(raw []byte) (*LongTermIdentity, error) {
	pubLen := sigScheme.PublicKeySize()
	secLen := sigScheme.PrivateKeySize()
	if len(raw) != pubLen+secLen {
		return nil, fmt.Errorf("cryptocore: key file has %d bytes, want %d", len(raw), pubLen+secLen)
	}
	pub, err := sigScheme.UnmarshalBinaryPublicKey(raw[:pubLen])
	if err != nil {
		return nil, fmt.Errorf("cryptocore: unmarshal public key: %w", err)
	}
	sec, err := sigScheme.UnmarshalBinaryPrivateKey(raw[pubLen:])
	if err != nil {
		return nil, fmt.Errorf("cryptocore: unmarshal secret key: %w", err)
	}
	return &LongTermIdentity{Public: pub, secret: sec}, nil
}

// Marshal serializes the keypair as public||secret for persistence.
func (id *LongTermIdentity) Marshal() ([]byte, error) {
	pubBytes, err := id.Public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("cryptocore: marshal public key: %w", err)
	}
	secBytes, err := id.secret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("cryptocore: marshal secret key: %w", err)
	}
	out := make([]byte, 0, len(pubBytes)+len(secBytes))
	out = append(out, pubBytes...)
	out = append(out, secBytes...)
	return out, nil
}

// PublicKeyBytes marshals the long-term public key for ServerKeyExchange.
func (id *LongTermIdentity) PublicKeyBytes() ([]byte, error) {
	return id.Public.MarshalBinary()
}

// Sign signs an ephemeral KEM public key for the handshake.
func (id *LongTermIdentity) Sign(ephemeralPub []byte) []byte {
	return sigScheme.Sign(id.secret, ephemeralPub, nil)
}

// VerifySignature checks a handshake signature against a long-term public
// key marshaled the same way PublicKeyBytes produces it. Provided for
// completeness/testing; the server side never verifies its own signature.
func VerifySignature(serverPub, ephemeralPub, signature []byte) (bool, error) {
	pub, err := sigScheme.UnmarshalBinaryPublicKey(serverPub)
	if err != nil {
		return false, fmt.Errorf("cryptocore: unmarshal server public key: %w", err)
	}
	return sigScheme.Verify(pub, ephemeralPub, signature, nil), nil
}
