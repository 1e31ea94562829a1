// Package cryptocore implements the crypto primitives of §4.2: KEM
// keypair/decapsulation, the long-term signature over the ephemeral KEM
// public key, AEAD framing, and password-based key derivation.
package cryptocore

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"
)

// kemSchemeName is ML-KEM-768, the NIST-standardized successor to the SIKE
// parameter set named in the protocol's algorithm table — SIKE was broken in
// 2022 and is absent from every maintained Go PQC library, ML-KEM is the
// scheme the ecosystem (and this corpus) actually ships.
const kemSchemeName = "ML-KEM-768"

var kemScheme = schemes.ByName(kemSchemeName)

// EphemeralKeyPair holds a connection-scoped KEM keypair. The secret half
// must be zeroized as soon as decapsulation completes (§3 Connection
// invariant).
type EphemeralKeyPair struct {
	Public kem.PublicKey
	secret kem.PrivateKey
}

// GenerateEphemeralKeyPair creates a fresh KEM keypair for one handshake.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	if kemScheme == nil {
		return nil, fmt.Errorf("cryptocore: KEM scheme %q not registered", kemSchemeName)
	}
	pub, sec, err := kemScheme.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("cryptocore: generate KEM keypair: %w", err)
	}
	return &EphemeralKeyPair{Public: pub, secret: sec}, nil
}

// PublicKeyBytes marshals the public half for the ServerKeyExchange payload.
func (k *EphemeralKeyPair) PublicKeyBytes() ([]byte, error) {
	return k.Public.MarshalBinary()
}

// Decapsulate recovers the shared secret from the client's KEM ciphertext.
// The keypair's secret key is kept; the caller drops it with Wipe once
// decapsulation is done.
func (k *EphemeralKeyPair) Decapsulate(ciphertext []byte) ([]byte, error) {
	ss, err := kemScheme.Decapsulate(k.secret, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: decapsulate: %w", err)
	}
	return ss, nil
}

// Wipe drops the reference to the ephemeral secret key so it can be
// collected; circl keeps key material in regular Go heap objects, so this is
// best-effort rather than a guaranteed memory scrub.
func (k *EphemeralKeyPair) Wipe() {
	k.secret = nil
}

// EncapsulateAgainst is the client-side half of the handshake: given the
// server's ephemeral public key bytes, produce a ciphertext and the shared
// secret. Provided for completeness/testing of the wire format; the server
// package never calls it.
func EncapsulateAgainst(serverEphemeralPub []byte) (ciphertext, sharedSecret []byte, err error) {
	pk, err := kemScheme.UnmarshalBinaryPublicKey(serverEphemeralPub)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptocore: unmarshal peer public key: %w", err)
	}
	return kemScheme.Encapsulate(pk)
}
