package cryptocore

import "testing"

func TestKEMHandshakeRoundTrip(t *testing.T) {
	server, err := GenerateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generate ephemeral: %v", err)
	}
	pubBytes, err := server.PublicKeyBytes()
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	ciphertext, clientSS, err := EncapsulateAgainst(pubBytes)
	if err != nil {
		t.Fatalf("encapsulate: %v", err)
	}

	serverSS, err := server.Decapsulate(ciphertext)
	if err != nil {
		t.Fatalf("decapsulate: %v", err)
	}
	server.Wipe()

	if len(serverSS) == 0 || len(clientSS) != len(serverSS) {
		t.Fatalf("shared secret size mismatch: client=%d server=%d", len(clientSS), len(serverSS))
	}
	for i := range serverSS {
		if serverSS[i] != clientSS[i] {
			t.Fatalf("shared secret mismatch at byte %d", i)
		}
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	id, err := GenerateLongTermIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	pubBytes, err := id.PublicKeyBytes()
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	msg := []byte("ephemeral-kem-public-key-bytes")
	sig := id.Sign(msg)

	ok, err := VerifySignature(pubBytes, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}

	ok, err = VerifySignature(pubBytes, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Fatalf("expected signature verification to fail for tampered message")
	}
}

func TestMarshalLoadIdentityRoundTrip(t *testing.T) {
	id, err := GenerateLongTermIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	raw, err := id.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded, err := LoadLongTermIdentity(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	msg := []byte("round trip check")
	sig := loaded.Sign(msg)
	pubBytes, err := loaded.PublicKeyBytes()
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	ok, err := VerifySignature(pubBytes, msg, sig)
	if err != nil || !ok {
		t.Fatalf("signature from reloaded identity did not verify: ok=%v err=%v", ok, err)
	}
}
