package zklogin

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
)

func testToken(t *testing.T, iss, sub string, aud any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"iss": iss, "sub": sub, "aud": aud})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".sig"
}

func TestKeyPairExportRoundTrip(t *testing.T) {
	kp, err := GenerateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	restored, err := EphemeralKeyPairFromExport(kp.Export())
	if err != nil {
		t.Fatalf("restore keypair: %v", err)
	}
	if string(restored.PublicKey()) != string(kp.PublicKey()) {
		t.Fatal("restored keypair should reproduce the public key")
	}
	if restored.ExtendedPublicKey() != kp.ExtendedPublicKey() {
		t.Fatal("restored keypair should reproduce the extended public key")
	}
	if restored.AttemptID() != kp.AttemptID() {
		t.Fatal("restored keypair should reproduce the attempt id")
	}
	if !strings.HasPrefix(kp.AttemptID(), "att1") {
		t.Fatalf("attempt id %q should carry the att1 prefix", kp.AttemptID())
	}
}

func TestKeyPairExportRejectsGarbage(t *testing.T) {
	if _, err := EphemeralKeyPairFromExport("not base64!"); err == nil {
		t.Fatal("expected error for undecodable export")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := EphemeralKeyPairFromExport(short); err == nil {
		t.Fatal("expected error for wrong-length export")
	}
}

func TestRandomnessShape(t *testing.T) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		r, err := GenerateRandomness()
		if err != nil {
			t.Fatalf("generate randomness: %v", err)
		}
		n, ok := new(big.Int).SetString(r, 10)
		if !ok || n.Sign() < 0 || n.Cmp(limit) >= 0 {
			t.Fatalf("randomness %q outside [0, 2^128)", r)
		}
		if seen[r] {
			t.Fatalf("randomness %q repeated", r)
		}
		seen[r] = true
	}
}

func TestNonceDeterminismAndSensitivity(t *testing.T) {
	kp, err := GenerateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	base := Nonce(kp.PublicKey(), 120, "314159")
	if Nonce(kp.PublicKey(), 120, "314159") != base {
		t.Fatal("nonce must be deterministic for identical inputs")
	}
	if len(base) != 27 {
		t.Fatalf("nonce %q should be 27 characters", base)
	}
	if Nonce(kp.PublicKey(), 120, "314160") == base {
		t.Fatal("changing randomness alone must change the nonce")
	}
	if Nonce(kp.PublicKey(), 121, "314159") == base {
		t.Fatal("changing maxEpoch alone must change the nonce")
	}
	other, err := GenerateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generate second keypair: %v", err)
	}
	if Nonce(other.PublicKey(), 120, "314159") == base {
		t.Fatal("changing the key alone must change the nonce")
	}
}

func TestAddressDeterminism(t *testing.T) {
	token := testToken(t, "https://accounts.example.com", "user-42", "client-123")
	first, err := Address(token, "12345678901234567890")
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	again, err := Address(token, "12345678901234567890")
	if err != nil {
		t.Fatalf("derive address again: %v", err)
	}
	if first != again {
		t.Fatal("address must be a pure function of token and salt")
	}
	if !strings.HasPrefix(first, "0x") || len(first) != 66 {
		t.Fatalf("address %q should be 0x-prefixed 32-byte hex", first)
	}

	otherSalt, err := Address(token, "999")
	if err != nil {
		t.Fatalf("derive address with other salt: %v", err)
	}
	if otherSalt == first {
		t.Fatal("changing the salt must change the address")
	}

	otherSub, err := Address(testToken(t, "https://accounts.example.com", "user-43", "client-123"), "12345678901234567890")
	if err != nil {
		t.Fatalf("derive address with other subject: %v", err)
	}
	if otherSub == first {
		t.Fatal("changing the subject must change the address")
	}
}

func TestAddressAudienceForms(t *testing.T) {
	single := testToken(t, "https://iss.example", "sub", "aud-a")
	list := testToken(t, "https://iss.example", "sub", []string{"aud-a"})
	a, err := Address(single, "7")
	if err != nil {
		t.Fatalf("derive single-aud address: %v", err)
	}
	b, err := Address(list, "7")
	if err != nil {
		t.Fatalf("derive list-aud address: %v", err)
	}
	if a != b {
		t.Fatal("a one-element audience list should derive like the bare string")
	}
}

func TestDecodeClaimsRejectsMalformed(t *testing.T) {
	if _, err := DecodeClaims("not-a-jwt"); err == nil {
		t.Fatal("expected error for tokens without three segments")
	}
	if _, err := DecodeClaims("a.!!!.c"); err == nil {
		t.Fatal("expected error for undecodable payload")
	}
}
