package salt

import (
	"bytes"
	"errors"
	"testing"
)

func TestLoadSeedHex(t *testing.T) {
	seed, err := LoadSeed("00ff10ab", "")
	if err != nil {
		t.Fatalf("load hex seed failed: %v", err)
	}
	if !bytes.Equal(seed, []byte{0x00, 0xff, 0x10, 0xab}) {
		t.Fatalf("unexpected seed bytes: %x", seed)
	}
}

func TestLoadSeedBase64URL(t *testing.T) {
	// "zk-salt!" in base64url; not in the hex alphabet, so it takes the
	// base64 path.
	seed, err := LoadSeed("emstc2FsdCE", "")
	if err != nil {
		t.Fatalf("load base64url seed failed: %v", err)
	}
	if string(seed) != "zk-salt!" {
		t.Fatalf("unexpected seed bytes: %q", seed)
	}
}

func TestLoadSeedMnemonic(t *testing.T) {
	mnemonic := "legal winner thank year wave sausage worth useful legal winner thank yellow"
	seed, err := LoadSeed("", mnemonic)
	if err != nil {
		t.Fatalf("load mnemonic seed failed: %v", err)
	}
	if len(seed) != 64 {
		t.Fatalf("bip39 seed should be 64 bytes, got %d", len(seed))
	}
	again, err := LoadSeed("", mnemonic)
	if err != nil {
		t.Fatalf("reload mnemonic seed failed: %v", err)
	}
	if !bytes.Equal(seed, again) {
		t.Fatal("mnemonic seed derivation should be stable")
	}
}

func TestLoadSeedRejections(t *testing.T) {
	if _, err := LoadSeed("", ""); !errors.Is(err, ErrSeedMissing) {
		t.Fatalf("empty seed should fail with ErrSeedMissing, got %v", err)
	}
	if _, err := LoadSeed("!!not-decodable!!", ""); err == nil {
		t.Fatal("expected error for undecodable seed")
	}
	if _, err := LoadSeed("00ff", "legal winner thank year wave sausage worth useful legal winner thank yellow"); err == nil {
		t.Fatal("expected error when both seed and mnemonic are set")
	}
	if _, err := LoadSeed("", "not a mnemonic at all"); err == nil {
		t.Fatal("expected error for invalid mnemonic")
	}
}
