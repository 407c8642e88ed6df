package salt

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

var (
	ErrSeedMissing   = errors.New("seed is required")
	ErrSeedMalformed = errors.New("seed must be hex, base64url or base64 encoded")
)

// LoadSeed decodes the operator-provisioned seed. The encoded form may be
// hex, base64url or base64; alternatively a bip39 mnemonic can be supplied,
// in which case the bip39 seed bytes are used. Both set is rejected so a
// half-rotated deployment fails loudly instead of deriving with the wrong
// material.
func LoadSeed(encoded, mnemonic string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	mnemonic = strings.TrimSpace(mnemonic)

	switch {
	case encoded == "" && mnemonic == "":
		return nil, ErrSeedMissing
	case encoded != "" && mnemonic != "":
		return nil, errors.New("seed and seed mnemonic are mutually exclusive")
	case mnemonic != "":
		if !bip39.IsMnemonicValid(mnemonic) {
			return nil, errors.New("seed mnemonic is not a valid bip39 phrase")
		}
		return bip39.NewSeed(mnemonic, ""), nil
	}

	if isHex(encoded) && len(encoded)%2 == 0 {
		seed, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSeedMalformed, err)
		}
		return seed, nil
	}
	if seed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "=")); err == nil {
		return seed, nil
	}
	if seed, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return seed, nil
	}
	return nil, ErrSeedMalformed
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
