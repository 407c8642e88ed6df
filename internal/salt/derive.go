// Package salt derives the per-user, per-application blinding salt from an
// operator-provisioned seed and verified identity-token claims.
package salt

import (
	"crypto/sha256"
	"io"
	"math/big"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// saltBytes is fixed at 16 because the prover expects a value below 2^128.
const saltBytes = 16

// Derive computes the blinding salt for one (seed, iss, aud, sub) tuple as a
// base-10 unsigned integer string. The derivation is HKDF-SHA256 keyed by the
// seed, salted with UTF-8(iss)||UTF-8(aud) and expanded with UTF-8(sub).
// A multi-member audience is joined with commas before encoding; changing
// that join would change every derived value, so it is part of the contract.
func Derive(seed []byte, iss string, aud []string, sub string) string {
	saltInput := []byte(iss + strings.Join(aud, ","))
	info := []byte(sub)

	reader := hkdf.New(sha256.New, seed, saltInput, info)
	out := make([]byte, saltBytes)
	if _, err := io.ReadFull(reader, out); err != nil {
		// hkdf.Reader only fails past its 255*32-byte expansion limit,
		// which 16 bytes never reaches.
		panic("hkdf: " + err.Error())
	}

	return new(big.Int).SetBytes(out).String()
}
