package zklogin

import (
	"crypto/ed25519"
	"encoding/base64"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// nonceLength matches the wallet-identity standard's 27-character nonce.
const nonceLength = 27

// Nonce binds the ephemeral public key, the validity horizon and the
// randomness into the value carried through the OAuth round trip. Pure
// function of its inputs: identical inputs always produce the identical
// nonce, and the orchestrator recomputes it instead of caching it.
func Nonce(pub ed25519.PublicKey, maxEpoch uint64, randomness string) string {
	input := make([]byte, 0, 64)
	input = append(input, ephemeralKeyFlag)
	input = append(input, pub...)
	input = append(input, ':')
	input = append(input, strconv.FormatUint(maxEpoch, 10)...)
	input = append(input, ':')
	input = append(input, randomness...)

	sum := blake2b.Sum256(input)
	return base64.RawURLEncoding.EncodeToString(sum[:])[:nonceLength]
}
