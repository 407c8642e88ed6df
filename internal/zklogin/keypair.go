// Package zklogin holds the client-side primitives of the login scheme:
// ephemeral signing keys, the provider-binding nonce, and wallet address
// derivation.
package zklogin

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"

	"github.com/mr-tron/base58"
)

var ErrInvalidKeyExport = errors.New("invalid ephemeral key export")

// ephemeralKeyFlag prefixes the extended public key encoding and names the
// signature scheme (ed25519).
const ephemeralKeyFlag = 0x00

// EphemeralKeyPair is the one-time signing identity of a single login
// attempt. It never outlives the attempt and is only persisted through its
// exported form.
type EphemeralKeyPair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &EphemeralKeyPair{pub: pub, priv: priv}, nil
}

// EphemeralKeyPairFromExport reconstructs a keypair from Export output, used
// to rebuild identical in-memory state after a redirect reload.
func EphemeralKeyPairFromExport(exported string) (*EphemeralKeyPair, error) {
	seed, err := base64.StdEncoding.DecodeString(exported)
	if err != nil {
		return nil, ErrInvalidKeyExport
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeyExport
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &EphemeralKeyPair{
		pub:  priv.Public().(ed25519.PublicKey),
		priv: priv,
	}, nil
}

// Export renders the private key as base64 of its 32-byte seed, the opaque
// encoded form written to the durable session store.
func (kp *EphemeralKeyPair) Export() string {
	return base64.StdEncoding.EncodeToString(kp.priv.Seed())
}

// PublicKey returns a copy of the public key bytes.
func (kp *EphemeralKeyPair) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), kp.pub...)
}

// ExtendedPublicKey is the flag-prefixed, base64-encoded public key the
// prover consumes.
func (kp *EphemeralKeyPair) ExtendedPublicKey() string {
	raw := make([]byte, 0, 1+ed25519.PublicKeySize)
	raw = append(raw, ephemeralKeyFlag)
	raw = append(raw, kp.pub...)
	return base64.StdEncoding.EncodeToString(raw)
}

// Sign signs msg with the ephemeral private key.
func (kp *EphemeralKeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.priv, msg)
}

// AttemptID is a stable, non-secret identifier for the login attempt bound
// to this keypair. It is safe to log.
func (kp *EphemeralKeyPair) AttemptID() string {
	h := sha256.Sum256(kp.pub)
	return "att1" + base58.Encode(h[:20])
}

// GenerateRandomness draws the 16-byte entropy value bound into the nonce,
// rendered as a base-10 string below 2^128 like every other derived scalar
// in the scheme.
func GenerateRandomness() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return new(big.Int).SetBytes(raw).String(), nil
}
