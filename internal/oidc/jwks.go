package oidc

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// KeySet holds an issuer's published verification keys, indexed by kid.
type KeySet struct {
	byKid map[string]crypto.PublicKey
	all   []crypto.PublicKey
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// ParseKeySet decodes a JWKS document. Keys that fail to decode are skipped;
// a document yielding zero usable keys is an error.
func ParseKeySet(raw []byte) (*KeySet, error) {
	var doc jwksDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid jwks document: %w", err)
	}
	set := &KeySet{byKid: make(map[string]crypto.PublicKey)}
	for _, key := range doc.Keys {
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		pub, err := key.publicKey()
		if err != nil {
			continue
		}
		set.all = append(set.all, pub)
		if key.Kid != "" {
			set.byKid[key.Kid] = pub
		}
	}
	if len(set.all) == 0 {
		return nil, errors.New("jwks document contains no usable signing keys")
	}
	return set, nil
}

// Lookup returns the key for kid. With an empty kid and a single-key set the
// sole key is returned, matching common provider behavior for unkeyed JWKS.
func (s *KeySet) Lookup(kid string) (crypto.PublicKey, error) {
	if kid == "" {
		if len(s.all) == 1 {
			return s.all[0], nil
		}
		return nil, ErrKeyNotFound
	}
	if pub, ok := s.byKid[kid]; ok {
		return pub, nil
	}
	return nil, ErrKeyNotFound
}

// Len reports how many usable keys the set carries.
func (s *KeySet) Len() int { return len(s.all) }

func (k jwk) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaKey()
	case "EC":
		return k.ecdsaKey()
	case "OKP":
		return k.ed25519Key()
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}

func (k jwk) rsaKey() (crypto.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() <= 1 {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exp.Int64()),
	}, nil
}

func (k jwk) ecdsaKey() (crypto.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, err
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, err
	}
	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("ec point is not on curve")
	}
	return pub, nil
}

func (k jwk) ed25519Key() (crypto.PublicKey, error) {
	if k.Crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported okp curve %q", k.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, err
	}
	if len(x) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 key length")
	}
	return ed25519.PublicKey(x), nil
}
