package models

import "encoding/json"

// Claims is the subset of identity-token claims this system consumes.
// Audience keeps the provider's member order; a string `aud` becomes a
// single-element slice.
type Claims struct {
	Issuer    string   `json:"iss"`
	Subject   string   `json:"sub"`
	Audience  []string `json:"aud"`
	ExpiresAt int64    `json:"exp,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	Nonce     string   `json:"nonce,omitempty"`
}

// UnmarshalJSON accepts `aud` as either a single string or a string list,
// as RFC 7519 allows both encodings.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type alias Claims
	aux := struct {
		*alias
		Audience json.RawMessage `json:"aud"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Audience = nil
	if len(aux.Audience) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(aux.Audience, &single); err == nil {
		c.Audience = []string{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(aux.Audience, &list); err != nil {
		return err
	}
	c.Audience = list
	return nil
}

// SaltRequest is the body of POST /hkdf.
type SaltRequest struct {
	Token string `json:"token"`
}

// SaltResponse is the success body of POST /hkdf. Salt is a base-10
// unsigned integer string in [0, 2^128).
type SaltResponse struct {
	Salt string `json:"salt"`
}

// ErrorResponse is the failure body shared by every service endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProofRequest is the payload sent to the external prover.
type ProofRequest struct {
	JWT                        string `json:"jwt"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	MaxEpoch                   uint64 `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	Salt                       string `json:"salt"`
	KeyClaimName               string `json:"keyClaimName"`
}

// ProofBundle is the prover's response, stored verbatim. Its structure is
// owned by the prover and never interpreted here.
type ProofBundle = json.RawMessage

// Profile is the cached per-user derivation state.
type Profile struct {
	Salt     string `json:"salt"`
	MaxEpoch uint64 `json:"max_epoch"`
}
