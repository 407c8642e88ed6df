package oidc

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

// ErrTokenInvalid covers every token rejection: malformed, unsigned, expired,
// tampered, or claim-mismatched.
var ErrTokenInvalid = errors.New("token invalid")

// clockSkew is the fixed tolerance applied to exp, nbf and iat.
const clockSkew = 300 * time.Second

// Verifier validates identity tokens against their issuer's published keys.
type Verifier struct {
	resolver   *Resolver
	allowedIss []string
	allowedAud []string
}

// NewVerifier builds a verifier. Empty allow-lists disable the respective
// check; a non-empty list rejects any token outside it.
func NewVerifier(resolver *Resolver, allowedIss, allowedAud []string) *Verifier {
	return &Verifier{
		resolver:   resolver,
		allowedIss: allowedIss,
		allowedAud: allowedAud,
	}
}

// Verify validates the token end to end and returns its claims. No claim is
// trusted before the signature and timing checks pass; the unverified decode
// exists only to learn which issuer's keys to resolve.
func (v *Verifier) Verify(ctx context.Context, token string) (*models.Claims, error) {
	issuer, err := unverifiedIssuer(token)
	if err != nil {
		return nil, err
	}

	keys, err := v.resolver.Keys(ctx, issuer)
	if err != nil {
		return nil, err
	}

	claims, err := v.parseAndVerify(token, keys)
	if errors.Is(err, ErrKeyNotFound) {
		// The issuer may have rotated keys since the set was cached.
		// Re-fetch once before giving up.
		keys, rerr := v.resolver.Refresh(ctx, issuer)
		if rerr != nil {
			return nil, rerr
		}
		claims, err = v.parseAndVerify(token, keys)
	}
	if err != nil {
		if errors.Is(err, ErrDiscovery) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Issuer == "" || claims.Subject == "" || len(claims.Audience) == 0 {
		return nil, fmt.Errorf("%w: iss, sub and aud claims are required", ErrTokenInvalid)
	}
	if len(v.allowedIss) > 0 && !contains(v.allowedIss, claims.Issuer) {
		return nil, fmt.Errorf("%w: issuer %q is not allowed", ErrTokenInvalid, claims.Issuer)
	}
	if len(v.allowedAud) > 0 && !containsAny(v.allowedAud, claims.Audience) {
		return nil, fmt.Errorf("%w: audience is not allowed", ErrTokenInvalid)
	}
	return claims, nil
}

func (v *Verifier) parseAndVerify(token string, keys *KeySet) (*models.Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, err := keys.Lookup(kid)
		if err != nil {
			return nil, err
		}
		if err := checkSigningMethod(t.Method, pub); err != nil {
			return nil, err
		}
		return pub, nil
	}, jwt.WithLeeway(clockSkew), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	reg, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("unexpected claims type")
	}
	return registeredToClaims(reg), nil
}

// checkSigningMethod rejects tokens whose declared algorithm family does not
// match the resolved key, which closes the alg-substitution hole.
func checkSigningMethod(method jwt.SigningMethod, pub any) error {
	switch pub.(type) {
	case *rsa.PublicKey:
		switch method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
			return nil
		}
	case *ecdsa.PublicKey:
		if _, ok := method.(*jwt.SigningMethodECDSA); ok {
			return nil
		}
	case ed25519.PublicKey:
		if _, ok := method.(*jwt.SigningMethodEd25519); ok {
			return nil
		}
	}
	return fmt.Errorf("signing method %s does not match issuer key", method.Alg())
}

// unverifiedIssuer decodes the token without verifying anything, purely to
// extract iss for key resolution.
func unverifiedIssuer(token string) (string, error) {
	var reg jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &reg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if reg.Issuer == "" {
		return "", fmt.Errorf("%w: iss claim is missing", ErrTokenInvalid)
	}
	return reg.Issuer, nil
}

func registeredToClaims(reg *jwt.RegisteredClaims) *models.Claims {
	claims := &models.Claims{
		Issuer:   reg.Issuer,
		Subject:  reg.Subject,
		Audience: append([]string(nil), reg.Audience...),
	}
	if reg.ExpiresAt != nil {
		claims.ExpiresAt = reg.ExpiresAt.Unix()
	}
	if reg.NotBefore != nil {
		claims.NotBefore = reg.NotBefore.Unix()
	}
	if reg.IssuedAt != nil {
		claims.IssuedAt = reg.IssuedAt.Unix()
	}
	return claims
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func containsAny(list, values []string) bool {
	for _, v := range values {
		if contains(list, v) {
			return true
		}
	}
	return false
}
