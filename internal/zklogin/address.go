package zklogin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

var ErrMalformedToken = errors.New("malformed identity token")

// addressFlag tags derived wallet addresses with the login-based signature
// scheme so they can never collide with single-key addresses.
const addressFlag = 0x05

// Address derives the wallet address from an identity token and the user's
// blinding salt. Pure function of (iss, aud, sub, salt); recomputing with
// the same token and salt always yields the same address. The claims are
// read without verification because address derivation is local arithmetic;
// the server-side verifier remains the authority on the token itself.
func Address(token, saltDecimal string) (string, error) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return "", err
	}
	return AddressFromClaims(claims, saltDecimal), nil
}

// AddressFromClaims derives the address from already-decoded claims.
func AddressFromClaims(claims *models.Claims, saltDecimal string) string {
	seed := addressSeed(claims, saltDecimal)

	iss := []byte(claims.Issuer)
	input := make([]byte, 0, 1+binary.MaxVarintLen64+len(iss)+len(seed))
	input = append(input, addressFlag)
	var issLen [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(issLen[:], uint64(len(iss)))
	input = append(input, issLen[:n]...)
	input = append(input, iss...)
	input = append(input, seed...)

	sum := blake2b.Sum256(input)
	return "0x" + hex.EncodeToString(sum[:])
}

// addressSeed blinds the subject with the salt: 32 bytes of HKDF-SHA256
// keyed by the decimal salt string, salted with the joined audience and
// expanded with the claim name and subject.
func addressSeed(claims *models.Claims, saltDecimal string) []byte {
	info := make([]byte, 0, 4+len(claims.Subject))
	info = append(info, "sub"...)
	info = append(info, 0)
	info = append(info, claims.Subject...)

	reader := hkdf.New(sha256.New, []byte(saltDecimal), []byte(strings.Join(claims.Audience, ",")), info)
	out := make([]byte, 32)
	if _, err := io.ReadFull(reader, out); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}

// DecodeClaims parses the token's payload without verifying its signature.
// The result is provisional display/derivation input only; trust comes from
// the verification service.
func DecodeClaims(token string) (*models.Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected three segments", ErrMalformedToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var claims models.Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}
