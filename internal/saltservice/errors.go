package saltservice

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SuiJapan/sui-zklogin-app/internal/oidc"
)

// Kind classifies a request failure. Every kind owns exactly one HTTP
// status, so classification never depends on message text.
type Kind int

const (
	// KindRequestInvalid covers missing body/field and wrong content type.
	KindRequestInvalid Kind = iota
	// KindNotFound covers wrong path or method.
	KindNotFound
	// KindTokenInvalid covers every token rejection.
	KindTokenInvalid
	// KindDiscovery covers issuers with no usable configuration document.
	KindDiscovery
)

func (k Kind) status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindTokenInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func (k Kind) label() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTokenInvalid:
		return "token_invalid"
	case KindDiscovery:
		return "discovery_failed"
	default:
		return "request_invalid"
	}
}

type apiError struct {
	kind Kind
	msg  string
}

func (e *apiError) Error() string { return e.msg }

func requestInvalid(msg string) *apiError { return &apiError{kind: KindRequestInvalid, msg: msg} }

func notFound() *apiError { return &apiError{kind: KindNotFound, msg: "not found"} }

// classify folds verifier and resolver failures into an apiError.
func classify(err error) *apiError {
	var api *apiError
	if errors.As(err, &api) {
		return api
	}
	if errors.Is(err, oidc.ErrDiscovery) {
		return &apiError{kind: KindDiscovery, msg: err.Error()}
	}
	// A token that does not even parse is a bad request, not an
	// authentication failure.
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return &apiError{kind: KindRequestInvalid, msg: err.Error()}
	}
	if errors.Is(err, oidc.ErrTokenInvalid) {
		return &apiError{kind: KindTokenInvalid, msg: err.Error()}
	}
	return &apiError{kind: KindRequestInvalid, msg: err.Error()}
}
