package prover

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

func TestRequestProofPassesBundleVerbatim(t *testing.T) {
	const proofBody = `{"proofPoints":{"a":["1","2"]},"headerBase64":"abc"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ProofRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode prover request: %v", err)
		}
		if req.KeyClaimName != "sub" {
			t.Errorf("keyClaimName = %q, want sub", req.KeyClaimName)
		}
		if req.JWT == "" || req.Salt == "" || req.JWTRandomness == "" || req.ExtendedEphemeralPublicKey == "" {
			t.Errorf("incomplete prover request: %+v", req)
		}
		_, _ = w.Write([]byte(proofBody))
	}))
	defer server.Close()

	bundle, err := NewClient(server.URL, nil).RequestProof(context.Background(), models.ProofRequest{
		JWT:                        "a.b.c",
		ExtendedEphemeralPublicKey: "AAEC",
		MaxEpoch:                   42,
		JWTRandomness:              "314159",
		Salt:                       "271828",
		KeyClaimName:               "sub",
	})
	if err != nil {
		t.Fatalf("request proof: %v", err)
	}
	if string(bundle) != proofBody {
		t.Fatalf("bundle altered in transit: %s", bundle)
	}
}

func TestRequestProofUpstreamFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "circuit overload", http.StatusBadGateway)
	}))
	defer failing.Close()
	if _, err := NewClient(failing.URL, nil).RequestProof(context.Background(), models.ProofRequest{}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream for 502, got %v", err)
	}

	down := httptest.NewServer(nil)
	down.Close()
	if _, err := NewClient(down.URL, nil).RequestProof(context.Background(), models.ProofRequest{}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream for network failure, got %v", err)
	}
}
