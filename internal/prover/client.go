// Package prover talks to the external zero-knowledge prover. The proof it
// returns is opaque: stored verbatim, never interpreted.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

// ErrUpstream wraps transport failures and non-success responses from the
// prover. Callers surface it to the user and do not retry automatically.
var ErrUpstream = errors.New("prover unavailable")

const maxProofBytes = 4 << 20

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		// Proof generation is slow; allow well beyond interactive timeouts.
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{url: url, httpClient: httpClient}
}

// RequestProof submits the assembled credential bundle and returns the
// prover's response body as-is.
func (c *Client) RequestProof(ctx context.Context, req models.ProofRequest) (models.ProofBundle, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProofBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: prover returned %d", ErrUpstream, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: prover returned a non-JSON body", ErrUpstream)
	}
	return models.ProofBundle(body), nil
}
