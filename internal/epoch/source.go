// Package epoch reads the ledger's monotonic epoch counter, the validity
// horizon for ephemeral keys.
package epoch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable wraps any failure to reach or parse the epoch endpoint.
var ErrUnavailable = errors.New("epoch source unavailable")

// ValidityMargin is the fixed number of epochs an ephemeral key stays
// usable beyond the epoch observed at login start.
const ValidityMargin = 10

// Source yields the current ledger epoch.
type Source interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// MaxEpoch computes the ephemeral key horizon from a current epoch.
func MaxEpoch(current uint64) uint64 {
	return current + ValidityMargin
}

// RPCSource reads the epoch from a fullnode's JSON-RPC system-state method.
type RPCSource struct {
	url    string
	client *http.Client
}

func NewRPCSource(url string, client *http.Client) *RPCSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RPCSource{url: url, client: client}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result struct {
		Epoch json.RawMessage `json:"epoch"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *RPCSource) CurrentEpoch(ctx context.Context) (uint64, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "suix_getLatestSuiSystemState",
		Params:  []any{},
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: rpc endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if decoded.Error != nil {
		return 0, fmt.Errorf("%w: rpc error %d: %s", ErrUnavailable, decoded.Error.Code, decoded.Error.Message)
	}
	return parseEpoch(decoded.Result.Epoch)
}

// parseEpoch accepts the epoch as either a JSON string or a JSON number,
// since fullnode versions have used both encodings.
func parseEpoch(raw json.RawMessage) (uint64, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return 0, fmt.Errorf("%w: response has no epoch field", ErrUnavailable)
	}
	epoch, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad epoch %q", ErrUnavailable, text)
	}
	return epoch, nil
}
