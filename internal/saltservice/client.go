package saltservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

// ErrSaltService reports a failed round trip to the derivation endpoint,
// whether transport-level or an error status from the daemon.
var ErrSaltService = errors.New("salt service request failed")

// Client calls a running derivation daemon's /hkdf endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ResolveSalt exchanges a verified identity token for the user's salt,
// normalized to a decimal string.
func (c *Client) ResolveSalt(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(models.SaltRequest{Token: token})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hkdf", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaltService, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaltService, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("%w: status %d: %s", ErrSaltService, resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("%w: status %d", ErrSaltService, resp.StatusCode)
	}

	var out models.SaltResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaltService, err)
	}
	normalized, err := NormalizeSalt(out.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaltService, err)
	}
	return normalized, nil
}

// NormalizeSalt accepts the decimal form the daemon emits as well as the
// hex form some hosted services return, and yields decimal. A string is
// treated as hex only when it says so: a 0x prefix or a hex letter. A
// digits-only string is always decimal.
func NormalizeSalt(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty salt")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	} else if strings.ContainsAny(s, "abcdefABCDEF") {
		base = 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("malformed salt %q", s)
	}
	return n.String(), nil
}
