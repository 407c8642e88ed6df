// Package oidc resolves issuer signing keys and verifies identity tokens.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

var (
	// ErrDiscovery means the issuer published no reachable configuration
	// document, or none of them carried a usable jwks_uri.
	ErrDiscovery = errors.New("issuer discovery failed")
	// ErrKeyNotFound means the cached key set has no key for the token's kid.
	ErrKeyNotFound = errors.New("signing key not found in issuer key set")
)

const (
	defaultKeySetTTL = 15 * time.Minute
	maxDocumentBytes = 1 << 20
	discoveryTimeout = 10 * time.Second
)

// wellKnownPaths is the discovery order; the first success with a string
// jwks_uri wins.
var wellKnownPaths = []string{
	"/.well-known/openid-configuration",
	"/.well-known/oauth-authorization-server",
}

// Resolver discovers and caches issuer key sets. Safe for concurrent use;
// overlapping refreshes for the same issuer are harmless because the fetched
// result is idempotent.
type Resolver struct {
	client *http.Client
	cache  *ttlcache.Cache[string, *KeySet]
}

type ResolverOption func(*Resolver)

// WithHTTPClient overrides the HTTP client used for discovery and JWKS
// fetches.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = c }
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: &http.Client{Timeout: discoveryTimeout},
		cache: ttlcache.New[string, *KeySet](
			ttlcache.WithTTL[string, *KeySet](defaultKeySetTTL),
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Keys returns the issuer's key set, fetching and caching it on first use.
func (r *Resolver) Keys(ctx context.Context, issuer string) (*KeySet, error) {
	if item := r.cache.Get(issuer); item != nil {
		keySetLookups.WithLabelValues("hit").Inc()
		return item.Value(), nil
	}
	keySetLookups.WithLabelValues("miss").Inc()
	return r.Refresh(ctx, issuer)
}

// Refresh re-runs discovery and replaces the cached key set for the issuer.
// Callers use it once when verification hits a kid the cached set does not
// know, which is how stale-key rotation heals.
func (r *Resolver) Refresh(ctx context.Context, issuer string) (*KeySet, error) {
	jwksURI, err := r.discoverJWKSURI(ctx, issuer)
	if err != nil {
		return nil, err
	}
	set, err := r.fetchKeySet(ctx, jwksURI)
	if err != nil {
		return nil, err
	}
	r.cache.Set(issuer, set, ttlcache.DefaultTTL)
	return set, nil
}

func (r *Resolver) discoverJWKSURI(ctx context.Context, issuer string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(issuer), "/")
	if base == "" {
		return "", fmt.Errorf("%w: empty issuer", ErrDiscovery)
	}
	var lastErr error
	for _, path := range wellKnownPaths {
		doc, err := r.getJSON(ctx, base+path)
		if err != nil {
			lastErr = err
			continue
		}
		uri, ok := doc["jwks_uri"].(string)
		if !ok || strings.TrimSpace(uri) == "" {
			lastErr = errors.New("configuration document has no jwks_uri")
			continue
		}
		return uri, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, lastErr)
	}
	return "", ErrDiscovery
}

func (r *Resolver) fetchKeySet(ctx context.Context, jwksURI string) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", ErrDiscovery, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	set, err := ParseKeySet(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	return set, nil
}

func (r *Resolver) getJSON(ctx context.Context, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}
	var doc map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentBytes)).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
