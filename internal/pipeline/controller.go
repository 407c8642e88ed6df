// Package pipeline drives the client-side login flow as an explicit
// state machine: ephemeral key, nonce, provider redirect, token
// receipt, salt resolution, address derivation, proof request. Every
// transition re-checks its inputs, so a step that runs twice or out of
// order is a no-op rather than a corruption.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/SuiJapan/sui-zklogin-app/internal/epoch"
	"github.com/SuiJapan/sui-zklogin-app/internal/profilecache"
	"github.com/SuiJapan/sui-zklogin-app/internal/sessionstore"
	"github.com/SuiJapan/sui-zklogin-app/internal/zklogin"
	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

// State names how far the current login attempt has progressed.
type State int

const (
	StateIdle State = iota
	StateKeyReady
	StateNonceReady
	StateAwaitingProvider
	StateTokenReceived
	StateSaltResolved
	StateAddressReady
	StateProofRequested
	StateProofReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyReady:
		return "key_ready"
	case StateNonceReady:
		return "nonce_ready"
	case StateAwaitingProvider:
		return "awaiting_provider"
	case StateTokenReceived:
		return "token_received"
	case StateSaltResolved:
		return "salt_resolved"
	case StateAddressReady:
		return "address_ready"
	case StateProofRequested:
		return "proof_requested"
	case StateProofReady:
		return "proof_ready"
	default:
		return "unknown"
	}
}

var (
	// ErrNotReady means a step was invoked before its inputs exist.
	ErrNotReady = errors.New("pipeline step not ready")
	// ErrNoToken means the provider redirect carried no id_token. The
	// caller must not re-navigate on this error or it will loop.
	ErrNoToken = errors.New("redirect carried no id_token")
	// ErrNonceMismatch means the returned token was not minted for the
	// current ephemeral key and epoch horizon.
	ErrNonceMismatch = errors.New("token nonce does not match current attempt")
	// ErrAttemptExpired means the chain moved past the attempt's epoch
	// horizon; the attempt must be reset.
	ErrAttemptExpired = errors.New("login attempt expired past its epoch horizon")
	// ErrProofInFlight means a proof request is already running.
	ErrProofInFlight = errors.New("proof request already in flight")
)

// SaltResolver exchanges an identity token for the user's salt.
type SaltResolver interface {
	ResolveSalt(ctx context.Context, token string) (string, error)
}

// ProofService produces a zero-knowledge proof for a completed attempt.
type ProofService interface {
	RequestProof(ctx context.Context, req models.ProofRequest) (models.ProofBundle, error)
}

// Navigator is the pipeline's view of the user's browser. Navigate
// sends the user to the provider; Fragment blocks until the redirect
// lands and returns its URL fragment.
type Navigator interface {
	Navigate(url string) error
	Fragment(ctx context.Context) (string, error)
}

// Config carries the OAuth client registration.
type Config struct {
	ClientID          string
	RedirectURI       string
	AuthorizeEndpoint string
}

// Controller owns one login attempt at a time. All fields are guarded
// by mu; network calls run unlocked and re-validate the attempt on
// return.
type Controller struct {
	cfg      Config
	epochs   epoch.Source
	salts    SaltResolver
	prover   ProofService
	store    sessionstore.Store
	profiles *profilecache.Cache
	nav      Navigator
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	keypair       *zklogin.EphemeralKeyPair
	randomness    string
	maxEpoch      uint64
	nonce         string
	token         string
	claims        *models.Claims
	salt          string
	address       string
	proof         models.ProofBundle
	proofInFlight bool
}

func NewController(cfg Config, epochs epoch.Source, salts SaltResolver, prov ProofService, store sessionstore.Store, nav Navigator, logger *slog.Logger) *Controller {
	if store == nil {
		store = sessionstore.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		epochs: epochs,
		salts:  salts,
		prover: prov,
		store:  store,
		nav:    nav,
		logger: logger,
	}
}

// WithProfileCache attaches an encrypted per-user cache so that a
// subject seen before skips the salt service round trip.
func (c *Controller) WithProfileCache(cache *profilecache.Cache) *Controller {
	c.profiles = cache
	return c
}

// State reports the current progress.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the attempt's observable outputs. Empty strings mean
// the corresponding step has not run.
func (c *Controller) Snapshot() (nonce, address, salt string, proof models.ProofBundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, c.address, c.salt, c.proof
}

// DecodedClaims returns the unverified claims of the received token,
// for display only. Nil until a token has been received.
func (c *Controller) DecodedClaims() *models.Claims {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claims == nil {
		return nil
	}
	out := *c.claims
	out.Audience = append([]string(nil), c.claims.Audience...)
	return &out
}

// Start creates a fresh attempt: ephemeral key and randomness are
// generated and persisted before anything downstream can observe them,
// then the epoch horizon and nonce are fixed.
func (c *Controller) Start(ctx context.Context) error {
	keypair, err := zklogin.GenerateEphemeralKeyPair()
	if err != nil {
		return err
	}
	randomness, err := zklogin.GenerateRandomness()
	if err != nil {
		return err
	}
	// Persist first. A crash after navigation must not strand the user
	// with a nonce whose key was never written.
	if err := c.store.Put(sessionstore.KeyEphemeralKeyPair, keypair.Export()); err != nil {
		return fmt.Errorf("persist ephemeral key: %w", err)
	}
	if err := c.store.Put(sessionstore.KeyRandomness, randomness); err != nil {
		return fmt.Errorf("persist randomness: %w", err)
	}

	current, err := c.epochs.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("read current epoch: %w", err)
	}
	maxEpoch := epoch.MaxEpoch(current)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.keypair = keypair
	c.randomness = randomness
	c.maxEpoch = maxEpoch
	c.nonce = zklogin.Nonce(keypair.PublicKey(), maxEpoch, randomness)
	c.state = StateNonceReady
	c.logger.Info("attempt started",
		"attempt_id", keypair.AttemptID(),
		"max_epoch", maxEpoch,
	)
	return nil
}

// Resume restores a persisted attempt after a restart. The nonce is
// recomputed from the stored key and randomness; the epoch horizon is
// re-read, so a long-dead session simply gets a fresh horizon and a
// fresh nonce.
func (c *Controller) Resume(ctx context.Context) error {
	exported, ok := c.store.Get(sessionstore.KeyEphemeralKeyPair)
	if !ok {
		return ErrNotReady
	}
	randomness, ok := c.store.Get(sessionstore.KeyRandomness)
	if !ok {
		return ErrNotReady
	}
	keypair, err := zklogin.EphemeralKeyPairFromExport(exported)
	if err != nil {
		return fmt.Errorf("restore ephemeral key: %w", err)
	}

	current, err := c.epochs.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("read current epoch: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.keypair = keypair
	c.randomness = randomness
	c.maxEpoch = epoch.MaxEpoch(current)
	c.nonce = zklogin.Nonce(keypair.PublicKey(), c.maxEpoch, randomness)
	c.state = StateNonceReady
	c.logger.Info("attempt resumed", "attempt_id", keypair.AttemptID())
	return nil
}

// LoginURL builds the provider authorization URL for the current
// attempt.
func (c *Controller) LoginURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state < StateNonceReady || c.nonce == "" {
		return "", ErrNotReady
	}
	u, err := url.Parse(c.cfg.AuthorizeEndpoint)
	if err != nil {
		return "", fmt.Errorf("authorize endpoint: %w", err)
	}
	q := u.Query()
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_type", "id_token")
	q.Set("scope", "openid")
	q.Set("nonce", c.nonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Navigate sends the user to the provider and marks the attempt as
// awaiting the redirect.
func (c *Controller) Navigate() error {
	loginURL, err := c.LoginURL()
	if err != nil {
		return err
	}
	if err := c.nav.Navigate(loginURL); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateNonceReady {
		c.state = StateAwaitingProvider
	}
	return nil
}

// HandleRedirect consumes the provider redirect's URL fragment. A
// fragment without an id_token returns ErrNoToken without changing
// state, which is the loop guard: the caller must not navigate again
// in response.
func (c *Controller) HandleRedirect(fragment string) error {
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return fmt.Errorf("parse redirect fragment: %w", err)
	}
	token := values.Get("id_token")
	if token == "" {
		return ErrNoToken
	}

	claims, err := zklogin.DecodeClaims(token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nonce == "" {
		return ErrNotReady
	}
	if claims.Nonce != c.nonce {
		return ErrNonceMismatch
	}
	c.token = token
	c.claims = claims
	c.state = StateTokenReceived
	c.logger.Info("token received", "iss", claims.Issuer, "sub", claims.Subject)
	return nil
}

// ResolveSalt exchanges the received token for the user's salt and
// derives the address. The epoch re-check is best effort: an
// unreachable fullnode keeps the existing horizon, but a horizon the
// chain has already passed fails the attempt.
func (c *Controller) ResolveSalt(ctx context.Context) error {
	c.mu.Lock()
	if c.state < StateTokenReceived || c.token == "" {
		c.mu.Unlock()
		return ErrNotReady
	}
	attemptID := c.keypair.AttemptID()
	token := c.token
	subject := c.claims.Subject
	maxEpoch := c.maxEpoch
	c.mu.Unlock()

	salt, err := c.lookupSalt(ctx, subject, token, maxEpoch)
	if err != nil {
		return err
	}

	if current, epochErr := c.epochs.CurrentEpoch(ctx); epochErr == nil && current > maxEpoch {
		return ErrAttemptExpired
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keypair == nil || c.keypair.AttemptID() != attemptID {
		// The attempt was reset while the request was running.
		return ErrNotReady
	}
	address := zklogin.AddressFromClaims(c.claims, salt)
	c.salt = salt
	c.address = address
	c.state = StateAddressReady
	c.logger.Info("address derived", "address", address)
	return nil
}

func (c *Controller) lookupSalt(ctx context.Context, subject, token string, maxEpoch uint64) (string, error) {
	if c.profiles == nil {
		return c.salts.ResolveSalt(ctx, token)
	}
	profile, err := c.profiles.GetOrCreate(subject, func() (models.Profile, error) {
		salt, err := c.salts.ResolveSalt(ctx, token)
		if err != nil {
			return models.Profile{}, err
		}
		return models.Profile{Salt: salt, MaxEpoch: maxEpoch}, nil
	})
	if err != nil {
		return "", err
	}
	return profile.Salt, nil
}

// RequestProof asks the prover for a zero-knowledge proof binding the
// token, salt and ephemeral key. Only one request may run at a time,
// and a response for a reset attempt is discarded.
func (c *Controller) RequestProof(ctx context.Context) error {
	c.mu.Lock()
	if c.state < StateAddressReady || c.salt == "" {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.proofInFlight {
		c.mu.Unlock()
		return ErrProofInFlight
	}
	c.proofInFlight = true
	c.state = StateProofRequested
	attemptID := c.keypair.AttemptID()
	req := models.ProofRequest{
		JWT:                        c.token,
		ExtendedEphemeralPublicKey: c.keypair.ExtendedPublicKey(),
		MaxEpoch:                   c.maxEpoch,
		JWTRandomness:              c.randomness,
		Salt:                       c.salt,
		KeyClaimName:               "sub",
	}
	c.mu.Unlock()

	proof, err := c.prover.RequestProof(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.proofInFlight = false
	if c.keypair == nil || c.keypair.AttemptID() != attemptID {
		// Stale response for an attempt that no longer exists.
		return ErrNotReady
	}
	if err != nil {
		c.state = StateAddressReady
		return err
	}
	c.proof = proof
	c.state = StateProofReady
	c.logger.Info("proof ready", "attempt_id", attemptID)
	return nil
}

// Run drives a whole attempt end to end: start (or resume), navigate,
// wait for the redirect, resolve the salt and request the proof.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Resume(ctx); err != nil {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}
	if err := c.Navigate(); err != nil {
		return err
	}
	fragment, err := c.nav.Fragment(ctx)
	if err != nil {
		return err
	}
	if err := c.HandleRedirect(fragment); err != nil {
		return err
	}
	if err := c.ResolveSalt(ctx); err != nil {
		return err
	}
	return c.RequestProof(ctx)
}

// SignOut ends the session: same effect as Reset.
func (c *Controller) SignOut() error {
	return c.Reset()
}

// Reset abandons the current attempt and wipes persisted material.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return c.store.Clear()
}

func (c *Controller) resetLocked() {
	c.state = StateIdle
	c.keypair = nil
	c.randomness = ""
	c.maxEpoch = 0
	c.nonce = ""
	c.token = ""
	c.claims = nil
	c.salt = ""
	c.address = ""
	c.proof = nil
	c.proofInFlight = false
}
