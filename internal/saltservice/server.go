// Package saltservice is the verification-and-derivation daemon: it
// validates identity tokens against their issuer's published keys and
// derives the per-user blinding salt. Stateless per request; the only
// shared state is the issuer key-set cache, whose refresh is idempotent.
package saltservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SuiJapan/sui-zklogin-app/internal/oidc"
	"github.com/SuiJapan/sui-zklogin-app/internal/platform/ratelimiter"
	"github.com/SuiJapan/sui-zklogin-app/internal/salt"
	"github.com/SuiJapan/sui-zklogin-app/pkg/models"
)

const maxRequestBytes int64 = 64 << 10

// Server owns the HTTP surface and the verify-and-derive path.
type Server struct {
	httpServer *http.Server
	verifier   *oidc.Verifier
	seed       []byte
	limiter    *ratelimiter.MapLimiter
	logger     *slog.Logger
}

// Options configures a Server. Seed is required; everything else has
// workable defaults.
type Options struct {
	Addr       string
	Seed       []byte
	AllowedIss []string
	AllowedAud []string
	Resolver   *oidc.Resolver
	RateRPS    float64
	RateBurst  int
	Logger     *slog.Logger
}

func NewServer(opts Options) (*Server, error) {
	if len(opts.Seed) == 0 {
		return nil, errors.New("seed is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":3001"
	}
	if opts.Resolver == nil {
		opts.Resolver = oidc.NewResolver()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		verifier: oidc.NewVerifier(opts.Resolver, opts.AllowedIss, opts.AllowedAud),
		seed:     opts.Seed,
		limiter:  ratelimiter.New(opts.RateRPS, opts.RateBurst, 0),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, notFound())
	})
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/hkdf", s.handleHKDF)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleHKDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, notFound())
		return
	}
	if !s.limiter.Allow(clientKey(r), time.Now()) {
		rateLimited.Inc()
		saltRequests.WithLabelValues("rate_limited").Inc()
		writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{Error: "too many requests"})
		return
	}

	started := time.Now()
	claims, derived, err := s.verifyAndDerive(r)
	if err != nil {
		s.writeError(w, classify(err))
		return
	}
	derivationSeconds.Observe(time.Since(started).Seconds())
	saltRequests.WithLabelValues("ok").Inc()
	s.logger.Info("salt derived",
		"iss", claims.Issuer,
		"sub", claims.Subject,
	)
	writeJSON(w, http.StatusOK, models.SaltResponse{Salt: derived})
}

func (s *Server) verifyAndDerive(r *http.Request) (*models.Claims, string, error) {
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, "", requestInvalid("Content-Type must be application/json")
	}
	var req models.SaltRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		return nil, "", requestInvalid(fmt.Sprintf("invalid request body: %v", err))
	}
	if strings.TrimSpace(req.Token) == "" {
		return nil, "", requestInvalid("token is required")
	}

	claims, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		return nil, "", err
	}
	return claims, salt.Derive(s.seed, claims.Issuer, claims.Audience, claims.Subject), nil
}

func (s *Server) writeError(w http.ResponseWriter, api *apiError) {
	saltRequests.WithLabelValues(api.kind.label()).Inc()
	s.logger.Warn("request rejected", "kind", api.kind.label(), "detail", api.msg)
	writeJSON(w, api.kind.status(), models.ErrorResponse{Error: api.msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
