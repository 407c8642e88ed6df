// Command zklogin runs the interactive login pipeline from a terminal:
// it prints the provider URL, waits for the pasted redirect, resolves
// the salt, derives the address and fetches the proof.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/SuiJapan/sui-zklogin-app/internal/config"
	"github.com/SuiJapan/sui-zklogin-app/internal/epoch"
	"github.com/SuiJapan/sui-zklogin-app/internal/pipeline"
	"github.com/SuiJapan/sui-zklogin-app/internal/platform/privacylog"
	"github.com/SuiJapan/sui-zklogin-app/internal/profilecache"
	"github.com/SuiJapan/sui-zklogin-app/internal/prover"
	"github.com/SuiJapan/sui-zklogin-app/internal/saltservice"
	"github.com/SuiJapan/sui-zklogin-app/internal/sessionstore"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	reset := flag.Bool("reset", false, "wipe the persisted session and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zklogin: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Client.LogLevel)

	store, profiles, err := openStores(cfg.Client)
	if err != nil {
		logger.Error("session storage unavailable", "err", err)
		os.Exit(1)
	}

	ctrl := pipeline.NewController(
		pipeline.Config{
			ClientID:          cfg.Client.ClientID,
			RedirectURI:       cfg.Client.RedirectURI,
			AuthorizeEndpoint: cfg.Client.AuthorizeEndpoint,
		},
		epoch.NewRPCSource(cfg.Client.FullnodeURL, nil),
		saltservice.NewClient(cfg.Client.SaltServiceURL, nil),
		prover.NewClient(cfg.Client.ProverURL, nil),
		store,
		&terminalNavigator{in: bufio.NewReader(os.Stdin)},
		logger,
	)
	if profiles != nil {
		ctrl.WithProfileCache(profiles)
	}

	if *reset {
		if err := ctrl.SignOut(); err != nil {
			logger.Error("reset failed", "err", err)
			os.Exit(1)
		}
		fmt.Println("session cleared")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx); err != nil {
		if errors.Is(err, pipeline.ErrNoToken) {
			fmt.Fprintln(os.Stderr, "the provider returned no token; not retrying")
		}
		logger.Error("login failed", "err", err)
		os.Exit(1)
	}

	_, address, _, proof := ctrl.Snapshot()
	fmt.Printf("address: %s\n", address)
	fmt.Printf("proof: %s\n", proof)
}

func openStores(cfg config.Client) (sessionstore.Store, *profilecache.Cache, error) {
	if cfg.SessionPath == "" || cfg.SessionPassphrase == "" {
		return sessionstore.NewMemoryStore(), nil, nil
	}
	store, err := sessionstore.OpenFileStore(cfg.SessionPath, cfg.SessionPassphrase)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := profilecache.Open(filepath.Join(filepath.Dir(cfg.SessionPath), "profiles.bin"), cfg.SessionPassphrase)
	if err != nil {
		return nil, nil, err
	}
	return store, profiles, nil
}

// terminalNavigator prints the provider URL and reads the pasted
// redirect back from stdin. It accepts either the full redirect URL or
// just its fragment.
type terminalNavigator struct {
	in *bufio.Reader
}

func (n *terminalNavigator) Navigate(loginURL string) error {
	fmt.Printf("open this URL in your browser:\n\n  %s\n\n", loginURL)
	return nil
}

func (n *terminalNavigator) Fragment(ctx context.Context) (string, error) {
	fmt.Print("paste the redirect URL here: ")
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := n.in.ReadString('\n')
		ch <- result{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		return extractFragment(strings.TrimSpace(r.line)), nil
	}
}

func extractFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[i+1:]
	}
	if u, err := url.Parse(raw); err == nil && u.RawQuery != "" {
		return u.RawQuery
	}
	return raw
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(privacylog.WrapHandler(base))
}
